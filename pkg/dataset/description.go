package dataset

// License identifies the terms a dataset is distributed under.
type License struct {
	Name string
	URL  string
}

// Description is the curated catalog card of a dataset. All fields are
// optional; the docs generator and the datasets command render what is
// present.
type Description struct {
	BodyRegion   []string
	License      License
	Link         string
	Modality     []string
	PrepDataSize string // approximate size after caching, human-readable
	RawDataSize  string // approximate size of the raw download
	Task         []string
}
