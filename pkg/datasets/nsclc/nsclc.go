// Package nsclc provides the NSCLC-Radiomics lung cancer dataset from
// TCIA: 422 thoracic CT studies with gross tumour volume segmentations.
//
// The raw tree follows the TCIA layout, one DICOM series per folder
// under NSCLC-Radiomics/LUNG1-XXX. The primary CT series is stacked via
// pkg/dcmseries; the tumour mask comes from the patient's segmentation
// series.
package nsclc

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/dcmseries"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

const (
	name = "nsclc"
	link = "https://wiki.cancerimagingarchive.net/display/Public/NSCLC-Radiomics"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Thorax"},
		License:      dataset.CC_BY_30,
		Link:         link,
		Modality:     []string{"CT"},
		PrepDataSize: "13G",
		RawDataSize:  "34G",
		Task:         []string{"Tumor Segmentation"},
	},
	Fields: fields,
}

// Patients with broken or missing segmentations in the published release.
var invalidPatients = map[string]bool{
	"LUNG1-128": true,
	"LUNG1-412": true,
	"LUNG1-194": true,
	"LUNG1-095": true,
	"LUNG1-085": true,
	"LUNG1-014": true,
	"LUNG1-021": true,
}

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over a raw TCIA download. The root must contain
// the NSCLC-Radiomics folder with per-patient subfolders.
func New(root string) (dataset.Dataset, error) {
	entries, err := os.ReadDir(filepath.Join(root, "NSCLC-Radiomics"))
	if err != nil {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "LUNG1-") {
			continue
		}
		if invalidPatients[e.Name()] {
			continue
		}
		ids = append(ids, e.Name())
	}
	if len(ids) == 0 {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	sort.Strings(ids)
	return &ds{root: root, ids: ids}, nil
}

func (d *ds) Name() string { return name }

func (d *ds) IDs(ctx context.Context) ([]string, error) { return d.ids, nil }

var fields = []dataset.Field{
	{Name: "image", Kind: dataset.KindVolume, Doc: "thoracic CT, int16"},
	{Name: "mask", Kind: dataset.KindVolume, Doc: "gross tumour volume mask from the SEG series"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "study_uid", Kind: dataset.KindScalar, Doc: "StudyInstanceUID of the CT series"},
	{Name: "series_uid", Kind: dataset.KindScalar, Doc: "SeriesInstanceUID of the CT series"},
}

func (d *ds) Fields() []dataset.Field { return fields }

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	series, err := dcmseries.ReadDir(ctx, filepath.Join(d.root, "NSCLC-Radiomics", id))
	if err != nil {
		return nil, err
	}
	ct := primaryCT(series)
	if ct == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "patient %s has no CT series", id)
	}
	switch field {
	case "image":
		vol, err := ct.Volume()
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(vol), nil
	case "spacing":
		vol, err := ct.Volume()
		if err != nil {
			return nil, err
		}
		return vol.Spacing, nil
	case "study_uid":
		return ct.Slices[0].StudyInstanceUID, nil
	case "series_uid":
		return ct.UID, nil
	case "mask":
		seg := segmentation(series)
		if seg == nil {
			return nil, errors.New(errors.ErrCodeNotFound, "patient %s has no segmentation series", id)
		}
		vol, err := seg.Volume()
		if err != nil {
			return nil, err
		}
		return volume.ToMask(vol), nil
	}
	return nil, dataset.ErrUnknownField(d, field)
}

// primaryCT picks the CT series with the most slices. ReadDir already
// sorts by descending slice count.
func primaryCT(series []*dcmseries.Series) *dcmseries.Series {
	for _, s := range series {
		if len(s.Slices) > 1 && s.Slices[0].Modality != "SEG" {
			return s
		}
	}
	return nil
}

func segmentation(series []*dcmseries.Series) *dcmseries.Series {
	for _, s := range series {
		if s.Slices[0].Modality == "SEG" {
			return s
		}
	}
	return nil
}
