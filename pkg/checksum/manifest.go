// Package checksum tracks the expected content digests of every cached
// dataset value.
//
// Each dataset has one manifest file mapping "<id>/<field>" keys to
// storage digests. Manifests are written by populate runs and consulted
// on cached reads, so a value that rots on disk (or a raw tree that
// silently changed) is caught instead of flowing into an experiment.
// Marshaling is deterministic: keys are sorted, so manifests diff cleanly
// under version control.
package checksum

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/storage"
)

// SchemaVersion identifies the manifest file layout.
const SchemaVersion = 1

// Manifest records the expected digest of every (id, field) pair of a
// dataset.
type Manifest struct {
	Version   int                       `json:"version"`
	Dataset   string                    `json:"dataset"`
	CreatedAt time.Time                 `json:"created_at"`
	Entries   map[string]storage.Digest `json:"entries"`
}

// New creates an empty manifest for a dataset.
func New(dataset string) *Manifest {
	return &Manifest{
		Version:   SchemaVersion,
		Dataset:   dataset,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Entries:   map[string]storage.Digest{},
	}
}

// Key builds the manifest key for an (id, field) pair.
func Key(id, field string) string {
	return id + "/" + field
}

// Set records the digest for an (id, field) pair.
func (m *Manifest) Set(id, field string, d storage.Digest) {
	m.Entries[Key(id, field)] = d
}

// Lookup returns the recorded digest for an (id, field) pair.
func (m *Manifest) Lookup(id, field string) (storage.Digest, bool) {
	d, ok := m.Entries[Key(id, field)]
	return d, ok
}

// Len returns the number of recorded entries.
func (m *Manifest) Len() int { return len(m.Entries) }

// Path returns the manifest file location for a dataset under dir.
func Path(dir, dataset string) string {
	return filepath.Join(dir, dataset+".json")
}

// Load reads a dataset's manifest from dir.
func Load(dir, dataset string) (*Manifest, error) {
	path := Path(dir, dataset)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeManifestNotFound,
			"no checksum manifest for dataset %q (run populate first)", dataset)
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "parsing manifest %s", path)
	}
	if m.Version != SchemaVersion {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"manifest %s has schema version %d, this build understands %d", path, m.Version, SchemaVersion)
	}
	for key, d := range m.Entries {
		if _, err := storage.ParseDigest(string(d)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "manifest %s entry %q", path, key)
		}
	}
	if m.Entries == nil {
		m.Entries = map[string]storage.Digest{}
	}
	return &m, nil
}

// Save writes the manifest under dir atomically: the file appears complete
// or not at all, never half-written.
func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// encoding/json sorts map keys, which gives us deterministic output.
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := Path(dir, m.Dataset)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Change describes one differing manifest entry.
type Change struct {
	Key      string
	Old, New storage.Digest // empty when added or removed
}

func (c Change) String() string {
	switch {
	case c.Old == "":
		return fmt.Sprintf("+ %s %s", c.Key, c.New.Short())
	case c.New == "":
		return fmt.Sprintf("- %s %s", c.Key, c.Old.Short())
	default:
		return fmt.Sprintf("~ %s %s -> %s", c.Key, c.Old.Short(), c.New.Short())
	}
}

// Diff reports entries added, removed or changed between two manifests,
// sorted by key.
func Diff(old, new *Manifest) []Change {
	var changes []Change
	for key, d := range old.Entries {
		nd, ok := new.Entries[key]
		if !ok {
			changes = append(changes, Change{Key: key, Old: d})
		} else if nd != d {
			changes = append(changes, Change{Key: key, Old: d, New: nd})
		}
	}
	for key, d := range new.Entries {
		if _, ok := old.Entries[key]; !ok {
			changes = append(changes, Change{Key: key, New: d})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}
