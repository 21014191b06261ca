package dataset

import (
	"sort"

	"github.com/scancat/scancat/pkg/errors"
)

// Constructor builds a dataset over a raw data root directory.
type Constructor func(root string) (Dataset, error)

// Entry is one registered dataset: its constructor plus the catalog card.
// Fields mirrors what the constructed dataset declares, so the catalog
// can be browsed without the raw data on disk.
type Entry struct {
	Name        string
	New         Constructor
	Description Description
	Fields      []Field
}

// Registry maps dataset names to entries. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Register adds an entry. Names must be valid dataset names and unique;
// a duplicate registration is a programming error and fails loudly.
func (r *Registry) Register(e Entry) error {
	if err := errors.ValidateDatasetName(e.Name); err != nil {
		return err
	}
	if e.New == nil {
		return errors.New(errors.ErrCodeInvalidInput, "dataset %q registered without a constructor", e.Name)
	}
	if _, exists := r.entries[e.Name]; exists {
		return errors.New(errors.ErrCodeInvalidInput, "dataset %q registered twice", e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

// MustRegister is Register that panics, for building static registries.
func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Get looks up a dataset entry by name.
func (r *Registry) Get(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, errors.New(errors.ErrCodeInvalidDataset,
			"unknown dataset %q (run `scancat datasets` for the list)", name)
	}
	return e, nil
}

// All returns every entry sorted by name.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int { return len(r.entries) }
