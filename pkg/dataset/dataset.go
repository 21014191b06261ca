// Package dataset defines the uniform accessor surface of the catalog.
//
// Every dataset, whatever its raw storage looks like (NIfTI trees, zip
// archives, DICOM series), is exposed through the same small interface:
// stable sorted ids, a declared field list, and a single Fetch entry point.
// Swapping one dataset for another never requires rewriting loading code.
//
// Concrete datasets live under pkg/datasets and register themselves in a
// Registry together with a human-curated Description (modality, license,
// download link, sizes, task).
package dataset

import (
	"context"
	"slices"

	"github.com/scancat/scancat/pkg/errors"
)

// Kind describes how a field's values serialize in the cache.
type Kind int

const (
	// KindVolume fields return *volume.Volume and cache as NPY.
	KindVolume Kind = iota
	// KindScalar fields return a primitive (string, bool, float64, int)
	// and cache as JSON.
	KindScalar
	// KindMatrix fields return fixed-size numeric arrays (affines,
	// spacings) and cache as JSON.
	KindMatrix
	// KindSeries fields return structured records (annotation lists,
	// centroid maps) and cache as JSON.
	KindSeries
)

func (k Kind) String() string {
	switch k {
	case KindVolume:
		return "volume"
	case KindScalar:
		return "scalar"
	case KindMatrix:
		return "matrix"
	case KindSeries:
		return "series"
	}
	return "unknown"
}

// Field is one declared accessor of a dataset.
type Field struct {
	Name string
	Kind Kind
	Doc  string // one-line description, shown by the docs generator
}

// Dataset is the uniform accessor interface.
//
// IDs returns the full sorted identifier list; two calls observe the same
// raw tree and return identical slices. Fetch loads one field value for
// one id, going to the raw files every time. Caching is layered on top
// by pkg/cache.
type Dataset interface {
	Name() string
	IDs(ctx context.Context) ([]string, error)
	Fields() []Field
	Fetch(ctx context.Context, id, field string) (any, error)
}

// FieldNames returns the names of all declared fields of ds.
func FieldNames(ds Dataset) []string {
	fields := ds.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// FieldByName finds a declared field.
func FieldByName(ds Dataset, name string) (Field, bool) {
	for _, f := range ds.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ErrUnknownField builds the standard error for a Fetch with an undeclared
// field name.
func ErrUnknownField(ds Dataset, field string) error {
	return errors.New(errors.ErrCodeInvalidField,
		"dataset %q has no field %q (available: %v)", ds.Name(), field, FieldNames(ds))
}

// ErrUnknownID builds the standard error for a Fetch with an id that is
// not part of the dataset.
func ErrUnknownID(ds Dataset, id string) error {
	return errors.New(errors.ErrCodeIDNotFound, "dataset %q has no id %q", ds.Name(), id)
}

// ErrMissingRoot builds the standard error for a dataset whose raw tree
// was not found, including where to obtain the data.
func ErrMissingRoot(name, root, link string) error {
	return errors.New(errors.ErrCodeInvalidPath,
		"raw data for dataset %q not found at %q; download it from %s and point the dataset root at it",
		name, root, link)
}

// CheckID returns ErrUnknownID unless id appears in the sorted ids slice.
func CheckID(ds Dataset, ids []string, id string) error {
	if _, ok := slices.BinarySearch(ids, id); !ok {
		return ErrUnknownID(ds, id)
	}
	return nil
}
