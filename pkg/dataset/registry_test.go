package dataset

import (
	"context"
	"testing"

	"github.com/scancat/scancat/pkg/errors"
)

// fakeDataset is a minimal in-memory dataset for registry and helper tests.
type fakeDataset struct {
	name string
	ids  []string
}

func (f *fakeDataset) Name() string                             { return f.name }
func (f *fakeDataset) IDs(context.Context) ([]string, error)    { return f.ids, nil }
func (f *fakeDataset) Fields() []Field                          { return []Field{{Name: "image", Kind: KindVolume}} }
func (f *fakeDataset) Fetch(_ context.Context, id, field string) (any, error) {
	if field != "image" {
		return nil, ErrUnknownField(f, field)
	}
	return nil, nil
}

func newEntry(name string) Entry {
	return Entry{
		Name: name,
		New: func(root string) (Dataset, error) {
			return &fakeDataset{name: name}, nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newEntry("verse")); err != nil {
		t.Fatal(err)
	}

	e, err := r.Get("verse")
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "verse" {
		t.Errorf("Name = %q", e.Name)
	}

	if _, err := r.Get("missing"); !errors.Is(err, errors.ErrCodeInvalidDataset) {
		t.Errorf("Get(missing) error code = %q, want INVALID_DATASET", errors.GetCode(err))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newEntry("verse")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(newEntry("verse")); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestRegisterInvalidName(t *testing.T) {
	r := NewRegistry()
	for _, bad := range []string{"", "Verse", "a b"} {
		if err := r.Register(newEntry(bad)); err == nil {
			t.Errorf("Register(%q) should fail", bad)
		}
	}
}

func TestAllSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"verse", "amos", "medseg9"} {
		if err := r.Register(newEntry(name)); err != nil {
			t.Fatal(err)
		}
	}
	all := r.All()
	if len(all) != 3 || r.Len() != 3 {
		t.Fatalf("len = %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Errorf("All() not sorted: %q before %q", all[i-1].Name, all[i].Name)
		}
	}
}

func TestCheckID(t *testing.T) {
	ds := &fakeDataset{name: "x", ids: []string{"a", "b", "c"}}
	if err := CheckID(ds, ds.ids, "b"); err != nil {
		t.Errorf("CheckID(b) = %v", err)
	}
	if err := CheckID(ds, ds.ids, "z"); !errors.Is(err, errors.ErrCodeIDNotFound) {
		t.Errorf("CheckID(z) error code = %q, want NOT_FOUND_ID", errors.GetCode(err))
	}
}

func TestFieldHelpers(t *testing.T) {
	ds := &fakeDataset{name: "x"}
	if names := FieldNames(ds); len(names) != 1 || names[0] != "image" {
		t.Errorf("FieldNames = %v", names)
	}
	if f, ok := FieldByName(ds, "image"); !ok || f.Kind != KindVolume {
		t.Errorf("FieldByName(image) = (%+v, %v)", f, ok)
	}
	if _, ok := FieldByName(ds, "mask"); ok {
		t.Error("FieldByName(mask) should miss")
	}
}
