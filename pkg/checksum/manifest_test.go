package checksum

import (
	"bytes"
	"os"
	"testing"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/storage"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := New("medseg9")
	m.Set("medseg9_1", "image", storage.NewDigest([]byte("a")))
	m.Set("medseg9_1", "covid", storage.NewDigest([]byte("b")))
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}

	got, err := Load(dir, "medseg9")
	if err != nil {
		t.Fatal(err)
	}
	if got.Dataset != "medseg9" || got.Version != SchemaVersion {
		t.Errorf("Dataset = %q, Version = %d", got.Dataset, got.Version)
	}
	d, ok := got.Lookup("medseg9_1", "image")
	if !ok || d != storage.NewDigest([]byte("a")) {
		t.Errorf("Lookup = (%s, %v)", d, ok)
	}
	if got.Len() != 2 {
		t.Errorf("Len = %d, want 2", got.Len())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	if !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("error code = %q, want NOT_FOUND_MANIFEST", errors.GetCode(err))
	}
}

func TestLoadRejectsBadDigest(t *testing.T) {
	dir := t.TempDir()
	bad := `{"version": 1, "dataset": "x", "entries": {"a/image": "sha256:nope"}}`
	if err := os.WriteFile(Path(dir, "x"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, "x"); !errors.Is(err, errors.ErrCodeBadFormat) {
		t.Errorf("error code = %q, want BAD_FORMAT", errors.GetCode(err))
	}
}

func TestLoadRejectsFutureSchema(t *testing.T) {
	dir := t.TempDir()
	future := `{"version": 99, "dataset": "x", "entries": {}}`
	if err := os.WriteFile(Path(dir, "x"), []byte(future), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, "x"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("error code = %q, want UNSUPPORTED", errors.GetCode(err))
	}
}

func TestDeterministicOutput(t *testing.T) {
	dir := t.TempDir()

	m := New("verse")
	m.Set("b", "image", storage.NewDigest([]byte("1")))
	m.Set("a", "image", storage.NewDigest([]byte("2")))
	m.Set("c", "mask", storage.NewDigest([]byte("3")))

	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(Path(dir, "verse"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(Path(dir, "verse"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("manifest output is not deterministic")
	}

	// Keys must appear sorted in the serialized form.
	ia := bytes.Index(first, []byte(`"a/image"`))
	ib := bytes.Index(first, []byte(`"b/image"`))
	ic := bytes.Index(first, []byte(`"c/mask"`))
	if !(ia < ib && ib < ic) {
		t.Errorf("keys not sorted: positions %d %d %d", ia, ib, ic)
	}
}

func TestDiff(t *testing.T) {
	old := New("x")
	old.Set("a", "image", storage.NewDigest([]byte("1")))
	old.Set("b", "image", storage.NewDigest([]byte("2")))

	updated := New("x")
	updated.Set("a", "image", storage.NewDigest([]byte("1")))
	updated.Set("b", "image", storage.NewDigest([]byte("changed")))
	updated.Set("c", "image", storage.NewDigest([]byte("3")))

	changes := Diff(old, updated)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2: %v", len(changes), changes)
	}
	if changes[0].Key != "b/image" || changes[0].Old == "" || changes[0].New == "" {
		t.Errorf("first change = %+v, want modification of b/image", changes[0])
	}
	if changes[1].Key != "c/image" || changes[1].Old != "" {
		t.Errorf("second change = %+v, want addition of c/image", changes[1])
	}
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]Level{"off": Off, "warn": Warn, "": Warn, "strict": Strict} {
		got, err := ParseLevel(s)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = (%v, %v), want %v", s, got, err, want)
		}
	}
	if _, err := ParseLevel("paranoid"); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("ParseLevel(paranoid) error = %v, want INVALID_CONFIG", err)
	}
}
