package cache

import (
	"context"
	"testing"

	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/storage"
)

func TestVerifyManifest(t *testing.T) {
	ctx := context.Background()
	index, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	blobs, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	m := checksum.New("fake")
	for _, id := range []string{"a", "b", "c", "d"} {
		d, err := Put(ctx, index, blobs, "fake", id, "age", dataset.KindScalar, float64(30))
		if err != nil {
			t.Fatal(err)
		}
		m.Set(id, "age", d)
	}

	// All entries intact.
	mis, err := VerifyManifest(ctx, index, blobs, m)
	if err != nil {
		t.Fatalf("VerifyManifest() error = %v", err)
	}
	if len(mis) != 0 {
		t.Fatalf("mismatches = %v, want none", mis)
	}

	// b: index entry gone. c: manifest expects a different digest.
	// e: listed in the manifest but never cached.
	if err := index.Delete(ctx, Key("fake", "b", "age")); err != nil {
		t.Fatal(err)
	}
	m.Set("c", "age", storage.NewDigest([]byte("something else")))
	m.Set("e", "age", storage.NewDigest([]byte("never cached")))

	mis, err = VerifyManifest(ctx, index, blobs, m)
	if err != nil {
		t.Fatalf("VerifyManifest() error = %v", err)
	}
	if len(mis) != 3 {
		t.Fatalf("got %d mismatches (%v), want 3", len(mis), mis)
	}
	// Sorted by id.
	if mis[0].ID != "b" || mis[0].Reason != "not cached" {
		t.Errorf("mis[0] = %+v", mis[0])
	}
	if mis[1].ID != "c" || mis[1].Got == "" {
		t.Errorf("mis[1] = %+v", mis[1])
	}
	if mis[2].ID != "e" || mis[2].Reason != "not cached" {
		t.Errorf("mis[2] = %+v", mis[2])
	}
}

func TestVerifyManifestMissingBlob(t *testing.T) {
	ctx := context.Background()
	index, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	blobs, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	m := checksum.New("fake")
	d, err := Put(ctx, index, blobs, "fake", "a", "age", dataset.KindScalar, float64(30))
	if err != nil {
		t.Fatal(err)
	}
	m.Set("a", "age", d)
	if err := blobs.Delete(d); err != nil {
		t.Fatal(err)
	}

	mis, err := VerifyManifest(ctx, index, blobs, m)
	if err != nil {
		t.Fatalf("VerifyManifest() error = %v", err)
	}
	if len(mis) != 1 || mis[0].ID != "a" {
		t.Fatalf("mismatches = %v, want one for a/age", mis)
	}
}
