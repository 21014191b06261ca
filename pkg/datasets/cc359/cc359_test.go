package cc359

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/nifti"
	"github.com/scancat/scancat/pkg/volume"
)

func writeArchive(t *testing.T, path string, members map[string]*volume.Volume) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for member, vol := range members {
		w, err := zw.Create(member)
		if err != nil {
			t.Fatal(err)
		}
		gz := gzip.NewWriter(w)
		if err := nifti.Encode(gz, vol); err != nil {
			t.Fatal(err)
		}
		if err := gz.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeRawTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	img, err := volume.NewFloat64([3]int{2, 1, 1}, []float64{120, 250})
	if err != nil {
		t.Fatal(err)
	}
	mask, err := volume.NewFloat64([3]int{2, 1, 1}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	tissues, err := volume.NewFloat64([3]int{2, 1, 1}, []float64{1, 3})
	if err != nil {
		t.Fatal(err)
	}

	writeArchive(t, filepath.Join(root, "Original.zip"), map[string]*volume.Volume{
		"Original/CC0001_philips_15_55_M.nii.gz": img,
		"Original/CC0002_ge_3_61_F.nii.gz":       img,
	})
	writeArchive(t, filepath.Join(root, "Silver-standard-machine-learning.zip"), map[string]*volume.Volume{
		"Silver-standard/CC0001_philips_15_55_M_ss.nii.gz": mask,
	})
	writeArchive(t, filepath.Join(root, "hippocampus_staple.zip"), map[string]*volume.Volume{
		"hippocampus/CC0002_ge_3_61_F_hippo.nii.gz": mask,
	})

	dir := filepath.Join(root, "WM-GM-CSF")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := nifti.Save(filepath.Join(dir, "CC0001_philips_15_55_M.nii.gz"), tissues); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestNewRequiresOriginalArchive(t *testing.T) {
	_, err := New(t.TempDir())
	if errors.GetCode(err) != errors.ErrCodeInvalidPath {
		t.Fatalf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidPath)
	}
}

func TestIDs(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	ids, err := ds.IDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "CC0001" || ids[1] != "CC0002" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestFetchDemographicsFromFileName(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for field, want := range map[string]any{
		"vendor": "philips",
		"field":  "15",
		"age":    55.0,
		"sex":    "M",
	} {
		got, err := ds.Fetch(ctx, "CC0001", field)
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", field, got, want)
		}
	}
}

func TestFetchMasks(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	v, err := ds.Fetch(ctx, "CC0001", "brain")
	if err != nil {
		t.Fatal(err)
	}
	if brain := v.(*volume.Volume); brain.At(1, 0, 0) != 1 {
		t.Fatal("brain mask voxel not set")
	}

	v, err = ds.Fetch(ctx, "CC0001", "wm_gm_csf")
	if err != nil {
		t.Fatal(err)
	}
	if tissues := v.(*volume.Volume); tissues.At(1, 0, 0) != 3 {
		t.Fatalf("tissue label = %v, want 3", tissues.At(1, 0, 0))
	}

	// CC0001 has no hippocampus annotation.
	_, err = ds.Fetch(ctx, "CC0001", "hippocampus")
	if errors.GetCode(err) != errors.ErrCodeNotFound {
		t.Fatalf("code = %v", errors.GetCode(err))
	}
	if _, err := ds.Fetch(ctx, "CC0002", "hippocampus"); err != nil {
		t.Fatal(err)
	}
}
