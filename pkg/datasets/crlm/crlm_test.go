package crlm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scancat/scancat/pkg/dcmseries/dcmtest"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

func writeRawTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	ctDir := filepath.Join(root, "CRLM-CT-1001", "study", "ct")
	if err := os.MkdirAll(ctDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 2; i++ {
		dcmtest.Write(t, filepath.Join(ctDir, "ct"+string(rune('0'+i))+".dcm"),
			dcmtest.SliceAttrs("2.16.840.1.1", i, [3]float64{0, 0, float64(i) * 5}, 2, 2,
				[]int16{-100, 50, 60, int16(i)}))
	}
	segDir := filepath.Join(root, "CRLM-CT-1001", "study", "seg")
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		t.Fatal(err)
	}
	dcmtest.Write(t, filepath.Join(segDir, "seg1.dcm"),
		dcmtest.WithModality(
			dcmtest.SliceAttrs("2.16.840.1.1.9", 1, [3]float64{0, 0, 5}, 2, 2,
				[]int16{0, 1, 1, 0}), "SEG"))
	return root
}

func TestNewRequiresCases(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	if errors.GetCode(err) != errors.ErrCodeInvalidPath {
		t.Fatalf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidPath)
	}
}

func TestFetch(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ids, err := ds.IDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "CRLM-CT-1001" {
		t.Fatalf("ids = %v", ids)
	}

	v, err := ds.Fetch(ctx, "CRLM-CT-1001", "image")
	if err != nil {
		t.Fatal(err)
	}
	img := v.(*volume.Volume)
	if img.Shape != [3]int{2, 2, 2} || img.Dtype != volume.Int16 {
		t.Fatalf("image shape=%v dtype=%v", img.Shape, img.Dtype)
	}

	v, err = ds.Fetch(ctx, "CRLM-CT-1001", "mask")
	if err != nil {
		t.Fatal(err)
	}
	mask := v.(*volume.Volume)
	if mask.Shape != [3]int{2, 2, 1} || mask.At(1, 0, 0) != 1 {
		t.Fatalf("mask shape=%v voxel=%v", mask.Shape, mask.At(1, 0, 0))
	}

	v, err = ds.Fetch(ctx, "CRLM-CT-1001", "slice_locations")
	if err != nil {
		t.Fatal(err)
	}
	locs := v.([]float64)
	if len(locs) != 2 || locs[0] != 5 || locs[1] != 10 {
		t.Fatalf("slice_locations = %v", locs)
	}

	uid, err := ds.Fetch(ctx, "CRLM-CT-1001", "series_uid")
	if err != nil {
		t.Fatal(err)
	}
	if uid != "2.16.840.1.1" {
		t.Fatalf("series_uid = %v", uid)
	}
}
