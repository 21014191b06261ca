package deeplesion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/nifti"
	"github.com/scancat/scancat/pkg/volume"
)

func writeRawTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Images_nifti")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	img, err := volume.NewFloat64([3]int{2, 2, 1}, []float64{-700, 40, 60, 90})
	if err != nil {
		t.Fatal(err)
	}
	img.Spacing = [3]float64{0.75, 0.75, 1}
	for _, id := range []string{"004408_01_02_088-097", "000001_03_01_010-019"} {
		if err := nifti.Save(filepath.Join(dir, id+".nii.gz"), img); err != nil {
			t.Fatal(err)
		}
	}

	info := "File_name,Patient_gender,Patient_age,Key_slice_index,Coarse_lesion_type,Bounding_boxes,DICOM_windows\n" +
		"004408_01_02_092.png,F,54,92,3,\"223.5, 190.7, 268.2, 235.9\",\"-175, 275\"\n" +
		"004408_01_02_095.png,F,54,95,3,\"101.0, 120.0, 150.0, 160.0\",\"-175, 275\"\n" +
		"000001_03_01_015.png,M,61,15,1,\"10, 20, 30, 40\",\"-1024, 3071\"\n"
	if err := os.WriteFile(filepath.Join(root, "DL_info.csv"), []byte(info), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestNewRequiresImages(t *testing.T) {
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
	if len(ids) != 2 || ids[0] != "000001_03_01_010-019" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestFetchImage(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	v, err := ds.Fetch(context.Background(), "004408_01_02_088-097", "image")
	if err != nil {
		t.Fatal(err)
	}
	img := v.(*volume.Volume)
	if img.Dtype != volume.Int16 || img.At(0, 0, 0) != -700 {
		t.Fatalf("dtype=%v voxel=%v", img.Dtype, img.At(0, 0, 0))
	}
}

func TestFetchIDComponents(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for field, want := range map[string]string{
		"patient_id": "004408",
		"study_id":   "01",
		"series_id":  "02",
	} {
		got, err := ds.Fetch(ctx, "004408_01_02_088-097", field)
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", field, got, want)
		}
	}
}

func TestFetchLesionTable(t *testing.T) {
	ds, err := New(writeRawTree(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for field, want := range map[string]any{
		"sex":       "F",
		"age":       54.0,
		"ct_window": "-175, 275",
	} {
		got, err := ds.Fetch(ctx, "004408_01_02_088-097", field)
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", field, got, want)
		}
	}

	v, err := ds.Fetch(ctx, "004408_01_02_088-097", "lesions")
	if err != nil {
		t.Fatal(err)
	}
	lesions := v.([]Lesion)
	if len(lesions) != 2 {
		t.Fatalf("got %d lesions, want 2", len(lesions))
	}
	if lesions[0].KeySlice != 92 || lesions[0].Type != 3 {
		t.Fatalf("lesion[0] = %+v", lesions[0])
	}
	if len(lesions[0].Box) != 4 || lesions[0].Box[0] != 223.5 {
		t.Fatalf("box = %v", lesions[0].Box)
	}
}
