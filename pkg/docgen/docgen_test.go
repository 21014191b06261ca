package docgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/datasets"
)

func testRegistry(t *testing.T) *dataset.Registry {
	t.Helper()
	reg := dataset.NewRegistry()
	stub := func(root string) (dataset.Dataset, error) { return nil, nil }
	reg.MustRegister(dataset.Entry{
		Name: "ctich",
		New:  stub,
		Description: dataset.Description{
			BodyRegion:   []string{"Head"},
			License:      dataset.License{Name: "PhysioNet RHD 1.5.0", URL: "https://physionet.org/content/ct-ich/view-license/1.3.1/"},
			Link:         "https://physionet.org/content/ct-ich/1.3.1/",
			Modality:     []string{"CT"},
			RawDataSize:  "2.8G",
			PrepDataSize: "661M",
			Task:         []string{"Intracranial hemorrhage segmentation"},
		},
		Fields: []dataset.Field{
			{Name: "image", Kind: dataset.KindVolume, Doc: "head CT scan, int16"},
			{Name: "age", Kind: dataset.KindScalar, Doc: "patient age in years"},
		},
	})
	reg.MustRegister(dataset.Entry{
		Name:        "bare",
		New:         stub,
		Description: dataset.Description{},
	})
	return reg
}

func TestRenderIndex(t *testing.T) {
	data, err := RenderIndex(testRegistry(t))
	if err != nil {
		t.Fatalf("RenderIndex() error = %v", err)
	}
	got := string(data)

	for _, want := range []string{
		"| Name | Modality | Body region |",
		"| [ctich](ctich.md) | CT | Head | Intracranial hemorrhage segmentation | [PhysioNet RHD 1.5.0](https://physionet.org/content/ct-ich/view-license/1.3.1/) | 2.8G | 661M |",
		"| [bare](bare.md) | - | - | - | - | - | - |",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("index missing %q:\n%s", want, got)
		}
	}
	// Rows come out in registry order, which is sorted by name.
	if strings.Index(got, "[bare]") > strings.Index(got, "[ctich]") {
		t.Error("index rows not sorted by name")
	}
}

func TestRenderDataset(t *testing.T) {
	reg := testRegistry(t)
	e, err := reg.Get("ctich")
	if err != nil {
		t.Fatal(err)
	}
	data, err := RenderDataset(e)
	if err != nil {
		t.Fatalf("RenderDataset() error = %v", err)
	}
	got := string(data)

	for _, want := range []string{
		"# ctich",
		"Source: <https://physionet.org/content/ct-ich/1.3.1/>",
		"## Fields",
		"| image | volume | head CT scan, int16 |",
		"| age | scalar | patient age in years |",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("page missing %q:\n%s", want, got)
		}
	}
}

func TestGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	reg := testRegistry(t)
	if err := Generate(dir, reg); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, name := range []string{"datasets.md", "ctich.md", "bare.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	reg := dataset.NewRegistry()
	for _, e := range datasets.All {
		reg.MustRegister(e)
	}
	a, err := RenderIndex(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RenderIndex(reg)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("RenderIndex output not deterministic")
	}
	for _, e := range reg.All() {
		page, err := RenderDataset(e)
		if err != nil {
			t.Fatalf("RenderDataset(%s) error = %v", e.Name, err)
		}
		if !strings.Contains(string(page), "## Fields") {
			t.Errorf("page for %s has no fields section", e.Name)
		}
	}
}
