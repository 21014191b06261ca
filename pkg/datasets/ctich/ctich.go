// Package ctich provides the CT-ICH head CT dataset: 75 head scans, 36
// of which carry intracranial hemorrhage segmentations (intraventricular,
// intraparenchymal, subarachnoid, epidural and subdural types).
package ctich

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/nifti"
	"github.com/scancat/scancat/pkg/volume"
)

const (
	name = "ct_ich"
	link = "https://physionet.org/content/ct-ich/1.3.1/"
)

// Entry registers the dataset in the catalog.
var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Head"},
		License:      dataset.PhysioNet_RHD_150,
		Link:         link,
		Modality:     []string{"CT"},
		PrepDataSize: "661M",
		RawDataSize:  "2.8G",
		Task:         []string{"Intracranial hemorrhage segmentation"},
	},
	Fields: fields,
}

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over a raw download of the physionet archive.
// The root must contain the ct_scans and masks folders plus the two
// metadata CSV files.
func New(root string) (dataset.Dataset, error) {
	if _, err := os.Stat(filepath.Join(root, "ct_scans")); err != nil {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	// Patients 59 to 65 were excluded from the published release.
	var ids []string
	for uid := 49; uid <= 130; uid++ {
		if uid >= 59 && uid <= 65 {
			continue
		}
		ids = append(ids, fmt.Sprintf("ct_ich_%03d", uid))
	}
	return &ds{root: root, ids: ids}, nil
}

func (d *ds) Name() string { return name }

func (d *ds) IDs(ctx context.Context) ([]string, error) { return d.ids, nil }

var fields = []dataset.Field{
	{Name: "image", Kind: dataset.KindVolume, Doc: "head CT scan, int16"},
	{Name: "mask", Kind: dataset.KindVolume, Doc: "binary hemorrhage segmentation"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "affine", Kind: dataset.KindMatrix, Doc: "4x4 voxel-to-world matrix"},
	{Name: "age", Kind: dataset.KindScalar, Doc: "patient age in years"},
	{Name: "gender", Kind: dataset.KindScalar, Doc: "patient gender"},
	{Name: "intraventricular_hemorrhage", Kind: dataset.KindScalar, Doc: "intraventricular hemorrhage diagnosed"},
	{Name: "intraparenchymal_hemorrhage", Kind: dataset.KindScalar, Doc: "intraparenchymal hemorrhage diagnosed"},
	{Name: "subarachnoid_hemorrhage", Kind: dataset.KindScalar, Doc: "subarachnoid hemorrhage diagnosed"},
	{Name: "epidural_hemorrhage", Kind: dataset.KindScalar, Doc: "epidural hemorrhage diagnosed"},
	{Name: "subdural_hemorrhage", Kind: dataset.KindScalar, Doc: "subdural hemorrhage diagnosed"},
	{Name: "fracture", Kind: dataset.KindScalar, Doc: "skull fracture diagnosed"},
	{Name: "notes", Kind: dataset.KindScalar, Doc: "radiologist notes, empty if none"},
	{Name: "diagnosis_rows", Kind: dataset.KindSeries, Doc: "per-slice rows of the raw diagnosis table"},
}

func (d *ds) Fields() []dataset.Field { return fields }

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	num := strings.TrimPrefix(id, "ct_ich_")
	switch field {
	case "image":
		img, err := d.load("ct_scans", num)
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(img.Vol), nil
	case "mask":
		img, err := d.load("masks", num)
		if err != nil {
			return nil, err
		}
		return volume.ToMask(img.Vol), nil
	case "spacing":
		img, err := d.load("ct_scans", num)
		if err != nil {
			return nil, err
		}
		return img.Vol.Spacing, nil
	case "affine":
		img, err := d.load("ct_scans", num)
		if err != nil {
			return nil, err
		}
		return img.Vol.Affine, nil
	case "age", "gender", "intraventricular_hemorrhage", "intraparenchymal_hemorrhage",
		"subarachnoid_hemorrhage", "epidural_hemorrhage", "subdural_hemorrhage",
		"fracture", "notes":
		row, err := d.demographicsRow(num)
		if err != nil {
			return nil, err
		}
		return row.field(field)
	case "diagnosis_rows":
		return d.diagnosisRows(num)
	}
	return nil, dataset.ErrUnknownField(d, field)
}

func (d *ds) load(dir, num string) (*nifti.Image, error) {
	return nifti.Load(filepath.Join(d.root, dir, num+".nii"))
}

// demographics columns, by position. The published CSV uses a ragged
// two-line header, so positions are more reliable than names.
const (
	colPatient = iota
	colAge
	colGender
	colIntraventricular
	colIntraparenchymal
	colSubarachnoid
	colEpidural
	colSubdural
	colFracture
	colNote
)

type demographics struct {
	cells []string
}

func (r demographics) flag(col int) bool {
	return col < len(r.cells) && strings.TrimSpace(r.cells[col]) != ""
}

func (r demographics) cell(col int) string {
	if col >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[col])
}

func (r demographics) field(name string) (any, error) {
	switch name {
	case "age":
		age, err := strconv.ParseFloat(r.cell(colAge), 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodeBadFormat, "bad age value %q", r.cell(colAge))
		}
		return age, nil
	case "gender":
		return r.cell(colGender), nil
	case "intraventricular_hemorrhage":
		return r.flag(colIntraventricular), nil
	case "intraparenchymal_hemorrhage":
		return r.flag(colIntraparenchymal), nil
	case "subarachnoid_hemorrhage":
		return r.flag(colSubarachnoid), nil
	case "epidural_hemorrhage":
		return r.flag(colEpidural), nil
	case "subdural_hemorrhage":
		return r.flag(colSubdural), nil
	case "fracture":
		return r.cell(colFracture) == "1", nil
	case "notes":
		return r.cell(colNote), nil
	}
	return nil, errors.New(errors.ErrCodeInternal, "unmapped demographics field %q", name)
}

func (d *ds) demographicsRow(num string) (demographics, error) {
	path := filepath.Join(d.root, "Patient_demographics.csv")
	rows, err := readCSV(path)
	if err != nil {
		return demographics{}, err
	}
	if len(rows) == 0 {
		return demographics{}, errors.New(errors.ErrCodeBadFormat, "%s is empty", path)
	}
	for _, row := range rows[1:] {
		if len(row) > colPatient && strings.TrimSpace(row[colPatient]) == strconv.Itoa(atoi(num)) {
			return demographics{cells: row}, nil
		}
	}
	return demographics{}, errors.New(errors.ErrCodeNotFound,
		"patient %s missing from %s", num, path)
}

// diagnosisRows returns the slice-level rows of the raw diagnosis table
// for one patient, keyed by the CSV header.
func (d *ds) diagnosisRows(num string) ([]map[string]string, error) {
	path := filepath.Join(d.root, "hemorrhage_diagnosis_raw_ct.csv")
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeBadFormat, "%s is empty", path)
	}
	header := rows[0]
	want := strconv.Itoa(atoi(num))
	var out []map[string]string
	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) != want {
			continue
		}
		m := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				m[strings.TrimSpace(h)] = strings.TrimSpace(row[i])
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", path)
		}
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "parsing %s", path)
	}
	return rows, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimLeft(s, "0"))
	return n
}
