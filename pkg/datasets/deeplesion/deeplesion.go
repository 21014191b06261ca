// Package deeplesion provides the NIH DeepLesion dataset: 20094 CT
// sub-volumes around bookmarked lesions, converted to nii.gz with the
// authors' DL_save_nifti.py script, plus the DL_info.csv lesion table.
package deeplesion

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/nifti"
	"github.com/scancat/scancat/pkg/volume"
)

const (
	name = "deeplesion"
	link = "https://nihcc.app.box.com/v/DeepLesion"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Abdomen", "Thorax"},
		License:      dataset.License{Name: "DeepLesion data license"},
		Link:         link,
		Modality:     []string{"CT"},
		PrepDataSize: "259G",
		RawDataSize:  "259G",
		Task:         []string{"Localisation", "Detection", "Classification"},
	},
	Fields: fields,
}

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over a folder holding DL_info.csv and the
// Images_nifti subfolder.
func New(root string) (dataset.Dataset, error) {
	files, err := filepath.Glob(filepath.Join(root, "Images_nifti", "*.nii.gz"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(filepath.Base(f), ".nii.gz"))
	}
	sort.Strings(ids)
	return &ds{root: root, ids: ids}, nil
}

func (d *ds) Name() string { return name }

func (d *ds) IDs(ctx context.Context) ([]string, error) { return d.ids, nil }

var fields = []dataset.Field{
	{Name: "image", Kind: dataset.KindVolume, Doc: "lesion sub-volume, int16"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "affine", Kind: dataset.KindMatrix, Doc: "4x4 voxel-to-world matrix"},
	{Name: "patient_id", Kind: dataset.KindScalar, Doc: "patient index from the file name"},
	{Name: "study_id", Kind: dataset.KindScalar, Doc: "study index from the file name"},
	{Name: "series_id", Kind: dataset.KindScalar, Doc: "series index from the file name"},
	{Name: "sex", Kind: dataset.KindScalar, Doc: "patient gender from DL_info.csv"},
	{Name: "age", Kind: dataset.KindScalar, Doc: "patient age, -1 when unknown"},
	{Name: "ct_window", Kind: dataset.KindScalar, Doc: "recommended DICOM display window"},
	{Name: "lesions", Kind: dataset.KindSeries, Doc: "bookmarked lesions with bounding boxes"},
}

func (d *ds) Fields() []dataset.Field { return fields }

// Lesion is one bookmarked finding from DL_info.csv.
type Lesion struct {
	KeySlice int       `json:"key_slice"`
	Type     int       `json:"type"`
	Box      []float64 `json:"box"` // x0, y0, x1, y1 on the key slice
}

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	switch field {
	case "image":
		img, err := d.image(id)
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(img.Vol), nil
	case "spacing":
		img, err := d.image(id)
		if err != nil {
			return nil, err
		}
		return img.Vol.Spacing, nil
	case "affine":
		img, err := d.image(id)
		if err != nil {
			return nil, err
		}
		return img.Vol.Affine, nil
	case "patient_id", "study_id", "series_id":
		parts := strings.Split(id, "_")
		if len(parts) < 3 {
			return nil, errors.New(errors.ErrCodeBadFormat, "id %q has no patient_study_series prefix", id)
		}
		switch field {
		case "patient_id":
			return parts[0], nil
		case "study_id":
			return parts[1], nil
		default:
			return parts[2], nil
		}
	case "sex", "age", "ct_window", "lesions":
		return d.lesionInfo(id, field)
	}
	return nil, dataset.ErrUnknownField(d, field)
}

func (d *ds) image(id string) (*nifti.Image, error) {
	return nifti.Load(filepath.Join(d.root, "Images_nifti", id+".nii.gz"))
}

// lesionInfo reads DL_info.csv and aggregates the rows belonging to the
// id's series. A sub-volume can hold several bookmarked lesions.
func (d *ds) lesionInfo(id, field string) (any, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return nil, errors.New(errors.ErrCodeBadFormat, "id %q has no patient_study_series prefix", id)
	}
	prefix := strings.Join(parts[:3], "_") + "_"

	path := filepath.Join(d.root, "DL_info.csv")
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
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeBadFormat, "%s is empty", path)
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	cell := func(row []string, header string) string {
		i, ok := col[header]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	sex, window := "", ""
	age := -1.0
	var lesions []Lesion
	for _, row := range rows[1:] {
		if !strings.HasPrefix(cell(row, "File_name"), prefix) {
			continue
		}
		if sex == "" {
			sex = cell(row, "Patient_gender")
		}
		if window == "" {
			window = cell(row, "DICOM_windows")
		}
		if age < 0 {
			if a, err := strconv.ParseFloat(cell(row, "Patient_age"), 64); err == nil {
				age = a
			}
		}
		lesion := Lesion{Box: parseFloats(cell(row, "Bounding_boxes"))}
		if n, err := strconv.Atoi(cell(row, "Key_slice_index")); err == nil {
			lesion.KeySlice = n
		}
		if n, err := strconv.Atoi(cell(row, "Coarse_lesion_type")); err == nil {
			lesion.Type = n
		}
		lesions = append(lesions, lesion)
	}
	if len(lesions) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no DL_info.csv rows for id %q", id)
	}
	switch field {
	case "sex":
		return sex, nil
	case "age":
		return age, nil
	case "ct_window":
		return window, nil
	}
	return lesions, nil
}

// parseFloats splits a comma-separated numeric list, the format used by
// the Bounding_boxes and Measurement_coordinates columns.
func parseFloats(s string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}
