// Package verse provides the VerSe vertebrae segmentation dataset from
// the MICCAI 2019/2020 challenges. The challenge zips are read in place:
// scans live under */rawdata/, vertebrae masks and centroid annotations
// under */derivatives/.
package verse

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/nifti"
	"github.com/scancat/scancat/pkg/volume"
)

const (
	name = "verse"
	link = "https://osf.io/4skx2/"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:  []string{"Thorax", "Abdomen"},
		License:     dataset.CC_BYSA_40,
		Link:        link,
		Modality:    []string{"CT"},
		RawDataSize: "97G",
		Task:        []string{"Vertebrae Segmentation"},
	},
	Fields: fields,
}

// loc points at one raw scan inside a challenge archive.
type loc struct {
	archive string // absolute path of the zip
	member  string // rawdata member holding the scan
}

type ds struct {
	root string
	ids  []string
	locs map[string]loc
}

// New indexes every *.zip under root. Entry ids come from the rawdata
// member names: multi-scan studies carry a split-<id> infix, single-scan
// studies use the patient id.
func New(root string) (dataset.Dataset, error) {
	archives, err := filepath.Glob(filepath.Join(root, "*.zip"))
	if err != nil {
		return nil, err
	}
	locs := map[string]loc{}
	for _, archive := range archives {
		zf, err := zip.OpenReader(archive)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "opening %s", archive)
		}
		for _, f := range zf.File {
			if !strings.Contains(f.Name, "/rawdata/") || strings.HasSuffix(f.Name, "/") {
				continue
			}
			id := scanID(f.Name)
			if id == "" {
				continue
			}
			if _, dup := locs[id]; dup {
				zf.Close()
				return nil, errors.New(errors.ErrCodeBadFormat,
					"id %q appears in more than one rawdata member", id)
			}
			locs[id] = loc{archive: archive, member: f.Name}
		}
		zf.Close()
	}
	if len(locs) == 0 {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	ids := make([]string, 0, len(locs))
	for id := range locs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &ds{root: root, ids: ids, locs: locs}, nil
}

// scanID derives the entry id from a rawdata member path.
func scanID(member string) string {
	base := path.Base(member)
	if idx := strings.Index(base, "split"); idx >= 0 {
		rest := base[idx+len("split")+1:]
		if cut := strings.Index(rest, "_"); cut >= 0 {
			rest = rest[:cut]
		}
		return rest
	}
	return patientOf(member)
}

// patientOf strips the sub- prefix from the patient directory.
func patientOf(member string) string {
	dir := path.Base(path.Dir(member))
	if len(dir) <= 4 {
		return ""
	}
	return dir[4:]
}

// topOf returns the challenge directory at the archive root, e.g.
// dataset-verse19training.
func topOf(member string) string {
	parts := strings.SplitN(member, "/", 2)
	return parts[0]
}

func (d *ds) Name() string { return name }

func (d *ds) IDs(ctx context.Context) ([]string, error) { return d.ids, nil }

var fields = []dataset.Field{
	{Name: "image", Kind: dataset.KindVolume, Doc: "spine CT scan, int16"},
	{Name: "masks", Kind: dataset.KindVolume, Doc: "vertebrae labels, uint8"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "affine", Kind: dataset.KindMatrix, Doc: "4x4 voxel-to-world matrix"},
	{Name: "centers", Kind: dataset.KindSeries, Doc: "vertebrae centers, label -> [x y z]"},
	{Name: "split", Kind: dataset.KindScalar, Doc: "challenge split: training, validate or test"},
	{Name: "patient", Kind: dataset.KindScalar, Doc: "patient id shared by split scans"},
	{Name: "year", Kind: dataset.KindScalar, Doc: "challenge year: 2019 or 2020"},
}

func (d *ds) Fields() []dataset.Field { return fields }

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	l := d.locs[id]
	switch field {
	case "image":
		img, err := d.image(l)
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(img.Vol), nil
	case "spacing":
		img, err := d.image(l)
		if err != nil {
			return nil, err
		}
		return img.Vol.Spacing, nil
	case "affine":
		img, err := d.image(l)
		if err != nil {
			return nil, err
		}
		return img.Vol.Affine, nil
	case "masks":
		data, member, err := d.derivative(l, id, ".nii.gz")
		if err != nil {
			return nil, err
		}
		img, err := nifti.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "decoding %s", member)
		}
		return volume.ToUint8(img.Vol), nil
	case "centers":
		data, member, err := d.derivative(l, id, ".json")
		if err != nil {
			return nil, err
		}
		return parseCenters(data, member)
	case "split":
		top := topOf(l.member)
		parts := strings.Split(top, "_")
		split := parts[len(parts)-1]
		if cut := strings.LastIndex(split, "9"); cut >= 0 {
			split = split[cut+1:]
		}
		return split, nil
	case "patient":
		return patientOf(l.member), nil
	case "year":
		top := topOf(l.member)
		if strings.HasPrefix(top, "dataset-verse") && strings.Contains(top, "19") {
			return 2019, nil
		}
		return 2020, nil
	}
	return nil, dataset.ErrUnknownField(d, field)
}

func (d *ds) image(l loc) (*nifti.Image, error) {
	zf, err := zip.OpenReader(l.archive)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", l.archive)
	}
	defer zf.Close()
	f, err := zf.Open(l.member)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "member %s", l.member)
	}
	defer f.Close()
	img, err := nifti.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "decoding %s", l.member)
	}
	return img, nil
}

// derivative finds the single annotation member for id with the given
// suffix under the study's derivatives directory.
func (d *ds) derivative(l loc, id, suffix string) ([]byte, string, error) {
	prefix := topOf(l.member) + "/derivatives/" + path.Base(path.Dir(l.member)) + "/"
	zf, err := zip.OpenReader(l.archive)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", l.archive)
	}
	defer zf.Close()

	var match *zip.File
	for _, f := range zf.File {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, suffix) {
			continue
		}
		if !strings.Contains(path.Base(f.Name), id) {
			continue
		}
		if match != nil {
			return nil, "", errors.New(errors.ErrCodeBadFormat,
				"multiple %s annotations for id %q", suffix, id)
		}
		match = f
	}
	if match == nil {
		return nil, "", errors.New(errors.ErrCodeNotFound,
			"no %s annotation for id %q", suffix, id)
	}
	r, err := match.Open()
	if err != nil {
		return nil, "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	return data, match.Name, nil
}

// parseCenters decodes a centroid annotation. The first array element
// describes the patient orientation and is skipped; the rest carry a
// vertebra label and its center coordinates.
func parseCenters(data []byte, member string) (map[string][3]float64, error) {
	var items []struct {
		Label json.Number `json:"label"`
		X     float64     `json:"X"`
		Y     float64     `json:"Y"`
		Z     float64     `json:"Z"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "parsing %s", member)
	}
	out := map[string][3]float64{}
	for _, it := range items {
		if it.Label.String() == "" {
			continue
		}
		out[it.Label.String()] = [3]float64{it.X, it.Y, it.Z}
	}
	return out, nil
}
