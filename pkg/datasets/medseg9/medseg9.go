// Package medseg9 provides the MedSeg COVID-19 CT segmentation dataset:
// nine annotated chest scans with lung and COVID lesion masks.
//
// The raw download is three zip archives (rp_im.zip, rp_lung_msk.zip,
// rp_msk.zip) that are read in place, without unpacking.
package medseg9

import (
	"archive/zip"
	"context"
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
	name = "medseg9"
	link = "http://medicalsegmentation.com/covid19/"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Chest"},
		License:      dataset.CC0_10,
		Link:         link,
		Modality:     []string{"CT"},
		PrepDataSize: "300M",
		RawDataSize:  "310M",
		Task:         []string{"COVID-19 segmentation"},
	},
	Fields: fields,
}

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over a folder holding the three raw archives.
// IDs are enumerated from the mask archive members.
func New(root string) (dataset.Dataset, error) {
	zf, err := zip.OpenReader(filepath.Join(root, "rp_msk.zip"))
	if err != nil {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	defer zf.Close()

	seen := map[string]bool{}
	for _, f := range zf.File {
		if f.FileInfo().IsDir() {
			continue
		}
		stem := path.Base(f.Name)
		stem = strings.SplitN(stem, ".nii", 2)[0]
		seen[name+"_"+stem] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &ds{root: root, ids: ids}, nil
}

func (d *ds) Name() string { return name }

func (d *ds) IDs(ctx context.Context) ([]string, error) { return d.ids, nil }

var fields = []dataset.Field{
	{Name: "image", Kind: dataset.KindVolume, Doc: "chest CT scan, int16"},
	{Name: "lungs", Kind: dataset.KindVolume, Doc: "binary lung mask"},
	{Name: "covid", Kind: dataset.KindVolume, Doc: "lesion labels: 0 normal, 1 ground-glass opacity, 2 consolidation"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "affine", Kind: dataset.KindMatrix, Doc: "4x4 voxel-to-world matrix"},
}

func (d *ds) Fields() []dataset.Field { return fields }

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	num := strings.TrimPrefix(id, name+"_")
	switch field {
	case "image":
		img, err := d.member("rp_im.zip", "rp_im", num)
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(img.Vol), nil
	case "lungs":
		img, err := d.member("rp_lung_msk.zip", "rp_lung_msk", num)
		if err != nil {
			return nil, err
		}
		return volume.ToMask(img.Vol), nil
	case "covid":
		img, err := d.member("rp_msk.zip", "rp_msk", num)
		if err != nil {
			return nil, err
		}
		return volume.ToUint8(img.Vol), nil
	case "spacing":
		img, err := d.member("rp_im.zip", "rp_im", num)
		if err != nil {
			return nil, err
		}
		return img.Vol.Spacing, nil
	case "affine":
		img, err := d.member("rp_im.zip", "rp_im", num)
		if err != nil {
			return nil, err
		}
		return img.Vol.Affine, nil
	}
	return nil, dataset.ErrUnknownField(d, field)
}

// member decodes one nii.gz archive member.
func (d *ds) member(archive, dir, num string) (*nifti.Image, error) {
	zf, err := zip.OpenReader(filepath.Join(d.root, archive))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", archive)
	}
	defer zf.Close()

	member := dir + "/" + num + ".nii.gz"
	f, err := zf.Open(member)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s has no member %s", archive, member)
	}
	defer f.Close()
	img, err := nifti.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "decoding %s!%s", archive, member)
	}
	return img, nil
}
