// Package livermedseg provides the MedSeg liver segments dataset: 50
// abdominal CT scans with liver segment annotations, read out of the
// img.zip and mask.zip archives in place.
package livermedseg

import (
	"archive/zip"
	"context"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/nifti"
	"github.com/scancat/scancat/pkg/volume"
)

const (
	name = "liver_medseg"
	link = "https://www.medseg.ai/database/liver-segments-50-cases"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Chest", "Abdomen"},
		License:      dataset.CC_BYSA_40,
		Link:         link,
		Modality:     []string{"CT"},
		PrepDataSize: "1.88G",
		RawDataSize:  "616M",
		Task:         []string{"Segmentation"},
	},
	Fields: fields,
}

var numRe = regexp.MustCompile(`\d+`)

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over a folder holding img.zip and mask.zip.
func New(root string) (dataset.Dataset, error) {
	zf, err := zip.OpenReader(filepath.Join(root, "img.zip"))
	if err != nil {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	defer zf.Close()

	seen := map[string]bool{}
	for _, f := range zf.File {
		if f.FileInfo().IsDir() {
			continue
		}
		num := numRe.FindString(path.Base(f.Name))
		if num == "" {
			continue
		}
		seen[name+"_"+num] = true
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
	{Name: "image", Kind: dataset.KindVolume, Doc: "abdominal CT scan, int16"},
	{Name: "mask", Kind: dataset.KindVolume, Doc: "liver segment labels, uint8"},
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
		img, err := d.member("img.zip", "img"+num+".nii.gz")
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(img.Vol), nil
	case "mask":
		img, err := d.member("mask.zip", "mask"+num+".nii.gz")
		if err != nil {
			return nil, err
		}
		return volume.ToUint8(img.Vol), nil
	case "spacing":
		img, err := d.member("img.zip", "img"+num+".nii.gz")
		if err != nil {
			return nil, err
		}
		return img.Vol.Spacing, nil
	case "affine":
		img, err := d.member("img.zip", "img"+num+".nii.gz")
		if err != nil {
			return nil, err
		}
		return img.Vol.Affine, nil
	}
	return nil, dataset.ErrUnknownField(d, field)
}

func (d *ds) member(archive, member string) (*nifti.Image, error) {
	zf, err := zip.OpenReader(filepath.Join(d.root, archive))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", archive)
	}
	defer zf.Close()

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
