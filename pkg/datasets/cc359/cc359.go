// Package cc359 provides the Calgary-Campinas brain MR dataset: 359 T1
// volumes across vendors and field strengths, with silver-standard brain,
// hippocampus and tissue masks.
//
// File names follow CC<id>_<vendor>_<field>_<age>_<gender>.nii.gz; the
// demographic fields are parsed from the name.
package cc359

import (
	"archive/zip"
	"context"
	"path"
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
	name = "cc359"
	link = "https://sites.google.com/view/calgary-campinas-dataset/home"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Head"},
		License:      dataset.CC_BYND_40,
		Link:         link,
		Modality:     []string{"MRI T1"},
		PrepDataSize: "14.66G",
		RawDataSize:  "4.1G",
		Task:         []string{"Segmentation"},
	},
	Fields: fields,
}

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over a folder holding Original.zip, the two
// mask archives and the WM-GM-CSF folder.
func New(root string) (dataset.Dataset, error) {
	zf, err := zip.OpenReader(filepath.Join(root, "Original.zip"))
	if err != nil {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	defer zf.Close()

	seen := map[string]bool{}
	for _, f := range zf.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(f.Name)
		if strings.HasPrefix(base, "CC") {
			seen[strings.SplitN(base, "_", 2)[0]] = true
		}
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
	{Name: "image", Kind: dataset.KindVolume, Doc: "T1 brain MR, int16"},
	{Name: "brain", Kind: dataset.KindVolume, Doc: "silver-standard brain mask"},
	{Name: "hippocampus", Kind: dataset.KindVolume, Doc: "STAPLE hippocampus mask, absent for some subjects"},
	{Name: "wm_gm_csf", Kind: dataset.KindVolume, Doc: "white matter / gray matter / CSF labels"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "affine", Kind: dataset.KindMatrix, Doc: "4x4 voxel-to-world matrix"},
	{Name: "vendor", Kind: dataset.KindScalar, Doc: "scanner vendor from the file name"},
	{Name: "field", Kind: dataset.KindScalar, Doc: "field strength in tesla"},
	{Name: "age", Kind: dataset.KindScalar, Doc: "subject age in years"},
	{Name: "sex", Kind: dataset.KindScalar, Doc: "subject gender from the file name"},
}

func (d *ds) Fields() []dataset.Field { return fields }

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	switch field {
	case "image":
		img, _, err := d.fromArchive("Original.zip", id)
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(img.Vol), nil
	case "spacing":
		img, _, err := d.fromArchive("Original.zip", id)
		if err != nil {
			return nil, err
		}
		return img.Vol.Spacing, nil
	case "affine":
		img, _, err := d.fromArchive("Original.zip", id)
		if err != nil {
			return nil, err
		}
		return img.Vol.Affine, nil
	case "brain":
		img, _, err := d.fromArchive("Silver-standard-machine-learning.zip", id)
		if err != nil {
			return nil, err
		}
		return volume.ToMask(img.Vol), nil
	case "hippocampus":
		img, _, err := d.fromArchive("hippocampus_staple.zip", id)
		if err != nil {
			return nil, err
		}
		return volume.ToUint8(img.Vol), nil
	case "wm_gm_csf":
		return d.tissues(id)
	case "vendor", "field", "age", "sex":
		_, member, err := d.find("Original.zip", id)
		if err != nil {
			return nil, err
		}
		return nameMeta(member, field)
	}
	return nil, dataset.ErrUnknownField(d, field)
}

// find locates the archive member whose base name starts with id.
func (d *ds) find(archive, id string) (string, string, error) {
	full := filepath.Join(d.root, archive)
	zf, err := zip.OpenReader(full)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", archive)
	}
	defer zf.Close()
	for _, f := range zf.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(path.Base(f.Name), id) {
			return full, f.Name, nil
		}
	}
	return "", "", errors.New(errors.ErrCodeNotFound, "%s has no file for id %q", archive, id)
}

func (d *ds) fromArchive(archive, id string) (*nifti.Image, string, error) {
	full, member, err := d.find(archive, id)
	if err != nil {
		return nil, "", err
	}
	zf, err := zip.OpenReader(full)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", archive)
	}
	defer zf.Close()
	f, err := zf.Open(member)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, err := nifti.Decode(f)
	if err != nil {
		return nil, "", errors.Wrap(errors.GetCode(err), err, "decoding %s!%s", archive, member)
	}
	return img, member, nil
}

// tissues loads the WM-GM-CSF labels, which ship as loose files rather
// than an archive.
func (d *ds) tissues(id string) (any, error) {
	matches, err := filepath.Glob(filepath.Join(d.root, "WM-GM-CSF", id+"*"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no WM-GM-CSF labels for id %q", id)
	}
	img, err := nifti.Load(matches[0])
	if err != nil {
		return nil, err
	}
	return volume.ToUint8(img.Vol), nil
}

// nameMeta parses one demographic component out of a
// CC<id>_<vendor>_<field>_<age>_<gender>.nii.gz file name.
func nameMeta(member, field string) (any, error) {
	base := strings.TrimSuffix(path.Base(member), ".nii.gz")
	parts := strings.Split(base, "_")
	if len(parts) < 5 {
		return nil, errors.New(errors.ErrCodeBadFormat, "file name %q has no demographic suffix", base)
	}
	switch field {
	case "vendor":
		return parts[1], nil
	case "field":
		return parts[2], nil
	case "age":
		age, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodeBadFormat, "bad age %q in file name", parts[3])
		}
		return age, nil
	case "sex":
		return parts[4], nil
	}
	return nil, errors.New(errors.ErrCodeInternal, "unmapped name field %q", field)
}
