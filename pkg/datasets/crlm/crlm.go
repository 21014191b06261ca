// Package crlm provides the TCIA Colorectal Liver Metastases collection:
// 197 abdominal CT cases with DICOM segmentation objects covering the
// liver, hepatic and portal veins, and tumour occurrences.
package crlm

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/dcmseries"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

const (
	name = "crlm"
	link = "https://wiki.cancerimagingarchive.net/pages/viewpage.action?pageId=89096268"
)

var Entry = dataset.Entry{
	Name: name,
	New:  New,
	Description: dataset.Description{
		BodyRegion:   []string{"Abdomen"},
		License:      dataset.CC_BY_40,
		Link:         link,
		Modality:     []string{"CT", "SEG"},
		PrepDataSize: "11G",
		RawDataSize:  "11G",
		Task:         []string{"Segmentation", "Classification"},
	},
	Fields: fields,
}

type ds struct {
	root string
	ids  []string
}

// New builds the dataset over the unpacked TCIA download, one case
// directory per patient.
func New(root string) (dataset.Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	if len(ids) == 0 {
		return nil, dataset.ErrMissingRoot(name, root, link)
	}
	sort.Strings(ids)
	return &ds{root: root, ids: ids}, nil
}

func (d *ds) Name() string { return name }

func (d *ds) IDs(ctx context.Context) ([]string, error) { return d.ids, nil }

var fields = []dataset.Field{
	{Name: "image", Kind: dataset.KindVolume, Doc: "abdominal CT, int16"},
	{Name: "mask", Kind: dataset.KindVolume, Doc: "liver and tumour mask from the SEG series"},
	{Name: "spacing", Kind: dataset.KindMatrix, Doc: "voxel spacing along (x, y, z)"},
	{Name: "slice_locations", Kind: dataset.KindMatrix, Doc: "per-slice positions along the acquisition axis"},
	{Name: "series_uid", Kind: dataset.KindScalar, Doc: "SeriesInstanceUID of the CT series"},
}

func (d *ds) Fields() []dataset.Field { return fields }

func (d *ds) Fetch(ctx context.Context, id, field string) (any, error) {
	if err := dataset.CheckID(d, d.ids, id); err != nil {
		return nil, err
	}
	series, err := dcmseries.ReadDir(ctx, filepath.Join(d.root, id))
	if err != nil {
		return nil, err
	}
	var ct, seg *dcmseries.Series
	for _, s := range series {
		if s.Slices[0].Modality == "SEG" {
			if seg == nil {
				seg = s
			}
		} else if ct == nil {
			ct = s
		}
	}
	if ct == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "case %s has no CT series", id)
	}
	switch field {
	case "image":
		vol, err := ct.Volume()
		if err != nil {
			return nil, err
		}
		return volume.ToInt16(vol), nil
	case "spacing":
		vol, err := ct.Volume()
		if err != nil {
			return nil, err
		}
		return vol.Spacing, nil
	case "slice_locations":
		ct.Sort()
		locs := make([]float64, len(ct.Slices))
		for i, sl := range ct.Slices {
			locs[i] = sl.Position[2]
		}
		return locs, nil
	case "series_uid":
		return ct.UID, nil
	case "mask":
		if seg == nil {
			return nil, errors.New(errors.ErrCodeNotFound, "case %s has no segmentation series", id)
		}
		vol, err := seg.Volume()
		if err != nil {
			return nil, err
		}
		return volume.ToMask(vol), nil
	}
	return nil, dataset.ErrUnknownField(d, field)
}
