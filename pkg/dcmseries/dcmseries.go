// Package dcmseries assembles DICOM slice files into 3D volumes.
//
// CT and MR studies ship one file per axial slice. This package parses
// each file, groups slices by SeriesInstanceUID, orders them along the
// acquisition axis and stacks the pixel data into a volume.Volume.
package dcmseries

import (
	"context"
	"encoding/binary"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

// Slice holds the attributes of a single DICOM file that matter for
// volume assembly.
type Slice struct {
	Path              string
	SOPInstanceUID    string
	SeriesInstanceUID string
	StudyInstanceUID  string
	Modality          string
	InstanceNumber    int
	Position          [3]float64
	Orientation       [6]float64
	PixelSpacing      [2]float64
	Rows              int
	Columns           int
	BitsAllocated     int
	Signed            bool
	RescaleSlope      float64
	RescaleIntercept  float64

	pixels []byte
}

// Series is a group of slices sharing a SeriesInstanceUID.
type Series struct {
	UID    string
	Slices []*Slice
}

// ReadFile parses one DICOM file into a Slice.
func ReadFile(path string) (*Slice, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "opening %s", path)
		}
		return nil, err
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "parsing %s", path)
	}
	s.Path = path
	return s, nil
}

// Decode parses DICOM data from a reader into a Slice.
func Decode(r io.Reader) (*Slice, error) {
	ds, err := dicom.Parse(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "parsing dicom")
	}
	s := &Slice{
		SOPInstanceUID:    stringAttr(ds, dicom.SOPInstanceUIDTag),
		SeriesInstanceUID: stringAttr(ds, dicom.SeriesInstanceUIDTag),
		StudyInstanceUID:  stringAttr(ds, dicom.StudyInstanceUIDTag),
		Modality:          stringAttr(ds, dicom.ModalityTag),
		InstanceNumber:    intAttr(ds, dicom.InstanceNumberTag),
		Rows:              intAttr(ds, dicom.RowsTag),
		Columns:           intAttr(ds, dicom.ColumnsTag),
		BitsAllocated:     intAttr(ds, dicom.BitsAllocatedTag),
		Signed:            intAttr(ds, dicom.PixelRepresentationTag) == 1,
		RescaleSlope:      1,
		RescaleIntercept:  0,
	}
	if s.SeriesInstanceUID == "" {
		return nil, errors.New(errors.ErrCodeBadFormat, "missing SeriesInstanceUID")
	}
	if s.Rows <= 0 || s.Columns <= 0 {
		return nil, errors.New(errors.ErrCodeBadFormat, "missing image dimensions")
	}
	if pos, ok := floatsAttr(ds, dicom.ImagePositionPatientTag, 3); ok {
		copy(s.Position[:], pos)
	}
	if orient, ok := floatsAttr(ds, dicom.ImageOrientationPatientTag, 6); ok {
		copy(s.Orientation[:], orient)
	} else {
		// Axial identity orientation when the file omits it.
		s.Orientation = [6]float64{1, 0, 0, 0, 1, 0}
	}
	if sp, ok := floatsAttr(ds, dicom.PixelSpacingTag, 2); ok {
		// DICOM stores row spacing first, i.e. spacing between rows (y),
		// then column spacing (x).
		s.PixelSpacing = [2]float64{sp[1], sp[0]}
	}
	if slope, ok := floatsAttr(ds, dicom.RescaleSlopeTag, 1); ok {
		s.RescaleSlope = slope[0]
	}
	if inter, ok := floatsAttr(ds, dicom.RescaleInterceptTag, 1); ok {
		s.RescaleIntercept = inter[0]
	}
	pixels, err := pixelBytes(ds)
	if err != nil {
		return nil, err
	}
	want := s.Rows * s.Columns * s.BitsAllocated / 8
	if len(pixels) < want {
		return nil, errors.New(errors.ErrCodeBadFormat,
			"pixel data truncated: %d bytes, want %d", len(pixels), want)
	}
	s.pixels = pixels[:want]
	return s, nil
}

// ReadDir parses every file under dir and groups the slices into series.
// Files that fail to parse are skipped. Series are returned sorted by
// descending slice count, so the primary acquisition comes first.
func ReadDir(ctx context.Context, dir string) ([]*Series, error) {
	byUID := map[string]*Series{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := ReadFile(path)
		if err != nil {
			return nil
		}
		series, ok := byUID[s.SeriesInstanceUID]
		if !ok {
			series = &Series{UID: s.SeriesInstanceUID}
			byUID[s.SeriesInstanceUID] = series
		}
		series.Slices = append(series.Slices, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(byUID) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no dicom series under %s", dir)
	}
	out := make([]*Series, 0, len(byUID))
	for _, s := range byUID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Slices) != len(out[j].Slices) {
			return len(out[i].Slices) > len(out[j].Slices)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

// normal returns the slice normal, the cross product of the in-plane
// orientation vectors.
func (s *Slice) normal() [3]float64 {
	r := s.Orientation[:3]
	c := s.Orientation[3:]
	return [3]float64{
		r[1]*c[2] - r[2]*c[1],
		r[2]*c[0] - r[0]*c[2],
		r[0]*c[1] - r[1]*c[0],
	}
}

// axisPosition projects the slice position onto the series normal.
func (s *Slice) axisPosition() float64 {
	n := s.normal()
	return n[0]*s.Position[0] + n[1]*s.Position[1] + n[2]*s.Position[2]
}

// Sort orders slices along the acquisition axis and drops duplicates
// occupying the same position. Slices without position data fall back
// to InstanceNumber ordering.
func (s *Series) Sort() {
	havePositions := false
	for _, sl := range s.Slices {
		if sl.Position != [3]float64{} {
			havePositions = true
			break
		}
	}
	if havePositions {
		sort.Slice(s.Slices, func(i, j int) bool {
			return s.Slices[i].axisPosition() < s.Slices[j].axisPosition()
		})
		deduped := s.Slices[:0]
		for i, sl := range s.Slices {
			if i > 0 && math.Abs(sl.axisPosition()-deduped[len(deduped)-1].axisPosition()) < 1e-4 {
				continue
			}
			deduped = append(deduped, sl)
		}
		s.Slices = deduped
		return
	}
	sort.Slice(s.Slices, func(i, j int) bool {
		return s.Slices[i].InstanceNumber < s.Slices[j].InstanceNumber
	})
}

// SliceSpacing returns the median gap between adjacent slice positions.
// Returns 1 when positions are unavailable or the series has one slice.
func (s *Series) SliceSpacing() float64 {
	if len(s.Slices) < 2 {
		return 1
	}
	gaps := make([]float64, 0, len(s.Slices)-1)
	for i := 1; i < len(s.Slices); i++ {
		gap := math.Abs(s.Slices[i].axisPosition() - s.Slices[i-1].axisPosition())
		if gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) == 0 {
		return 1
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

// Volume stacks the series into a volume. Slices are sorted first.
// Pixel values are stored raw; apply RescaleSlope and RescaleIntercept
// from the first slice to recover physical units.
func (s *Series) Volume() (*volume.Volume, error) {
	if len(s.Slices) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "series %s has no slices", s.UID)
	}
	s.Sort()
	first := s.Slices[0]
	nx, ny, nz := first.Columns, first.Rows, len(s.Slices)
	for _, sl := range s.Slices {
		if sl.Columns != nx || sl.Rows != ny || sl.BitsAllocated != first.BitsAllocated {
			return nil, errors.New(errors.ErrCodeBadFormat,
				"series %s has inconsistent slice geometry", s.UID)
		}
	}

	var vol *volume.Volume
	var err error
	switch first.BitsAllocated {
	case 16:
		data := make([]int16, nx*ny*nz)
		for z, sl := range s.Slices {
			fillInt16(data[z*nx*ny:(z+1)*nx*ny], sl.pixels, nx, ny)
		}
		vol, err = volume.NewInt16([3]int{nx, ny, nz}, data)
	case 8:
		data := make([]uint8, nx*ny*nz)
		for z, sl := range s.Slices {
			fillUint8(data[z*nx*ny:(z+1)*nx*ny], sl.pixels, nx, ny)
		}
		vol, err = volume.NewUint8([3]int{nx, ny, nz}, data)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported,
			"unsupported BitsAllocated %d in series %s", first.BitsAllocated, s.UID)
	}
	if err != nil {
		return nil, err
	}
	vol.Spacing = [3]float64{first.PixelSpacing[0], first.PixelSpacing[1], s.SliceSpacing()}
	return vol, nil
}

// fillInt16 copies one slice of little-endian pixel data, transposing
// from DICOM row-major to the x-fastest volume layout.
func fillInt16(dst []int16, pixels []byte, nx, ny int) {
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			off := 2 * (y*nx + x)
			dst[x+nx*y] = int16(binary.LittleEndian.Uint16(pixels[off:]))
		}
	}
}

func fillUint8(dst []uint8, pixels []byte, nx, ny int) {
	copy(dst, pixels[:nx*ny])
}

// pixelBytes extracts the raw PixelData bytes from a parsed data set.
func pixelBytes(ds *dicom.DataSet) ([]byte, error) {
	elem, ok := ds.Elements[dicom.PixelDataTag]
	if !ok {
		return nil, errors.New(errors.ErrCodeBadFormat, "missing PixelData")
	}
	switch v := elem.ValueField.(type) {
	case dicom.BulkDataBuffer:
		fragments := v.Data()
		if len(fragments) != 1 {
			return nil, errors.New(errors.ErrCodeUnsupported,
				"encapsulated pixel data with %d fragments is not supported", len(fragments))
		}
		return fragments[0], nil
	case []byte:
		return v, nil
	case []uint16:
		out := make([]byte, 2*len(v))
		for i, w := range v {
			binary.LittleEndian.PutUint16(out[2*i:], w)
		}
		return out, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupported,
		"unsupported PixelData type %T", elem.ValueField)
}

func stringAttr(ds *dicom.DataSet, tag dicom.DataElementTag) string {
	elem, ok := ds.Elements[tag]
	if !ok {
		return ""
	}
	if vals, ok := elem.ValueField.([]string); ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// intAttr reads integer attributes stored as IS strings or US/SS binary.
func intAttr(ds *dicom.DataSet, tag dicom.DataElementTag) int {
	elem, ok := ds.Elements[tag]
	if !ok {
		return 0
	}
	switch v := elem.ValueField.(type) {
	case []string:
		if len(v) == 0 {
			return 0
		}
		n, err := strconv.Atoi(strings.TrimSpace(v[0]))
		if err != nil {
			return 0
		}
		return n
	case []uint16:
		if len(v) == 0 {
			return 0
		}
		return int(v[0])
	case []int16:
		if len(v) == 0 {
			return 0
		}
		return int(v[0])
	}
	return 0
}

// floatsAttr reads DS attributes, which arrive as decimal strings.
func floatsAttr(ds *dicom.DataSet, tag dicom.DataElementTag, n int) ([]float64, bool) {
	elem, ok := ds.Elements[tag]
	if !ok {
		return nil, false
	}
	vals, ok := elem.ValueField.([]string)
	if !ok || len(vals) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(vals[i]), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
