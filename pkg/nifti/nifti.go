// Package nifti reads and writes NIfTI-1 files (.nii, .nii.gz).
//
// The reader covers the subset of NIfTI-1 that public medical-imaging
// datasets actually use: single-file images (magic "n+1"), 3-D arrays of
// uint8, int16, float32 or float64 voxels, gzip compression, spacing from
// pixdim, and orientation from the sform matrix with a quaternion fallback.
// Extensions between the header and the voxel data are skipped.
//
// The writer emits the same subset and exists mainly so dataset packages
// can build synthetic raw trees in their tests.
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

// NIfTI-1 datatype codes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtFloat32 = 16
	dtFloat64 = 64
)

const headerSize = 348

// header mirrors the fixed 348-byte NIfTI-1 header layout.
type header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	Pixdim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XYZTUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	TOffset      float32
	GLMax        int32
	GLMin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

// Image is a decoded NIfTI file: the voxel array with geometry attached,
// plus the intensity scaling declared in the header.
type Image struct {
	Vol      *volume.Volume
	SclSlope float64
	SclInter float64
}

// Load reads a NIfTI file from disk. Files ending in .gz are decompressed
// transparently.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "nifti file %s", path)
		}
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "decoding %s", path)
	}
	return img, nil
}

// Decode reads a NIfTI image from r. Gzip-compressed streams are detected
// by their magic bytes, so zip members can be decoded without knowing
// whether the archive stored them compressed.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "decompressing nifti stream")
		}
		defer gz.Close()
		return decode(gz)
	}
	return decode(br)
}

func decode(r io.Reader) (*Image, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading nifti header")
	}

	// sizeof_hdr doubles as the endianness probe.
	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(raw) != headerSize {
		if binary.BigEndian.Uint32(raw) != headerSize {
			return nil, errors.New(errors.ErrCodeBadFormat, "not a nifti-1 file (sizeof_hdr mismatch)")
		}
		order = binary.BigEndian
	}

	var h header
	if err := binary.Read(bytes.NewReader(raw), order, &h); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "parsing nifti header")
	}
	if m := string(h.Magic[:3]); m != "n+1" && m != "ni1" {
		return nil, errors.New(errors.ErrCodeBadFormat, "bad nifti magic %q", m)
	}

	ndim := int(h.Dim[0])
	if ndim < 3 || ndim > 7 {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported nifti dimensionality %d", ndim)
	}
	// Trailing singleton dimensions (common in 4-D exports of 3-D data)
	// are collapsed; anything else is out of scope.
	for i := 4; i <= ndim; i++ {
		if h.Dim[i] > 1 {
			return nil, errors.New(errors.ErrCodeUnsupported, "nifti volume has %d non-singleton dimensions", ndim)
		}
	}

	shape := [3]int{int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])}
	count := shape[0] * shape[1] * shape[2]
	if count <= 0 {
		return nil, errors.New(errors.ErrCodeBadFormat, "invalid nifti shape %v", shape)
	}

	// Skip extensions up to the declared voxel offset.
	offset := int64(h.VoxOffset)
	if offset < headerSize {
		offset = headerSize + 4
	}
	if _, err := io.CopyN(io.Discard, r, offset-headerSize); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "skipping nifti extensions")
	}

	var vol *volume.Volume
	var err error
	switch h.Datatype {
	case dtUint8:
		data := make([]uint8, count)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading voxel data")
		}
		vol, err = volume.NewUint8(shape, data)
	case dtInt16:
		buf := make([]byte, count*2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading voxel data")
		}
		data := make([]int16, count)
		for i := range data {
			data[i] = int16(order.Uint16(buf[i*2:]))
		}
		vol, err = volume.NewInt16(shape, data)
	case dtFloat32:
		buf := make([]byte, count*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading voxel data")
		}
		data := make([]float32, count)
		for i := range data {
			data[i] = math.Float32frombits(order.Uint32(buf[i*4:]))
		}
		vol, err = volume.NewFloat32(shape, data)
	case dtFloat64:
		buf := make([]byte, count*8)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading voxel data")
		}
		data := make([]float64, count)
		for i := range data {
			data[i] = math.Float64frombits(order.Uint64(buf[i*8:]))
		}
		vol, err = volume.NewFloat64(shape, data)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported nifti datatype %d", h.Datatype)
	}
	if err != nil {
		return nil, err
	}

	vol.Spacing = [3]float64{
		float64(h.Pixdim[1]),
		float64(h.Pixdim[2]),
		float64(h.Pixdim[3]),
	}
	vol.Affine = h.affine()

	return &Image{
		Vol:      vol,
		SclSlope: float64(h.SclSlope),
		SclInter: float64(h.SclInter),
	}, nil
}

// affine derives the voxel-to-world matrix, preferring sform over qform,
// falling back to plain pixdim scaling.
func (h *header) affine() [4][4]float64 {
	var a [4][4]float64
	a[3][3] = 1

	switch {
	case h.SformCode > 0:
		for j := 0; j < 4; j++ {
			a[0][j] = float64(h.SrowX[j])
			a[1][j] = float64(h.SrowY[j])
			a[2][j] = float64(h.SrowZ[j])
		}
	case h.QformCode > 0:
		b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
		aa := 1 - b*b - c*c - d*d
		if aa < 0 {
			aa = 0
		}
		q := math.Sqrt(aa)

		qfac := float64(h.Pixdim[0])
		if qfac == 0 {
			qfac = 1
		}
		sx, sy, sz := float64(h.Pixdim[1]), float64(h.Pixdim[2]), float64(h.Pixdim[3])*qfac

		a[0][0] = (q*q + b*b - c*c - d*d) * sx
		a[0][1] = 2 * (b*c - q*d) * sy
		a[0][2] = 2 * (b*d + q*c) * sz
		a[1][0] = 2 * (b*c + q*d) * sx
		a[1][1] = (q*q + c*c - b*b - d*d) * sy
		a[1][2] = 2 * (c*d - q*b) * sz
		a[2][0] = 2 * (b*d - q*c) * sx
		a[2][1] = 2 * (c*d + q*b) * sy
		a[2][2] = (q*q + d*d - b*b - c*c) * sz
		a[0][3] = float64(h.QoffsetX)
		a[1][3] = float64(h.QoffsetY)
		a[2][3] = float64(h.QoffsetZ)
	default:
		a[0][0] = float64(h.Pixdim[1])
		a[1][1] = float64(h.Pixdim[2])
		a[2][2] = float64(h.Pixdim[3])
	}
	return a
}
