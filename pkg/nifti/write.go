package nifti

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

// Encode writes v as an uncompressed single-file NIfTI-1 image.
// Spacing goes into pixdim and the affine into the sform rows.
func Encode(w io.Writer, v *volume.Volume) error {
	var h header
	h.SizeofHdr = headerSize
	h.Dim[0] = 3
	h.Dim[1], h.Dim[2], h.Dim[3] = int16(v.Shape[0]), int16(v.Shape[1]), int16(v.Shape[2])
	for i := 4; i < 8; i++ {
		h.Dim[i] = 1
	}
	h.Pixdim[0] = 1
	h.Pixdim[1] = float32(v.Spacing[0])
	h.Pixdim[2] = float32(v.Spacing[1])
	h.Pixdim[3] = float32(v.Spacing[2])
	h.VoxOffset = 352
	h.SclSlope = 1
	h.SformCode = 1
	for j := 0; j < 4; j++ {
		h.SrowX[j] = float32(v.Affine[0][j])
		h.SrowY[j] = float32(v.Affine[1][j])
		h.SrowZ[j] = float32(v.Affine[2][j])
	}
	copy(h.Magic[:], "n+1\x00")

	switch v.Data.(type) {
	case []uint8:
		h.Datatype, h.Bitpix = dtUint8, 8
	case []int16:
		h.Datatype, h.Bitpix = dtInt16, 16
	case []float32:
		h.Datatype, h.Bitpix = dtFloat32, 32
	case []float64:
		h.Datatype, h.Bitpix = dtFloat64, 64
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported volume data type %T", v.Data)
	}

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	// No extensions: four zero bytes pad the header to vox_offset 352.
	if _, err := w.Write(make([]byte, 4)); err != nil {
		return err
	}

	switch d := v.Data.(type) {
	case []uint8:
		_, err := w.Write(d)
		return err
	case []int16:
		buf := make([]byte, len(d)*2)
		for i, x := range d {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(x))
		}
		_, err := w.Write(buf)
		return err
	case []float32:
		buf := make([]byte, len(d)*4)
		for i, x := range d {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
		}
		_, err := w.Write(buf)
		return err
	case []float64:
		buf := make([]byte, len(d)*8)
		for i, x := range d {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
		}
		_, err := w.Write(buf)
		return err
	}
	return errors.New(errors.ErrCodeUnsupported, "unsupported volume data type %T", v.Data)
}

// Save writes v to path, gzip-compressed when the name ends in .gz.
func Save(path string, v *volume.Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	return Encode(w, v)
}
