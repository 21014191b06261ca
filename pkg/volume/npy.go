package volume

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/scancat/scancat/pkg/errors"
)

// npyMagic is the NumPy file format signature.
var npyMagic = []byte("\x93NUMPY")

// WriteNPY serializes the volume in NumPy .npy format (version 1.0).
//
// The header declares fortran_order=True with shape (nx, ny, nz), which
// matches the Volume memory layout (first axis fastest) byte for byte, so
// numpy.load returns an array indexable as [x, y, z] without copies.
func WriteNPY(w io.Writer, v *Volume) error {
	if err := checkData(v); err != nil {
		return err
	}

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': True, 'shape': (%d, %d, %d), }",
		v.Dtype, v.Shape[0], v.Shape[1], v.Shape[2])

	// Pad with spaces so the full header (magic + version + length + dict)
	// is a multiple of 64 bytes, terminated by a newline.
	headerLen := len(npyMagic) + 2 + 2 + len(dict) + 1
	pad := (64 - headerLen%64) % 64
	dict = dict + strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, dict); err != nil {
		return err
	}

	buf := make([]byte, v.Len()*v.Dtype.Size())
	switch d := v.Data.(type) {
	case []int16:
		for i, x := range d {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(x))
		}
	case []uint8:
		copy(buf, d)
	case []float32:
		for i, x := range d {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
		}
	case []float64:
		for i, x := range d {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
		}
	}
	_, err := w.Write(buf)
	return err
}

var npyHeaderRe = regexp.MustCompile(
	`'descr':\s*'([^']+)'\s*,\s*'fortran_order':\s*(True|False)\s*,\s*'shape':\s*\(([^)]*)\)`)

// ReadNPY deserializes a 3-D volume from NumPy .npy format.
// Versions 1.0 and 2.0 of the format are accepted. Both C and Fortran
// element order are handled; the returned Volume always has its first
// axis fastest.
func ReadNPY(r io.Reader) (*Volume, error) {
	magic := make([]byte, 8)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading npy magic")
	}
	if string(magic[:6]) != string(npyMagic) {
		return nil, errors.New(errors.ErrCodeBadFormat, "not an npy file")
	}

	var headerLen int
	switch magic[6] {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading npy header length")
		}
		headerLen = int(n)
	case 2:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading npy header length")
		}
		headerLen = int(n)
	default:
		return nil, errors.New(errors.ErrCodeBadFormat, "unsupported npy version %d.%d", magic[6], magic[7])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading npy header")
	}

	m := npyHeaderRe.FindStringSubmatch(string(header))
	if m == nil {
		return nil, errors.New(errors.ErrCodeBadFormat, "malformed npy header: %q", string(header))
	}
	descr, fortran, shapeStr := m[1], m[2] == "True", m[3]

	var dtype Dtype
	switch descr {
	case "<i2", "|i2":
		dtype = Int16
	case "|u1", "<u1":
		dtype = Uint8
	case "<f4":
		dtype = Float32
	case "<f8":
		dtype = Float64
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported npy dtype %q", descr)
	}

	var dims []int
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.New(errors.ErrCodeBadFormat, "malformed npy shape: %q", shapeStr)
		}
		dims = append(dims, n)
	}
	if len(dims) != 3 {
		return nil, errors.New(errors.ErrCodeUnsupported, "expected a 3-d array, got %d dimensions", len(dims))
	}

	shape := [3]int{dims[0], dims[1], dims[2]}
	if !fortran {
		// C order means the last axis is fastest in memory. Reversing the
		// shape reinterprets the same bytes with the first axis fastest.
		shape = [3]int{dims[2], dims[1], dims[0]}
	}

	count := shape[0] * shape[1] * shape[2]
	buf := make([]byte, count*dtype.Size())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "reading npy data")
	}

	switch dtype {
	case Int16:
		data := make([]int16, count)
		for i := range data {
			data[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		return NewInt16(shape, data)
	case Uint8:
		return NewUint8(shape, buf)
	case Float32:
		data := make([]float32, count)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return NewFloat32(shape, data)
	default:
		data := make([]float64, count)
		for i := range data {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return NewFloat64(shape, data)
	}
}

func checkData(v *Volume) error {
	var n int
	switch d := v.Data.(type) {
	case []int16:
		n = len(d)
	case []uint8:
		n = len(d)
	case []float32:
		n = len(d)
	case []float64:
		n = len(d)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unsupported volume data type %T", v.Data)
	}
	if n != v.Len() {
		return errors.New(errors.ErrCodeInvalidInput,
			"volume data length %d does not match shape %v", n, v.Shape)
	}
	return nil
}
