// Package volume provides the in-memory representation of 3-D medical images.
//
// A Volume is a dense voxel array with a known element type and shape, plus
// optional geometry (voxel spacing and a 4x4 affine orientation matrix) filled
// in by the format readers. Voxels are stored with the x axis varying fastest,
// matching the on-disk layout of NIfTI files, so readers can hand their raw
// buffers to a Volume without reordering.
//
// Volumes serialize to the NumPy .npy format (see npy.go), which keeps caches
// produced by this library readable from Python tooling and vice versa.
package volume

import (
	"fmt"

	"github.com/scancat/scancat/pkg/errors"
)

// Dtype identifies the element type of a Volume.
type Dtype uint8

// Supported element types. Int16 covers CT and most MR intensities, Uint8
// covers label masks, Float32/Float64 cover derived or normalized data.
const (
	Int16 Dtype = iota
	Uint8
	Float32
	Float64
)

// String returns the NumPy dtype descriptor for the element type.
func (d Dtype) String() string {
	switch d {
	case Int16:
		return "<i2"
	case Uint8:
		return "|u1"
	case Float32:
		return "<f4"
	case Float64:
		return "<f8"
	}
	return fmt.Sprintf("Dtype(%d)", d)
}

// Size returns the element size in bytes.
func (d Dtype) Size() int {
	switch d {
	case Int16:
		return 2
	case Uint8:
		return 1
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Volume is a dense 3-D voxel array.
//
// Data holds one of []int16, []uint8, []float32 or []float64 matching Dtype,
// with len equal to Shape[0]*Shape[1]*Shape[2] and the first axis varying
// fastest.
//
// Spacing and Affine are populated by format readers where the source file
// carries geometry. They are conveniences for direct reads; cached access
// goes through the dedicated spacing/affine dataset fields, since the cache
// persists only the voxel array.
type Volume struct {
	Dtype   Dtype
	Shape   [3]int
	Data    any
	Spacing [3]float64
	Affine  [4][4]float64
}

// NewInt16 creates an int16 volume. len(data) must match the shape.
func NewInt16(shape [3]int, data []int16) (*Volume, error) {
	return build(Int16, shape, data, len(data))
}

// NewUint8 creates a uint8 volume, typically a label mask.
func NewUint8(shape [3]int, data []uint8) (*Volume, error) {
	return build(Uint8, shape, data, len(data))
}

// NewFloat32 creates a float32 volume.
func NewFloat32(shape [3]int, data []float32) (*Volume, error) {
	return build(Float32, shape, data, len(data))
}

// NewFloat64 creates a float64 volume.
func NewFloat64(shape [3]int, data []float64) (*Volume, error) {
	return build(Float64, shape, data, len(data))
}

func build(dtype Dtype, shape [3]int, data any, n int) (*Volume, error) {
	want := shape[0] * shape[1] * shape[2]
	if shape[0] <= 0 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid volume shape %v", shape)
	}
	if n != want {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"volume data length %d does not match shape %v (want %d)", n, shape, want)
	}
	return &Volume{Dtype: dtype, Shape: shape, Data: data}, nil
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// index returns the flat offset of (x, y, z), x fastest.
func (v *Volume) index(x, y, z int) int {
	return x + v.Shape[0]*(y+v.Shape[1]*z)
}

// At returns the voxel at (x, y, z) as a float64.
// Out-of-range coordinates panic, matching slice indexing semantics.
func (v *Volume) At(x, y, z int) float64 {
	i := v.index(x, y, z)
	switch d := v.Data.(type) {
	case []int16:
		return float64(d[i])
	case []uint8:
		return float64(d[i])
	case []float32:
		return float64(d[i])
	case []float64:
		return d[i]
	}
	panic(fmt.Sprintf("volume: unsupported data type %T", v.Data))
}

// MinMax returns the minimum and maximum voxel values.
func (v *Volume) MinMax() (min, max float64) {
	first := true
	visit := func(val float64) {
		if first {
			min, max = val, val
			first = false
			return
		}
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	switch d := v.Data.(type) {
	case []int16:
		for _, x := range d {
			visit(float64(x))
		}
	case []uint8:
		for _, x := range d {
			visit(float64(x))
		}
	case []float32:
		for _, x := range d {
			visit(float64(x))
		}
	case []float64:
		for _, x := range d {
			visit(x)
		}
	}
	return min, max
}

// SliceZ extracts the axial plane at depth z as a row-major []float64
// of Shape[0]*Shape[1] values. Used by the HTTP preview endpoint.
func (v *Volume) SliceZ(z int) ([]float64, error) {
	if z < 0 || z >= v.Shape[2] {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"slice index %d out of range [0, %d)", z, v.Shape[2])
	}
	out := make([]float64, v.Shape[0]*v.Shape[1])
	k := 0
	for y := 0; y < v.Shape[1]; y++ {
		for x := 0; x < v.Shape[0]; x++ {
			out[k] = v.At(x, y, z)
			k++
		}
	}
	return out, nil
}
