package volume

// ToInt16 converts a volume to int16 voxels, truncating fractional parts.
// CT and MR intensities are integer-valued in practice, so the narrower
// type costs nothing and compresses far better. Returns v unchanged if
// it is already int16.
func ToInt16(v *Volume) *Volume {
	if v.Dtype == Int16 {
		return v
	}
	data := make([]int16, v.Len())
	fill(v, func(i int, val float64) { data[i] = int16(val) })
	out, _ := NewInt16(v.Shape, data)
	out.Spacing = v.Spacing
	out.Affine = v.Affine
	return out
}

// ToUint8 converts a volume to uint8 voxels, truncating fractional
// parts. Meant for label maps with small non-negative values. Returns v
// unchanged if it is already uint8.
func ToUint8(v *Volume) *Volume {
	if v.Dtype == Uint8 {
		return v
	}
	data := make([]uint8, v.Len())
	fill(v, func(i int, val float64) { data[i] = uint8(val) })
	out, _ := NewUint8(v.Shape, data)
	out.Spacing = v.Spacing
	out.Affine = v.Affine
	return out
}

// ToMask converts a volume to a binary uint8 mask: nonzero voxels
// become 1.
func ToMask(v *Volume) *Volume {
	data := make([]uint8, v.Len())
	fill(v, func(i int, val float64) {
		if val != 0 {
			data[i] = 1
		}
	})
	out, _ := NewUint8(v.Shape, data)
	out.Spacing = v.Spacing
	out.Affine = v.Affine
	return out
}

func fill(v *Volume, set func(i int, val float64)) {
	switch d := v.Data.(type) {
	case []int16:
		for i, x := range d {
			set(i, float64(x))
		}
	case []uint8:
		for i, x := range d {
			set(i, float64(x))
		}
	case []float32:
		for i, x := range d {
			set(i, float64(x))
		}
	case []float64:
		for i, x := range d {
			set(i, x)
		}
	}
}
