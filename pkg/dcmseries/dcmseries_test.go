package dcmseries

import (
	"encoding/binary"
	"math"
	"testing"
)

// testSlice builds a 2x2 int16 slice at position z with a constant value.
func testSlice(z float64, instance int, value int16) *Slice {
	pixels := make([]byte, 8)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(pixels[2*i:], uint16(value))
	}
	return &Slice{
		SeriesInstanceUID: "1.2.3",
		InstanceNumber:    instance,
		Position:          [3]float64{0, 0, z},
		Orientation:       [6]float64{1, 0, 0, 0, 1, 0},
		PixelSpacing:      [2]float64{0.7, 0.7},
		Rows:              2,
		Columns:           2,
		BitsAllocated:     16,
		Signed:            true,
		RescaleSlope:      1,
		RescaleIntercept:  -1024,
		pixels:            pixels,
	}
}

func TestSortByPosition(t *testing.T) {
	s := &Series{UID: "1.2.3", Slices: []*Slice{
		testSlice(5, 1, 2),
		testSlice(-2.5, 3, 0),
		testSlice(2.5, 2, 1),
	}}
	s.Sort()
	var got []float64
	for _, sl := range s.Slices {
		got = append(got, sl.Position[2])
	}
	want := []float64{-2.5, 2.5, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("positions after sort = %v, want %v", got, want)
		}
	}
}

func TestSortDropsDuplicatePositions(t *testing.T) {
	s := &Series{UID: "1.2.3", Slices: []*Slice{
		testSlice(0, 1, 0),
		testSlice(2.5, 2, 1),
		testSlice(2.5, 3, 1),
		testSlice(5, 4, 2),
	}}
	s.Sort()
	if len(s.Slices) != 3 {
		t.Fatalf("got %d slices after dedup, want 3", len(s.Slices))
	}
}

func TestSortFallsBackToInstanceNumber(t *testing.T) {
	a := testSlice(0, 2, 1)
	b := testSlice(0, 1, 0)
	a.Position = [3]float64{}
	b.Position = [3]float64{}
	s := &Series{UID: "1.2.3", Slices: []*Slice{a, b}}
	s.Sort()
	if s.Slices[0].InstanceNumber != 1 {
		t.Fatalf("first slice has InstanceNumber %d, want 1", s.Slices[0].InstanceNumber)
	}
}

func TestSliceSpacingMedian(t *testing.T) {
	s := &Series{UID: "1.2.3", Slices: []*Slice{
		testSlice(0, 1, 0),
		testSlice(2.5, 2, 0),
		testSlice(5, 3, 0),
		testSlice(12, 4, 0), // gap from a missing slice
	}}
	s.Sort()
	if got := s.SliceSpacing(); got != 2.5 {
		t.Fatalf("SliceSpacing = %v, want 2.5", got)
	}
}

func TestVolumeStacksSlices(t *testing.T) {
	s := &Series{UID: "1.2.3", Slices: []*Slice{
		testSlice(2.5, 2, 100),
		testSlice(0, 1, -50),
		testSlice(5, 3, 300),
	}}
	vol, err := s.Volume()
	if err != nil {
		t.Fatal(err)
	}
	if vol.Shape != [3]int{2, 2, 3} {
		t.Fatalf("shape = %v, want [2 2 3]", vol.Shape)
	}
	// z ordering follows position, not insertion order.
	for z, want := range []float64{-50, 100, 300} {
		if got := vol.At(0, 0, z); got != want {
			t.Fatalf("At(0,0,%d) = %v, want %v", z, got, want)
		}
	}
	if vol.Spacing != [3]float64{0.7, 0.7, 2.5} {
		t.Fatalf("spacing = %v", vol.Spacing)
	}
}

func TestVolumeRejectsMixedGeometry(t *testing.T) {
	odd := testSlice(2.5, 2, 0)
	odd.Rows = 4
	odd.pixels = make([]byte, 4*2*2)
	s := &Series{UID: "1.2.3", Slices: []*Slice{testSlice(0, 1, 0), odd}}
	if _, err := s.Volume(); err == nil {
		t.Fatal("expected error for inconsistent slice geometry")
	}
}

func TestAxisPositionUsesNormal(t *testing.T) {
	// Sagittal orientation: rows along y, columns along z, normal along x.
	s := testSlice(0, 1, 0)
	s.Orientation = [6]float64{0, 1, 0, 0, 0, 1}
	s.Position = [3]float64{7, 100, -40}
	if got := s.axisPosition(); math.Abs(got-7) > 1e-9 {
		t.Fatalf("axisPosition = %v, want 7", got)
	}
}
