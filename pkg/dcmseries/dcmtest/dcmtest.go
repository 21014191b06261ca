// Package dcmtest builds minimal explicit-VR little-endian DICOM files
// for tests. It covers just enough of the encoding for series assembly:
// file meta group, string and US attributes, and native OW pixel data.
package dcmtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"testing"
)

// Attr is one data element to encode.
type Attr struct {
	Group, Elem uint16
	VR          string
	Value       any // string, []string (multi-value), []uint16, or []byte
}

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// Encode serializes a complete DICOM file: 128-byte preamble, DICM
// magic, file meta group, then the given elements in order.
func Encode(attrs []Attr) []byte {
	var meta bytes.Buffer
	writeAttr(&meta, Attr{Group: 0x0002, Elem: 0x0010, VR: "UI", Value: explicitVRLittleEndian})

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")
	writeAttr(&buf, Attr{Group: 0x0002, Elem: 0x0000, VR: "UL", Value: uint32(meta.Len())})
	buf.Write(meta.Bytes())
	for _, a := range attrs {
		writeAttr(&buf, a)
	}
	return buf.Bytes()
}

// Write encodes attrs to path, failing the test on error.
func Write(t *testing.T, path string, attrs []Attr) {
	t.Helper()
	if err := os.WriteFile(path, Encode(attrs), 0o644); err != nil {
		t.Fatal(err)
	}
}

// SliceAttrs builds the attribute set of one CT slice with int16 pixels
// in row-major order.
func SliceAttrs(seriesUID string, instance int, pos [3]float64, rows, cols int, pixels []int16) []Attr {
	raw := make([]byte, 2*len(pixels))
	for i, v := range pixels {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	return []Attr{
		{0x0008, 0x0018, "UI", fmt.Sprintf("%s.%d", seriesUID, instance)}, // SOPInstanceUID
		{0x0008, 0x0060, "CS", "CT"},                                      // Modality
		{0x0020, 0x000D, "UI", seriesUID + ".study"},                      // StudyInstanceUID
		{0x0020, 0x000E, "UI", seriesUID},                                 // SeriesInstanceUID
		{0x0020, 0x0013, "IS", fmt.Sprintf("%d", instance)},               // InstanceNumber
		{0x0020, 0x0032, "DS", []string{ // ImagePositionPatient
			fmt.Sprintf("%g", pos[0]), fmt.Sprintf("%g", pos[1]), fmt.Sprintf("%g", pos[2]),
		}},
		{0x0020, 0x0037, "DS", []string{"1", "0", "0", "0", "1", "0"}}, // ImageOrientationPatient
		{0x0028, 0x0010, "US", []uint16{uint16(rows)}},                 // Rows
		{0x0028, 0x0011, "US", []uint16{uint16(cols)}},                 // Columns
		{0x0028, 0x0030, "DS", []string{"0.9", "0.9"}},                 // PixelSpacing
		{0x0028, 0x0100, "US", []uint16{16}},                           // BitsAllocated
		{0x0028, 0x0103, "US", []uint16{1}},                            // PixelRepresentation
		{0x0028, 0x1052, "DS", "-1024"},                                // RescaleIntercept
		{0x0028, 0x1053, "DS", "1"},                                    // RescaleSlope
		{0x7FE0, 0x0010, "OW", raw},                                    // PixelData
	}
}

// WithModality overrides the Modality attribute in a SliceAttrs set.
func WithModality(attrs []Attr, modality string) []Attr {
	out := make([]Attr, len(attrs))
	copy(out, attrs)
	for i := range out {
		if out[i].Group == 0x0008 && out[i].Elem == 0x0060 {
			out[i].Value = modality
		}
	}
	return out
}

func writeAttr(buf *bytes.Buffer, a Attr) {
	body := encodeValue(a)
	binary.Write(buf, binary.LittleEndian, a.Group)
	binary.Write(buf, binary.LittleEndian, a.Elem)
	buf.WriteString(a.VR)
	switch a.VR {
	case "OB", "OW", "OF", "SQ", "UN", "UT":
		buf.Write([]byte{0, 0})
		binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	default:
		binary.Write(buf, binary.LittleEndian, uint16(len(body)))
	}
	buf.Write(body)
}

func encodeValue(a Attr) []byte {
	var body []byte
	switch v := a.Value.(type) {
	case string:
		body = []byte(v)
	case []string:
		body = []byte(strings.Join(v, "\\"))
	case []uint16:
		body = make([]byte, 2*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint16(body[2*i:], x)
		}
	case []byte:
		body = v
	case uint32:
		body = make([]byte, 4)
		binary.LittleEndian.PutUint32(body, v)
	default:
		panic(fmt.Sprintf("dcmtest: unsupported value type %T", a.Value))
	}
	if len(body)%2 == 1 {
		pad := byte(' ')
		if a.VR == "UI" {
			pad = 0
		}
		body = append(body, pad)
	}
	return body
}
