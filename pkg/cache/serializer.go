package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

// Serializer converts field values to and from cacheable bytes.
//
// Serialized output must be deterministic: the blob digest doubles as the
// value's checksum, so the same value must always produce the same bytes.
type Serializer interface {
	// Name identifies the serializer in index entries, so values written
	// by one version of the cache can be decoded by another.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// ForKind returns the serializer for a field kind.
func ForKind(kind dataset.Kind) (Serializer, error) {
	switch kind {
	case dataset.KindVolume:
		return npySerializer{}, nil
	case dataset.KindScalar, dataset.KindMatrix, dataset.KindSeries:
		return jsonSerializer{}, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "no serializer for field kind %v", kind)
}

// ByName returns the serializer recorded in an index entry.
func ByName(name string) (Serializer, error) {
	switch name {
	case "npy.gz":
		return npySerializer{}, nil
	case "json":
		return jsonSerializer{}, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unknown serializer %q", name)
}

// npySerializer stores volumes as gzip-compressed NumPy arrays. Most CT
// and MR volumes are integer-valued, so compression pays for itself; the
// gzip header carries no timestamp, keeping the output deterministic.
type npySerializer struct{}

func (npySerializer) Name() string { return "npy.gz" }

func (npySerializer) Marshal(v any) ([]byte, error) {
	vol, ok := v.(*volume.Volume)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "npy serializer expects *volume.Volume, got %T", v)
	}
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if err := volume.WriteNPY(gz, vol); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (npySerializer) Unmarshal(data []byte) (any, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "decompressing cached volume")
	}
	defer gz.Close()
	return volume.ReadNPY(gz)
}

// jsonSerializer stores scalars, matrices and structured records as JSON.
// encoding/json sorts map keys, so output is deterministic.
type jsonSerializer struct{}

func (jsonSerializer) Name() string { return "json" }

func (jsonSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonSerializer) Unmarshal(data []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadFormat, err, "decoding cached value")
	}
	// Trailing data would mean a corrupt entry.
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New(errors.ErrCodeBadFormat, "trailing data in cached value")
	}
	return v, nil
}
