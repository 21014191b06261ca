package checksum

import "github.com/scancat/scancat/pkg/errors"

// Level controls how checksum mismatches on cached reads are treated.
type Level int

const (
	// Off skips verification entirely.
	Off Level = iota
	// Warn logs mismatches but returns the value anyway.
	Warn
	// Strict fails the read on any mismatch.
	Strict
)

// ParseLevel converts the config string form ("off", "warn", "strict").
func ParseLevel(s string) (Level, error) {
	switch s {
	case "off":
		return Off, nil
	case "warn", "":
		return Warn, nil
	case "strict":
		return Strict, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidConfig, "unknown verification level %q (off, warn, strict)", s)
}

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Warn:
		return "warn"
	case Strict:
		return "strict"
	}
	return "unknown"
}
