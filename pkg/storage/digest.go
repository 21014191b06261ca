package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/scancat/scancat/pkg/errors"
)

// Digest is the content address of a blob: "sha256:" followed by 64 hex
// characters.
type Digest string

const digestPrefix = "sha256:"

// NewDigest computes the digest of a byte slice.
func NewDigest(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(digestPrefix + hex.EncodeToString(sum[:]))
}

// digestFromHash finalizes a running hash into a Digest.
func digestFromHash(h hash.Hash) Digest {
	return Digest(digestPrefix + hex.EncodeToString(h.Sum(nil)))
}

// ParseDigest validates the string form of a digest.
func ParseDigest(s string) (Digest, error) {
	if !strings.HasPrefix(s, digestPrefix) {
		return "", errors.New(errors.ErrCodeInvalidDigest, "digest %q missing sha256: prefix", s)
	}
	hexPart := s[len(digestPrefix):]
	if len(hexPart) != 64 {
		return "", errors.New(errors.ErrCodeInvalidDigest, "digest %q has wrong length", s)
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", errors.New(errors.ErrCodeInvalidDigest, "digest %q is not hex", s)
	}
	return Digest(s), nil
}

// Hex returns the hex part of the digest without the algorithm prefix.
func (d Digest) Hex() string {
	return strings.TrimPrefix(string(d), digestPrefix)
}

// Short returns a truncated digest for log output.
func (d Digest) Short() string {
	h := d.Hex()
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func (d Digest) String() string { return string(d) }
