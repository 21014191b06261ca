// Package storage implements a write-once, content-addressed blob store.
//
// Blobs are named by the SHA-256 digest of their content and laid out in a
// two-level sharded directory tree:
//
//	<root>/ab/cd/abcdef...
//
// Writes stream through a temporary file and are renamed into place, so a
// crashed write never leaves a partial blob under its final name. Stored
// files are made read-only; the digest is the only key and the content
// never changes. Writing a blob that already exists is satisfied by the
// existing file.
//
// The cache layer (pkg/cache) keeps bulk field values here and stores only
// small index entries of its own.
package storage

import (
	"bytes"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/scancat/scancat/pkg/errors"
)

// Store is a content-addressed blob store rooted at a directory.
type Store struct {
	root string
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "storage root cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "creating storage root %s", dir)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// path returns the final location for a digest.
func (s *Store) path(d Digest) string {
	h := d.Hex()
	return filepath.Join(s.root, h[:2], h[2:4], h)
}

// Write streams r into the store and returns the digest of its content.
// The blob is hashed while writing; if an identical blob already exists
// the temporary file is discarded and the existing blob wins.
func (s *Store) Write(r io.Reader) (Digest, int64, error) {
	tmp := filepath.Join(s.root, "tmp", uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", 0, err
	}

	d := digestFromHash(h)
	final := s.path(d)

	if _, err := os.Stat(final); err == nil {
		os.Remove(tmp)
		return d, n, nil
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Chmod(tmp, 0o444); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	return d, n, nil
}

// WriteBytes stores a byte slice. Convenience wrapper around Write.
func (s *Store) WriteBytes(data []byte) (Digest, error) {
	d, _, err := s.Write(bytes.NewReader(data))
	return d, err
}

// Open returns a reader over the blob with the given digest.
// The caller must close it.
func (s *Store) Open(d Digest) (io.ReadCloser, error) {
	f, err := os.Open(s.path(d))
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeBlobNotFound, "blob %s not in storage", d.Short())
	}
	return f, err
}

// ReadBytes loads an entire blob into memory.
func (s *Store) ReadBytes(d Digest) ([]byte, error) {
	r, err := s.Open(d)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Stat reports whether a blob exists and its size.
func (s *Store) Stat(d Digest) (int64, bool, error) {
	info, err := os.Stat(s.path(d))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

// Delete removes a blob. Removing a missing blob is not an error.
func (s *Store) Delete(d Digest) error {
	path := s.path(d)
	// Blobs are stored read-only; restore write permission first.
	if err := os.Chmod(path, 0o644); err != nil && !os.IsNotExist(err) {
		return err
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Verify re-hashes the blob and checks it still matches its digest.
// A mismatch means on-disk corruption.
func (s *Store) Verify(d Digest) error {
	r, err := s.Open(d)
	if err != nil {
		return err
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return err
	}
	if actual := digestFromHash(h); actual != d {
		return errors.New(errors.ErrCodeCorruptBlob,
			"blob %s corrupted on disk (content hashes to %s)", d.Short(), actual.Short())
	}
	return nil
}
