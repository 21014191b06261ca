package cache

import (
	"context"
	"os"
	"path/filepath"
)

// FileStore keeps index entries as files in a directory. Keys are hashed
// into a sharded layout so no single directory grows too large.
//
// Entries are written atomically (temp file + rename), so concurrent
// populate runs sharing a directory cannot observe half-written entries.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed index in dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the index directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) string {
	h := hashKey(key)
	return filepath.Join(s.dir, h[:2], h[2:]+".json")
}

// Get retrieves an entry from disk.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores an entry on disk.
func (s *FileStore) Set(ctx context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes an entry.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for the file store.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
