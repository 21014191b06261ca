package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scancat/scancat/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestWriteRead(t *testing.T) {
	s := newTestStore(t)
	content := []byte("some voxel data")

	d, n, err := s.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Errorf("written %d bytes, want %d", n, len(content))
	}
	if d != NewDigest(content) {
		t.Errorf("digest = %s, want %s", d, NewDigest(content))
	}

	got, err := s.ReadBytes(d)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("ReadBytes = %q, want %q", got, content)
	}
}

func TestWriteIsSharded(t *testing.T) {
	s := newTestStore(t)
	d, err := s.WriteBytes([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	h := d.Hex()
	path := filepath.Join(s.Root(), h[:2], h[2:4], h)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("blob not at sharded path: %v", err)
	}
	if info.Mode().Perm()&0o222 != 0 {
		t.Errorf("blob is writable (mode %v), want read-only", info.Mode())
	}
}

func TestDuplicateWrite(t *testing.T) {
	s := newTestStore(t)
	d1, err := s.WriteBytes([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	d2, err := s.WriteBytes([]byte("same"))
	if err != nil {
		t.Fatalf("duplicate write failed: %v", err)
	}
	if d1 != d2 {
		t.Errorf("digests differ: %s vs %s", d1, d2)
	}

	// No temp files should be left behind.
	entries, err := os.ReadDir(filepath.Join(s.Root(), "tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d stale temp files left", len(entries))
	}
}

func TestOpenMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Open(NewDigest([]byte("never stored")))
	if !errors.Is(err, errors.ErrCodeBlobNotFound) {
		t.Errorf("error code = %q, want NOT_FOUND_BLOB", errors.GetCode(err))
	}
}

func TestStatAndDelete(t *testing.T) {
	s := newTestStore(t)
	d, err := s.WriteBytes([]byte("abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	size, ok, err := s.Stat(d)
	if err != nil || !ok {
		t.Fatalf("Stat = (%d, %v, %v)", size, ok, err)
	}
	if size != 6 {
		t.Errorf("size = %d, want 6", size)
	}

	if err := s.Delete(d); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Stat(d); ok {
		t.Error("blob still present after Delete")
	}
	if err := s.Delete(d); err != nil {
		t.Errorf("deleting a missing blob should not fail: %v", err)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	s := newTestStore(t)
	d, err := s.WriteBytes([]byte("pristine"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Verify(d); err != nil {
		t.Fatalf("Verify on intact blob: %v", err)
	}

	path := filepath.Join(s.Root(), d.Hex()[:2], d.Hex()[2:4], d.Hex())
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Verify(d); !errors.Is(err, errors.ErrCodeCorruptBlob) {
		t.Errorf("Verify error code = %q, want CORRUPT_BLOB", errors.GetCode(err))
	}
}

func TestParseDigest(t *testing.T) {
	valid := string(NewDigest([]byte("x")))
	if _, err := ParseDigest(valid); err != nil {
		t.Errorf("ParseDigest(%q) = %v", valid, err)
	}

	for _, bad := range []string{
		"",
		"md5:abcd",
		"sha256:short",
		"sha256:" + strings.Repeat("g", 64),
	} {
		if _, err := ParseDigest(bad); err == nil {
			t.Errorf("ParseDigest(%q) = nil, want error", bad)
		}
	}
}

func TestDigestShort(t *testing.T) {
	d := NewDigest([]byte("x"))
	if len(d.Short()) != 12 {
		t.Errorf("Short() = %q, want 12 chars", d.Short())
	}
}
