// Package cache provides the on-disk field cache of the catalog.
//
// Loading a field from raw data can mean decompressing archives, decoding
// DICOM series or parsing CSV tables, so values are computed once and
// reused. Bulk bytes live in the content-addressed blob store
// (pkg/storage); this package keeps only a small index mapping cache keys
// to blob digests, with pluggable backends:
//
//   - FileStore: sharded files under a directory (the default)
//   - RedisStore: shared index for multi-host deployments
//   - NullStore: caching disabled
//
// Wrap decorates any dataset.Dataset with the cache and, when a checksum
// manifest is supplied, verifies every cached value against it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Store is the cache index backend. Values are small JSON documents; the
// bulk data they point to lives in pkg/storage.
type Store interface {
	// Get retrieves an entry. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores an entry, overwriting any previous value.
	Set(ctx context.Context, key string, data []byte) error
	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Key builds the index key for one field value.
func Key(dataset, id, field string) string {
	return dataset + ":" + id + ":" + field
}

// IDsKey builds the index key for a dataset's id list.
func IDsKey(dataset string) string {
	return dataset + ":__ids__"
}

// hashKey hashes an index key for use as a filesystem path component.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
