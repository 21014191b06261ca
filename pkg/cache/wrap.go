package cache

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/storage"
)

// Options configures a caching dataset wrapper.
type Options struct {
	// Store is the cache index. Required.
	Store Store
	// Blobs is the content-addressed store holding serialized values. Required.
	Blobs *storage.Store
	// Manifest holds expected digests for verification. Optional.
	Manifest *checksum.Manifest
	// Verify selects how manifest mismatches are handled.
	Verify checksum.Level
	// Logger receives warnings when Verify is Warn. Defaults to log.Default().
	Logger *log.Logger
}

// entry is an index record pointing at a serialized value in blob storage.
type entry struct {
	Digest     storage.Digest `json:"digest"`
	Serializer string         `json:"serializer"`
}

type cachedDataset struct {
	inner dataset.Dataset
	opts  Options
}

// Wrap decorates a dataset with caching. Fetch consults the index and
// loads from blob storage on a hit; on a miss it falls through to the
// wrapped dataset and writes the result back. IDs are cached in the
// index directly.
//
// When a manifest is set and Verify is not Off, every digest is
// checked against it: Warn logs mismatches and unlisted entries,
// Strict fails the fetch with ErrCodeChecksumMismatch.
func Wrap(ds dataset.Dataset, opts Options) (dataset.Dataset, error) {
	if opts.Store == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cache: index store is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cache: blob store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &cachedDataset{inner: ds, opts: opts}, nil
}

func (c *cachedDataset) Name() string { return c.inner.Name() }

func (c *cachedDataset) Fields() []dataset.Field { return c.inner.Fields() }

func (c *cachedDataset) IDs(ctx context.Context) ([]string, error) {
	key := IDsKey(c.inner.Name())
	raw, ok, err := c.opts.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err == nil {
			return ids, nil
		}
		// Corrupt index entry, recompute below.
		_ = c.opts.Store.Delete(ctx, key)
	}
	ids, err := c.inner.IDs(ctx)
	if err != nil {
		return nil, err
	}
	raw, err = json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	if err := c.opts.Store.Set(ctx, key, raw); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *cachedDataset) Fetch(ctx context.Context, id, field string) (any, error) {
	f, ok := dataset.FieldByName(c.inner, field)
	if !ok {
		return nil, dataset.ErrUnknownField(c.inner, field)
	}
	if _, err := ForKind(f.Kind); err != nil {
		return nil, err
	}
	key := Key(c.inner.Name(), id, field)

	raw, ok, err := c.opts.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			_ = c.opts.Store.Delete(ctx, key)
		} else {
			return c.load(ctx, id, field, e)
		}
	}

	v, err := c.inner.Fetch(ctx, id, field)
	if err != nil {
		return nil, err
	}
	digest, err := Put(ctx, c.opts.Store, c.opts.Blobs, c.inner.Name(), id, field, f.Kind, v)
	if err != nil {
		return nil, err
	}
	if err := c.verify(id, field, digest); err != nil {
		return nil, err
	}
	return v, nil
}

// load materializes a cached value from blob storage.
func (c *cachedDataset) load(ctx context.Context, id, field string, e entry) (any, error) {
	if err := c.verify(id, field, e.Digest); err != nil {
		return nil, err
	}
	ser, err := ByName(e.Serializer)
	if err != nil {
		return nil, err
	}
	data, err := c.opts.Blobs.ReadBytes(e.Digest)
	if err != nil {
		return nil, err
	}
	return ser.Unmarshal(data)
}

// verify checks a digest against the manifest per the configured level.
func (c *cachedDataset) verify(id, field string, digest storage.Digest) error {
	if c.opts.Verify == checksum.Off || c.opts.Manifest == nil {
		return nil
	}
	want, listed := c.opts.Manifest.Lookup(id, field)
	switch {
	case !listed:
		if c.opts.Verify == checksum.Strict {
			return errors.New(errors.ErrCodeChecksumMismatch,
				"%s: %s/%s not listed in checksum manifest", c.inner.Name(), id, field)
		}
		c.opts.Logger.Warn("value not listed in checksum manifest",
			"dataset", c.inner.Name(), "id", id, "field", field)
	case want != digest:
		if c.opts.Verify == checksum.Strict {
			return errors.New(errors.ErrCodeChecksumMismatch,
				"%s: %s/%s checksum mismatch: manifest %s, got %s",
				c.inner.Name(), id, field, want.Short(), digest.Short())
		}
		c.opts.Logger.Warn("checksum mismatch",
			"dataset", c.inner.Name(), "id", id, "field", field,
			"want", want.Short(), "got", digest.Short())
	}
	return nil
}
