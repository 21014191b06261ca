// Package populate fills the cache for a dataset in one pass.
//
// The runner walks the full ids x fields grid, fetches every value from
// the raw files, writes the serialized results into blob storage and
// records their digests in a fresh checksum manifest. A populated cache
// plus its manifest is what makes later reads verifiable.
package populate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/scancat/scancat/pkg/cache"
	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/storage"
)

// DefaultJobs is the worker count when Options.Jobs is unset.
const DefaultJobs = 4

// Options configures a populate run.
type Options struct {
	// Jobs bounds the number of concurrent fetches.
	Jobs int
	// Fields restricts the run to a subset of the dataset's fields.
	// Empty means all declared fields.
	Fields []string
	// IgnoreErrors keeps the run going after a failed fetch; failures
	// are collected in the report instead of aborting.
	IgnoreErrors bool
	// Hooks receives progress events. Defaults to NoopHooks.
	Hooks Hooks
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Failure is one fetch that did not produce a cached value.
type Failure struct {
	ID    string
	Field string
	Err   error
}

// Report summarizes a populate run.
type Report struct {
	Dataset   string
	IDs       int
	Succeeded int
	Failures  []Failure
	Manifest  *checksum.Manifest
	Duration  time.Duration
}

// Run populates the cache and builds the checksum manifest for ds.
// Without IgnoreErrors the first failed fetch aborts the run.
func Run(ctx context.Context, ds dataset.Dataset, index cache.Store, blobs *storage.Store, opts Options) (*Report, error) {
	if opts.Jobs <= 0 {
		opts.Jobs = DefaultJobs
	}
	if opts.Hooks == nil {
		opts.Hooks = NoopHooks{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	fields, err := selectFields(ds, opts.Fields)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ids, err := ds.IDs(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.PutIDs(ctx, index, ds.Name(), ids); err != nil {
		return nil, err
	}

	manifest := checksum.New(ds.Name())
	report := &Report{Dataset: ds.Name(), IDs: len(ids), Manifest: manifest}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for _, id := range ids {
		for _, f := range fields {
			id, f := id, f
			g.Go(func() error {
				opts.Hooks.OnFieldStart(gctx, ds.Name(), id, f.Name)
				began := time.Now()
				v, err := ds.Fetch(gctx, id, f.Name)
				var digest storage.Digest
				if err == nil {
					digest, err = cache.Put(gctx, index, blobs, ds.Name(), id, f.Name, f.Kind, v)
				}
				opts.Hooks.OnFieldComplete(gctx, ds.Name(), id, f.Name, time.Since(began), err)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failures = append(report.Failures, Failure{ID: id, Field: f.Name, Err: err})
					if opts.IgnoreErrors {
						opts.Logger.Warn("fetch failed", "dataset", ds.Name(), "id", id, "field", f.Name, "err", err)
						return nil
					}
					return errors.Wrap(errors.GetCode(err), err, "populating %s/%s", id, f.Name)
				}
				manifest.Set(id, f.Name, digest)
				report.Succeeded++
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortFailures(report.Failures)
	report.Duration = time.Since(start)
	opts.Hooks.OnDatasetComplete(ctx, ds.Name(), report.Succeeded, len(report.Failures), report.Duration)
	return report, nil
}

func selectFields(ds dataset.Dataset, names []string) ([]dataset.Field, error) {
	if len(names) == 0 {
		return ds.Fields(), nil
	}
	fields := make([]dataset.Field, 0, len(names))
	for _, n := range names {
		f, ok := dataset.FieldByName(ds, n)
		if !ok {
			return nil, dataset.ErrUnknownField(ds, n)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func sortFailures(failures []Failure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].ID != failures[j].ID {
			return failures[i].ID < failures[j].ID
		}
		return failures[i].Field < failures[j].Field
	})
}
