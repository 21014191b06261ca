package populate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scancat/scancat/pkg/cache"
	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/storage"
	"github.com/scancat/scancat/pkg/volume"
)

type fakeDataset struct {
	fetches atomic.Int64
	failOn  string // "id/field" that always fails
}

func (d *fakeDataset) Name() string { return "fake" }

func (d *fakeDataset) IDs(ctx context.Context) ([]string, error) {
	return []string{"a", "b", "c"}, nil
}

func (d *fakeDataset) Fields() []dataset.Field {
	return []dataset.Field{
		{Name: "image", Kind: dataset.KindVolume},
		{Name: "label", Kind: dataset.KindScalar},
	}
}

func (d *fakeDataset) Fetch(ctx context.Context, id, field string) (any, error) {
	d.fetches.Add(1)
	if id+"/"+field == d.failOn {
		return nil, errors.New(errors.ErrCodeBadFormat, "corrupt raw file")
	}
	if field == "image" {
		return volume.NewInt16([3]int{2, 1, 1}, []int16{1, 2})
	}
	return id, nil
}

func newStores(t *testing.T) (cache.Store, *storage.Store) {
	t.Helper()
	index, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	blobs, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return index, blobs
}

func TestRunPopulatesEverything(t *testing.T) {
	ds := &fakeDataset{}
	index, blobs := newStores(t)

	report, err := Run(context.Background(), ds, index, blobs, Options{Jobs: 2})
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 6 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Manifest.Len() != 6 {
		t.Fatalf("manifest has %d entries, want 6", report.Manifest.Len())
	}
	if _, ok := report.Manifest.Lookup("a", "image"); !ok {
		t.Fatal("manifest missing a/image")
	}

	// The cache now serves without touching the raw dataset.
	cached, err := cache.Wrap(ds, cache.Options{Store: index, Blobs: blobs})
	if err != nil {
		t.Fatal(err)
	}
	before := ds.fetches.Load()
	if _, err := cached.Fetch(context.Background(), "a", "image"); err != nil {
		t.Fatal(err)
	}
	ids, err := cached.IDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v", ids)
	}
	if ds.fetches.Load() != before {
		t.Fatal("cached fetch hit the raw dataset")
	}
}

func TestRunAbortsOnFirstError(t *testing.T) {
	ds := &fakeDataset{failOn: "b/label"}
	index, blobs := newStores(t)

	_, err := Run(context.Background(), ds, index, blobs, Options{Jobs: 1})
	if errors.GetCode(err) != errors.ErrCodeBadFormat {
		t.Fatalf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeBadFormat)
	}
}

func TestRunIgnoreErrorsCollectsFailures(t *testing.T) {
	ds := &fakeDataset{failOn: "b/label"}
	index, blobs := newStores(t)

	report, err := Run(context.Background(), ds, index, blobs, Options{Jobs: 2, IgnoreErrors: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 5 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v", report)
	}
	f := report.Failures[0]
	if f.ID != "b" || f.Field != "label" {
		t.Fatalf("failure = %+v", f)
	}
	if _, ok := report.Manifest.Lookup("b", "label"); ok {
		t.Fatal("failed fetch must not enter the manifest")
	}
}

func TestRunFieldSubset(t *testing.T) {
	ds := &fakeDataset{}
	index, blobs := newStores(t)

	report, err := Run(context.Background(), ds, index, blobs, Options{Fields: []string{"label"}})
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 3 {
		t.Fatalf("succeeded = %d, want 3", report.Succeeded)
	}
	if _, ok := report.Manifest.Lookup("a", "image"); ok {
		t.Fatal("image field was not requested")
	}
}

func TestRunUnknownFieldRejected(t *testing.T) {
	ds := &fakeDataset{}
	index, blobs := newStores(t)
	_, err := Run(context.Background(), ds, index, blobs, Options{Fields: []string{"nope"}})
	if errors.GetCode(err) != errors.ErrCodeInvalidField {
		t.Fatalf("code = %v", errors.GetCode(err))
	}
}

type recordingHooks struct {
	mu        sync.Mutex
	starts    int
	completes int
	doneCalls int
}

func (h *recordingHooks) OnFieldStart(_ context.Context, _, _, _ string) {
	h.mu.Lock()
	h.starts++
	h.mu.Unlock()
}

func (h *recordingHooks) OnFieldComplete(_ context.Context, _, _, _ string, _ time.Duration, _ error) {
	h.mu.Lock()
	h.completes++
	h.mu.Unlock()
}

func (h *recordingHooks) OnDatasetComplete(_ context.Context, _ string, _, _ int, _ time.Duration) {
	h.mu.Lock()
	h.doneCalls++
	h.mu.Unlock()
}

func TestRunCallsHooks(t *testing.T) {
	ds := &fakeDataset{}
	index, blobs := newStores(t)
	hooks := &recordingHooks{}

	if _, err := Run(context.Background(), ds, index, blobs, Options{Jobs: 3, Hooks: hooks}); err != nil {
		t.Fatal(err)
	}
	if hooks.starts != 6 || hooks.completes != 6 || hooks.doneCalls != 1 {
		t.Fatalf("hooks = %+v", hooks)
	}
}

// Manifest written by a populate run round-trips through disk.
func TestManifestRoundTrip(t *testing.T) {
	ds := &fakeDataset{}
	index, blobs := newStores(t)

	report, err := Run(context.Background(), ds, index, blobs, Options{})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := report.Manifest.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := checksum.Load(dir, "fake")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != report.Manifest.Len() {
		t.Fatalf("loaded %d entries, want %d", loaded.Len(), report.Manifest.Len())
	}
}
