// Package pkg provides the core libraries of the scancat dataset catalog.
//
// # Overview
//
// Scancat gives heterogeneous public medical imaging datasets one uniform
// access interface. Each dataset exposes a stable sorted id list and a set
// of declared fields (volumes, masks, spacings, metadata) fetched on
// demand from the raw published files. Around that sit caching, content
// addressing, and checksum verification, so expensive decodes happen once
// and silent corruption is caught.
//
// # Architecture
//
// The typical data flow:
//
//	raw dataset files (zip/NIfTI/DICOM/CSV)
//	         ↓
//	    [datasets] package (per-dataset accessors)
//	         ↓
//	    [cache] package (index + serializers)
//	         ↓
//	    [storage] package (content-addressed blobs)
//	         ↓
//	    [checksum] manifests (verification)
//
// # Main Packages
//
// [dataset] - The uniform accessor interface, field kinds, catalog
// descriptions, and the registry.
//
// [datasets] - One subpackage per supported dataset (cc359, crlm, ctich,
// deeplesion, livermedseg, medseg9, nsclc, verse), aggregated in
// datasets.All.
//
// [volume] - Dense 3-D voxel arrays with NPY serialization and dtype
// conversions.
//
// [nifti] - NIfTI-1 reading and writing.
//
// [dcmseries] - DICOM series discovery, geometric sorting, and volume
// assembly.
//
// [storage] - Content-addressed blob store keyed by SHA-256 digest.
//
// [cache] - Field cache over pluggable index backends (file, redis,
// null), wrapping any dataset.
//
// [checksum] - Per-dataset digest manifests and verification levels.
//
// [populate] - Concurrent cache warming with progress hooks.
//
// [mirror] - Resumable, verified raw archive downloads.
//
// [config] - TOML configuration.
//
// [docgen] - Markdown catalog documentation.
//
// # Quick Start
//
// Open a dataset and read a scan:
//
//	import (
//	    "context"
//	    "github.com/scancat/scancat/pkg/datasets/ctich"
//	    "github.com/scancat/scancat/pkg/volume"
//	)
//
//	ds, _ := ctich.New("/data/ct-ich")
//	ids, _ := ds.IDs(context.Background())
//	v, _ := ds.Fetch(context.Background(), ids[0], "image")
//	img := v.(*volume.Volume)
//
// Layer the cache on top:
//
//	blobs, _ := storage.New(storageDir)
//	index, _ := cache.NewFileStore(cacheDir)
//	cached, _ := cache.Wrap(ds, cache.Options{Store: index, Blobs: blobs})
//
// [dataset]: https://pkg.go.dev/github.com/scancat/scancat/pkg/dataset
// [datasets]: https://pkg.go.dev/github.com/scancat/scancat/pkg/datasets
// [volume]: https://pkg.go.dev/github.com/scancat/scancat/pkg/volume
// [nifti]: https://pkg.go.dev/github.com/scancat/scancat/pkg/nifti
// [dcmseries]: https://pkg.go.dev/github.com/scancat/scancat/pkg/dcmseries
// [storage]: https://pkg.go.dev/github.com/scancat/scancat/pkg/storage
// [cache]: https://pkg.go.dev/github.com/scancat/scancat/pkg/cache
// [checksum]: https://pkg.go.dev/github.com/scancat/scancat/pkg/checksum
// [populate]: https://pkg.go.dev/github.com/scancat/scancat/pkg/populate
// [mirror]: https://pkg.go.dev/github.com/scancat/scancat/pkg/mirror
// [config]: https://pkg.go.dev/github.com/scancat/scancat/pkg/config
// [docgen]: https://pkg.go.dev/github.com/scancat/scancat/pkg/docgen
package pkg
