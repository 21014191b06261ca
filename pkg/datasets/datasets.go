// Package datasets provides the complete list of supported datasets.
//
// This package exists to break import cycles: the individual dataset
// packages (ctich, verse, etc.) import pkg/dataset, so pkg/dataset
// cannot import them back. Consumers that need the full catalog import
// this package instead.
package datasets

import (
	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/datasets/cc359"
	"github.com/scancat/scancat/pkg/datasets/crlm"
	"github.com/scancat/scancat/pkg/datasets/ctich"
	"github.com/scancat/scancat/pkg/datasets/deeplesion"
	"github.com/scancat/scancat/pkg/datasets/livermedseg"
	"github.com/scancat/scancat/pkg/datasets/medseg9"
	"github.com/scancat/scancat/pkg/datasets/nsclc"
	"github.com/scancat/scancat/pkg/datasets/verse"
)

// All is the canonical list of catalog entries.
var All = []dataset.Entry{
	cc359.Entry,
	crlm.Entry,
	ctich.Entry,
	deeplesion.Entry,
	livermedseg.Entry,
	medseg9.Entry,
	nsclc.Entry,
	verse.Entry,
}

// Registry builds a registry holding every supported dataset.
func Registry() *dataset.Registry {
	r := dataset.NewRegistry()
	for _, e := range All {
		r.MustRegister(e)
	}
	return r
}
