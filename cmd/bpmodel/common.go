package main

import (
	"strings"

	"go.bpmodel.dev/model/bpmodel"
)

// openModel loads path as a packaged archive when its extension suggests
// one, and as a plain XML document otherwise.
func openModel(path string, skipCVParse bool) (*bpmodel.Model, error) {
	var opts []bpmodel.Option
	if skipCVParse {
		opts = append(opts, bpmodel.WithSkipCVParse())
	}

	if isPackaged(path) {
		return bpmodel.LoadArchive(path, opts...)
	}

	return bpmodel.Load(path, opts...)
}

func isPackaged(path string) bool {
	switch {
	case strings.HasSuffix(path, ".bpz"), strings.HasSuffix(path, ".zip"):
		return true
	default:
		return false
	}
}
