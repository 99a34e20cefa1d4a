// Package clean implements `sake clean`: removing every declared output
// in the Sakefile and the fingerprint store, or (in recon mode) just
// printing what would be removed.
//
// Grounded on the teacher's src/clean/clean.go (sorted, declaration-free
// path removal with a dry-run mode), adapted from Please's build-output
// directory tree to sake's flat list of declared output paths.
package clean

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/fs"
)

// Clean removes every declared output path (and the store file) under
// settings.Dir. In recon mode it only prints the sorted list of paths
// that would be removed, to w, and removes nothing.
func Clean(sf *core.Sakefile, settings *core.Settings, w io.Writer) error {
	paths := outputPaths(sf)
	if fs.PathExists(settings.StorePath) {
		paths = append(paths, fs.Normalize(settings.Dir, settings.StorePath))
	}
	paths = fs.SortPaths(paths)

	if settings.Recon {
		for _, p := range paths {
			fmt.Fprintf(w, "Would remove file: %s\n", p)
		}
		return nil
	}

	var firstErr error
	for _, p := range paths {
		full := filepath.Join(settings.Dir, p)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = core.Wrapf(core.IntegrityError, err, "failed to remove %s", p)
		}
	}
	if firstErr == nil {
		fmt.Fprintln(w, "All clean")
	}
	return firstErr
}

// outputPaths collects every declared output path across every atomic
// target, as declared (not normalized), deduplicated.
func outputPaths(sf *core.Sakefile) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range sf.AllAtoms() {
		for _, o := range t.Output {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	return out
}
