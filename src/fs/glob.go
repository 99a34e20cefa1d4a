package fs

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// Glob resolves a wildcard dependency pattern (e.g. "src/*.c") against
// root, returning matching paths normalized relative to root, sorted
// for determinism. Only `*`/`?`/`[...]` filesystem globs are handled
// here; `%name` patterns are a distinct mechanism (see src/expand).
func Glob(root, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(root, m)
		if err != nil {
			rel = m
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

// Match reports whether name matches pattern using fnmatch semantics,
// as used by the graph builder to connect a producer's (glob-expanded)
// outputs to a consumer's declared dependency path (§4.3).
func Match(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// WalkFiles recursively walks root (skipping `.git` and `.sake`
// directories) calling fn for every non-directory entry found, relative
// to root. Other dot-directories and the store file are not skipped. Used by the target expander to enumerate candidate files
// for %pattern substitution. Uses godirwalk for speed over large trees,
// the same concern the teacher covers with its own fast walker in
// src/fs/walk.go.
func WalkFiles(root string, fn func(relPath string) error) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}
			if de.IsDir() {
				name := filepath.Base(osPathname)
				if name == ".git" || name == ".sake" {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return err
			}
			return fn(filepath.ToSlash(rel))
		},
		ErrorCallback: func(osPathname string, err error) godirwalk.ErrorAction {
			if os.IsNotExist(err) {
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
	})
}
