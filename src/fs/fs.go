// Package fs provides filesystem helpers shared by the graph, scheduler,
// and executor: existence checks, deterministic path sorting, content
// hashing, and glob/pattern matching.
package fs

import (
	"os"
	"path/filepath"
)

// PathExists returns true if the given path exists, as a file or a directory.
func PathExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// FileExists returns true if the given path exists and is a file.
func FileExists(filename string) bool {
	info, err := os.Lstat(filename)
	return err == nil && !info.IsDir()
}

// EnsureDir ensures the directory of the given file has been created.
func EnsureDir(filename string) error {
	return os.MkdirAll(filepath.Dir(filename), 0775)
}

// Normalize converts path to a slash-separated path relative to root.
// Every dependency/output path in the graph is stored this way (§3 invariants).
func Normalize(root, p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}
