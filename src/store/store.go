// Package store implements the persistent fingerprint store (the
// `.shastore` file, §5): the per-path content hashes recorded from the
// previous successful run, used by the scheduler to decide staleness,
// and the atomic rewrite-then-rename durability discipline used when
// saving it back.
//
// Grounded on the teacher's src/core/config.go (YAML-backed persistent
// state) and its atomic-write helper in src/fs, adapted to sake's
// single flat fingerprint map. Atomic renames are keyed with a
// github.com/google/uuid suffix instead of a pid, and the file version
// is compared with github.com/Masterminds/semver/v3 the way the
// teacher compares its own file-format version.
package store

import (
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sakebuild/sake/src/core"
)

// FormatVersion is the version written into every saved store: the
// running tool's own version (core.Version). It is checked on load so
// that a sake binary can detect a store from any other version.
const FormatVersion = core.Version

// Store is the in-memory form of a `.shastore` file: one SHA-1 digest
// per known path, plus the tool version it was saved with.
type Store struct {
	Version string                 `yaml:"sake version"`
	Files   map[string]FileRecord  `yaml:"files"`
}

// FileRecord is the persisted fingerprint for a single path.
type FileRecord struct {
	SHA string `yaml:"sha"`
}

// New returns an empty store at the current format version.
func New() *Store {
	return &Store{Version: FormatVersion, Files: map[string]FileRecord{}}
}

// Load reads and parses the store file at path. A missing file is not
// an error: it returns a fresh empty store, since the first build in a
// directory has no prior fingerprints.
func Load(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, core.Wrapf(core.MissingFile, err, "failed to read store %s", path)
	}
	var s Store
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, core.Wrapf(core.ParseError, err, "failed to parse store %s", path)
	}
	if s.Files == nil {
		s.Files = map[string]FileRecord{}
	}
	if err := checkVersion(s.Version); err != nil {
		return nil, err
	}
	return &s, nil
}

func checkVersion(v string) error {
	if v == "" {
		return core.Errorf(core.StoreVersionMismatch,
			"store file has no version (current is %s); run clean and rebuild", FormatVersion)
	}
	stored, err := semver.NewVersion(v)
	if err != nil {
		return core.Wrapf(core.StoreVersionMismatch, err, "unreadable store version %q", v)
	}
	current, _ := semver.NewVersion(FormatVersion)
	if !stored.Equal(current) {
		return core.Errorf(core.StoreVersionMismatch,
			"store file was written by an incompatible version (%s, current is %s); run clean and rebuild", v, FormatVersion)
	}
	return nil
}

// Hash returns the previously recorded digest for path, if any.
func (s *Store) Hash(path string) (string, bool) {
	r, ok := s.Files[path]
	if !ok {
		return "", false
	}
	return r.SHA, true
}

// Set records path's digest, overwriting any prior value.
func (s *Store) Set(path, sha string) {
	s.Files[path] = FileRecord{SHA: sha}
}

// Delete removes any recorded fingerprint for path.
func (s *Store) Delete(path string) {
	delete(s.Files, path)
}

// Save atomically rewrites the store file at path: the new content is
// written to a uniquely-named sibling temp file, then renamed over the
// destination, so a crash mid-write never leaves a corrupt store (§5
// durability requirement).
func (s *Store) Save(path string) error {
	s.Version = FormatVersion
	b, err := yaml.Marshal(s)
	if err != nil {
		return core.Wrapf(core.ParseError, err, "failed to marshal store")
	}
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return core.Wrapf(core.IntegrityError, err, "failed to write temporary store file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return core.Wrapf(core.IntegrityError, err, "failed to install store file")
	}
	return nil
}

// Clone returns an independent copy of s, so a caller can snapshot the
// store as loaded from disk before execution mutates it in place.
func (s *Store) Clone() *Store {
	out := New()
	out.Version = s.Version
	for path, rec := range s.Files {
		out.Files[path] = rec
	}
	return out
}

// Merge folds loaded (on-disk) entries into a freshly computed store
// from a sub-build: entries from the loaded store that lie outside the
// effective DAG are preserved, entries inside the DAG come from the
// in-memory hashes just computed, and any path in doNotUpdate is left
// exactly as it was on disk (§5 "sub-build merge" semantics, resolved
// per SPEC_FULL.md §12).
func Merge(loaded, computed *Store, effectiveDAGPaths map[string]bool, doNotUpdate map[string]bool) *Store {
	out := New()
	for path, rec := range loaded.Files {
		if doNotUpdate[path] {
			out.Files[path] = rec
			continue
		}
		if !effectiveDAGPaths[path] {
			out.Files[path] = rec
		}
	}
	for path, rec := range computed.Files {
		if doNotUpdate[path] {
			continue
		}
		if effectiveDAGPaths[path] {
			out.Files[path] = rec
		}
	}
	return out
}
