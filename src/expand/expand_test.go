package expand

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakebuild/sake/src/core"
)

func TestExpandNoPatternPassesThrough(t *testing.T) {
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "report", Atom: &core.Target{Name: "report", Help: "h", Formula: "f", Output: []string{"report.txt"}}},
	}}
	out, err := Expand(sf, t.TempDir())
	require.NoError(t, err)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "report", out.Entries[0].Atom.Name)
}

func TestExpandPatternMultipliesAcrossMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.c"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "b.c"), []byte("b"), 0644))

	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile-%name", Atom: &core.Target{
			Name:         "compile-%name",
			Help:         "compile %name",
			Formula:      "cc -c src/%name.c -o build/%name.o",
			Dependencies: []string{"src/%name.c"},
			Output:       []string{"build/%name.o"},
		}},
	}}

	out, err := Expand(sf, dir)
	require.NoError(t, err)
	require.Len(t, out.Entries, 2)

	var names []string
	for _, e := range out.Entries {
		names = append(names, e.Atom.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"compile-a", "compile-b"}, names)
}

func TestExpandPatternWithoutMatchesYieldsNothing(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile-%name", Atom: &core.Target{
			Name:         "compile-%name",
			Help:         "compile %name",
			Formula:      "cc -c src/%name.c",
			Dependencies: []string{"src/%name.c"},
			Output:       []string{"build/%name.o"},
		}},
	}}
	out, err := Expand(sf, dir)
	require.NoError(t, err)
	assert.Empty(t, out.Entries)
}

func TestExpandPatternWithoutOutputIsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("a"), 0644))
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile-%name", Atom: &core.Target{
			Name:         "compile-%name",
			Help:         "compile %name",
			Formula:      "cc -c %name.c",
			Dependencies: []string{"%name.c"},
		}},
	}}
	_, err := Expand(sf, dir)
	require.Error(t, err)
}

func TestExpandPatternMustAppearInName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("a"), 0644))
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile", Atom: &core.Target{
			Name:         "compile",
			Help:         "compile",
			Formula:      "cc -c %name.c",
			Dependencies: []string{"%name.c"},
			Output:       []string{"%name.o"},
		}},
	}}
	_, err := Expand(sf, dir)
	require.Error(t, err)
}
