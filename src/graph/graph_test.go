package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakebuild/sake/src/core"
)

func target(name, formula string, deps, output []string) *core.Target {
	return &core.Target{Name: name, Help: "h", Formula: formula, Dependencies: deps, Output: output}
}

func TestBuildProducerConsumerEdge(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile", Atom: target("compile", "cc -c a.c -o a.o", nil, []string{"a.o"})},
		{Name: "link", Atom: target("link", "ld a.o -o app", []string{"a.o"}, []string{"app"})},
	}}

	g, err := Build(sf, dir)
	require.NoError(t, err)

	compile := g.Lookup("compile")
	link := g.Lookup("link")
	require.NotNil(t, compile)
	require.NotNil(t, link)

	assert.Len(t, compile.Successors, 1)
	assert.Equal(t, link, compile.Successors[0])
	assert.Len(t, link.Predecessors, 1)
	assert.Equal(t, compile, link.Predecessors[0])
}

func TestBuildDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "a", Atom: target("a", "f1", []string{"b.out"}, []string{"a.out"})},
		{Name: "b", Atom: target("b", "f2", []string{"a.out"}, []string{"b.out"})},
	}}

	_, err := Build(sf, dir)
	require.Error(t, err)
	serr, ok := err.(*core.Error)
	require.True(t, ok)
	assert.Equal(t, core.CycleDetected, serr.Kind)
}

func TestBuildWildcardDependencyResolvesAgainstFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.c"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.c"), []byte("x"), 0644))

	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile", Atom: target("compile", "cc -c *.c -o all.o", []string{"*.c"}, []string{"all.o"})},
	}}

	g, err := Build(sf, dir)
	require.NoError(t, err)
	compile := g.Lookup("compile")
	require.NotNil(t, compile)
	assert.ElementsMatch(t, []string{"one.c", "two.c"}, compile.Dependencies)
}

func TestSinksAreNodesWithNoSuccessors(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile", Atom: target("compile", "f1", nil, []string{"a.o"})},
		{Name: "link", Atom: target("link", "f2", []string{"a.o"}, []string{"app"})},
	}}
	g, err := Build(sf, dir)
	require.NoError(t, err)

	sinks := g.Sinks()
	require.Len(t, sinks, 1)
	assert.Equal(t, "link", sinks[0].Target.Name)
}

func TestTiesSharedDependency(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "a", Atom: target("a", "f1", []string{"shared.txt"}, []string{"a.out"})},
		{Name: "b", Atom: target("b", "f2", []string{"shared.txt"}, []string{"b.out"})},
	}}
	g, err := Build(sf, dir)
	require.NoError(t, err)
	assert.Contains(t, g.Ties["a"], "b")
	assert.Contains(t, g.Ties["b"], "a")
}

func TestWildcardOutputMatchIsDeterministicOnOverlap(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "first", Atom: target("first", "f1", nil, []string{"out/*.o"})},
		{Name: "second", Atom: target("second", "f2", nil, []string{"out/a.*"})},
		{Name: "consumer", Atom: target("consumer", "f3", []string{"out/a.o"}, []string{"consumer.out"})},
	}}
	// Both "first" and "second" declare a wildcard output that matches
	// "out/a.o"; the producer picked must be whichever was declared
	// first in the Sakefile, every time, not whatever a map iteration
	// happens to turn up on a given run.
	for i := 0; i < 20; i++ {
		g, err := Build(sf, dir)
		require.NoError(t, err)
		consumer := g.Lookup("consumer")
		require.NotNil(t, consumer)
		require.Len(t, consumer.Predecessors, 1)
		assert.Equal(t, "first", consumer.Predecessors[0].Target.Name)
	}
}

func TestDuplicateOutputIsError(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "a", Atom: target("a", "f1", nil, []string{"shared.out"})},
		{Name: "b", Atom: target("b", "f2", nil, []string{"shared.out"})},
	}}
	_, err := Build(sf, dir)
	require.Error(t, err)
}
