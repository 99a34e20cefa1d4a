package sake

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/store"
)

func writeSakefile(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "Sakefile")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestPrepareParsesExpandsAndBuildsGraph(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("x"), 0644))
	path := writeSakefile(t, dir, `
all:
  - app

compile:
  help: compile sources
  dependencies:
    - a.c
  formula: cp a.c a.o
  output:
    - a.o

app:
  help: link the binary
  dependencies:
    - a.o
  formula: cp a.o app
  output:
    - app
`)

	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: filepath.Join(dir, ".shastore")}
	b, err := Prepare(settings)
	require.NoError(t, err)

	assert.Equal(t, []string{"app"}, b.Sakefile.Roots)
	require.NotNil(t, b.Graph.Lookup("compile"))
	require.NotNil(t, b.Graph.Lookup("app"))
}

func TestResolveTargetsUsesDeclaredRoots(t *testing.T) {
	dir := t.TempDir()
	path := writeSakefile(t, dir, `
all:
  - app

app:
  help: link the binary
  formula: touch app
  output:
    - app
`)
	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: filepath.Join(dir, ".shastore")}
	b, err := Prepare(settings)
	require.NoError(t, err)

	roots, err := b.ResolveTargets(nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "app", roots[0].Target.Name)
}

func TestResolveTargetsFallsBackToSinksWithoutAll(t *testing.T) {
	dir := t.TempDir()
	path := writeSakefile(t, dir, `
compile:
  help: compile
  formula: touch a.o
  output:
    - a.o

link:
  help: link
  dependencies:
    - a.o
  formula: touch app
  output:
    - app
`)
	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: filepath.Join(dir, ".shastore")}
	b, err := Prepare(settings)
	require.NoError(t, err)

	roots, err := b.ResolveTargets(nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "link", roots[0].Target.Name)
}

func TestResolveTargetsUnknownNameIsError(t *testing.T) {
	dir := t.TempDir()
	path := writeSakefile(t, dir, `
app:
  help: link the binary
  formula: touch app
  output:
    - app
`)
	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: filepath.Join(dir, ".shastore")}
	b, err := Prepare(settings)
	require.NoError(t, err)

	_, err = b.ResolveTargets([]string{"nonexistent"})
	require.Error(t, err)
}

func TestExecuteSubBuildPreservesEntriesOutsideTheRequestedDAG(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.src"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.src"), []byte("y"), 0644))
	path := writeSakefile(t, dir, `
a:
  help: build a
  dependencies:
    - a.src
  formula: cp a.src a.out
  output:
    - a.out

b:
  help: build b
  dependencies:
    - b.src
  formula: cp b.src b.out
  output:
    - b.out
`)
	storePath := filepath.Join(dir, ".shastore")
	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: storePath}

	// A prior run already recorded "b"'s fingerprints; this invocation
	// only ever asks for "a", so it must never learn about "b.src"/"b.out".
	b, err := Prepare(settings)
	require.NoError(t, err)
	b.Store.Set("b.src", "stale-sha-src")
	b.Store.Set("b.out", "stale-sha-out")

	roots, err := b.ResolveTargets([]string{"a"})
	require.NoError(t, err)
	plan, err := b.Plan(roots)
	require.NoError(t, err)
	require.NoError(t, b.Execute(context.Background(), plan, nil))

	_, ok := b.Store.Hash("a.src")
	assert.True(t, ok, "a's dependency should be recorded")
	_, ok = b.Store.Hash("a.out")
	assert.True(t, ok, "a's output should be recorded")

	sha, ok := b.Store.Hash("b.src")
	assert.True(t, ok, "b's untouched entries must survive the merge")
	assert.Equal(t, "stale-sha-src", sha)
	sha, ok = b.Store.Hash("b.out")
	assert.True(t, ok)
	assert.Equal(t, "stale-sha-out", sha)

	reloaded, err := store.Load(storePath)
	require.NoError(t, err)
	_, ok = reloaded.Hash("b.src")
	assert.True(t, ok, "the merge must also be what gets persisted to disk")
}

func TestPrepareMergesTargetsDeclaredInAnIncludedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.sake"), []byte(`
lib:
  help: shared library
  formula: touch lib.a
  output:
    - lib.a
`), 0644))
	path := writeSakefile(t, dir, `
#< shared.sake

all:
  - app

app:
  help: link the binary
  dependencies:
    - lib.a
  formula: touch app
  output:
    - app
`)
	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: filepath.Join(dir, ".shastore")}
	b, err := Prepare(settings)
	require.NoError(t, err)

	lib := b.Graph.Lookup("lib")
	require.NotNil(t, lib, "a target declared only in an included file must still become a graph node")
	app := b.Graph.Lookup("app")
	require.NotNil(t, app)
	require.Len(t, app.Predecessors, 1)
	assert.Equal(t, lib, app.Predecessors[0], "app's dependency on lib.a must resolve to the included target as its producer")
}

func TestPlanOverGraphNodesCoversTargetsOutsideAll(t *testing.T) {
	dir := t.TempDir()
	path := writeSakefile(t, dir, `
all:
  - app

app:
  help: link the binary
  formula: touch app
  output:
    - app

orphan:
  help: not reachable from any root
  formula: touch orphan.out
  output:
    - orphan.out
`)
	settings := &core.Settings{Dir: dir, SakefilePath: path, StorePath: filepath.Join(dir, ".shastore")}
	b, err := Prepare(settings)
	require.NoError(t, err)

	// The default build roots (ResolveTargets(nil)) never reach "orphan",
	// but an audit-style plan over every graph node must still report it.
	roots, err := b.ResolveTargets(nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	plan, err := b.Plan(b.Graph.Nodes)
	require.NoError(t, err)
	_, ok := plan.Decisions["orphan"]
	assert.True(t, ok, "a plan over every graph node must include targets outside all's closure")
}
