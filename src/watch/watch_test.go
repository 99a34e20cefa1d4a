package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/graph"
)

func TestWatchedDirsCoversDependencyDirectoriesAndSakefile(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile", Atom: &core.Target{
			Name: "compile", Help: "h", Formula: "f",
			Dependencies: []string{"src/a.c"}, Output: []string{"build/a.o"},
		}},
	}}
	g, err := graph.Build(sf, dir)
	require.NoError(t, err)

	settings := &core.Settings{Dir: dir, SakefilePath: dir + "/Sakefile"}
	dirs := watchedDirs(settings, g)

	assert.Contains(t, dirs, dir)
	assert.Contains(t, dirs, dir+"/src")
}
