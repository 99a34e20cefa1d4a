package visual

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/graph"
)

func TestWriteDOTListsEdgesAndIsolatedNodesSorted(t *testing.T) {
	dir := t.TempDir()
	sf := &core.Sakefile{Entries: []*core.Entry{
		{Name: "compile", Atom: &core.Target{Name: "compile", Help: "h", Formula: "f", Output: []string{"a.o"}}},
		{Name: "link", Atom: &core.Target{Name: "link", Help: "h", Formula: "f", Dependencies: []string{"a.o"}, Output: []string{"app"}}},
		{Name: "docs", Atom: &core.Target{Name: "docs", Help: "h", Formula: "f", Output: []string{"docs.html"}}},
	}}
	g, err := graph.Build(sf, dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDOT(g, &buf))
	out := buf.String()

	assert.Contains(t, out, "strict digraph DependencyDiagram {")
	assert.Contains(t, out, `"compile" -> "link";`)
	assert.Contains(t, out, `"docs";`)
	assert.Contains(t, out, "}")
}

func TestFormatFromExtension(t *testing.T) {
	assert.Equal(t, "png", FormatFromExtension("out.png"))
	assert.Equal(t, "jpg", FormatFromExtension("out.JPG"))
	assert.Equal(t, "pdf", FormatFromExtension("diagram.pdf"))
	assert.Equal(t, "svg", FormatFromExtension("out.svg"))
	assert.Equal(t, "svg", FormatFromExtension("out.bmp"))
	assert.Equal(t, "svg", FormatFromExtension("noextension"))
}
