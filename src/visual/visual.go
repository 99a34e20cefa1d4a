// Package visual implements `sake visual` (§6): rendering the
// dependency graph as a Graphviz DOT document, with edges and isolated
// nodes listed in sorted order for a stable diff-friendly output, and
// an optional shell-out to the `dot` binary to render a specific
// format.
//
// Grounded on the teacher's src/query/graph.go DOT exporter (sorted
// node/edge emission for determinism), adapted to sake's single flat
// target graph instead of Please's per-package build graph.
package visual

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sakebuild/sake/src/graph"
)

// WriteDOT writes a `strict digraph` DOT representation of g to w,
// naming it DependencyDiagram. Edges run producer -> consumer, matching
// the graph's own edge direction (§4.3).
func WriteDOT(g *graph.Graph, w io.Writer) error {
	names := make([]string, 0, len(g.Nodes))
	byName := map[string]*graph.Node{}
	for _, n := range g.Nodes {
		names = append(names, n.Target.Name)
		byName[n.Target.Name] = n
	}
	sort.Strings(names)

	fmt.Fprintln(w, "strict digraph DependencyDiagram {")
	var edges []string
	isolated := map[string]bool{}
	for _, name := range names {
		n := byName[name]
		if len(n.Successors) == 0 && len(n.Predecessors) == 0 {
			isolated[name] = true
			continue
		}
		for _, s := range n.Successors {
			edges = append(edges, fmt.Sprintf("\t%q -> %q;", name, s.Target.Name))
		}
	}
	sort.Strings(edges)
	for _, e := range edges {
		fmt.Fprintln(w, e)
	}
	isoNames := make([]string, 0, len(isolated))
	for name := range isolated {
		isoNames = append(isoNames, name)
	}
	sort.Strings(isoNames)
	for _, name := range isoNames {
		fmt.Fprintf(w, "\t%q;\n", name)
	}
	fmt.Fprintln(w, "}")
	return nil
}

// Render shells out to the `dot` binary to convert a DOT document into
// the requested output format (e.g. "svg", "png"), writing the result
// to outPath. dot must be on PATH.
func Render(dotSource []byte, format, outPath string) error {
	cmd := exec.Command("dot", "-T"+format, "-o", outPath)
	cmd.Stdin = bytes.NewReader(dotSource)
	return cmd.Run()
}

// FormatFromExtension derives the `dot` output format from outPath's
// file extension, per §6 (svg/png/jpg/jpeg/gif/ps/pdf; default svg for
// anything else, including no extension at all).
func FormatFromExtension(outPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(outPath), "."))
	switch ext {
	case "png", "jpg", "jpeg", "gif", "ps", "pdf":
		return ext
	default:
		return "svg"
	}
}
