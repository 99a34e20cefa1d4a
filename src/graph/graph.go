// Package graph builds the dependency DAG from a fully expanded Sakefile
// (§4.3): one node per concrete atomic target, producer->consumer edges
// inferred from output/dependency path matching, cycle detection, and
// the "ties" relation used by the scheduler to keep jointly-required
// targets together.
//
// Grounded on the teacher's src/core/graph.go (BuildGraph construction
// and its incremental edge bookkeeping) and src/core/cycle_detector.go,
// adapted from build-rule labels to sake's path-matching producer/consumer
// inference.
package graph

import (
	"sort"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/fs"
)

// Node is one atomic target placed in the graph.
type Node struct {
	Target *core.Target
	// Dependencies holds the target's declared dependencies after
	// wildcard resolution and path normalization, in no particular
	// order. The scheduler hashes these paths to decide staleness.
	Dependencies []string
	// Successors are nodes that depend on this node's output (this node
	// must run before them).
	Successors []*Node
	// Predecessors are nodes that produce this node's inputs (this node
	// must run after them).
	Predecessors []*Node
}

// Graph is the full dependency DAG plus lookup indices.
type Graph struct {
	Nodes   []*Node
	byName  map[string]*Node
	byOutput map[string]*Node // normalized output path -> producing node
	// Ties maps a node name to every other node name it shares at least
	// one dependency with (§4.3 "ties": they must be scheduled in the
	// same run when either is selected).
	Ties map[string][]string
}

// Build constructs the DAG for every concrete atom in sf. root is the
// build directory, used to normalize declared paths and to resolve
// plain `*`/`?` wildcard dependencies via the filesystem.
func Build(sf *core.Sakefile, root string) (*Graph, error) {
	g := &Graph{
		byName:   map[string]*Node{},
		byOutput: map[string]*Node{},
		Ties:     map[string][]string{},
	}

	atoms := sf.AllAtoms()
	for _, t := range atoms {
		if g.byName[t.Name] != nil {
			return nil, core.Errorf(core.ParseError, "duplicate target name %q", t.Name)
		}
		n := &Node{Target: t}
		g.Nodes = append(g.Nodes, n)
		g.byName[t.Name] = n
		for _, out := range t.Output {
			norm := fs.Normalize(root, out)
			if existing, ok := g.byOutput[norm]; ok {
				return nil, core.Errorf(core.IntegrityError,
					"output %q is produced by both %q and %q", norm, existing.Target.Name, t.Name)
			}
			g.byOutput[norm] = n
		}
	}

	detector := core.NewCycleDetector()

	for _, n := range g.Nodes {
		resolved, err := resolveDependencyPaths(n.Target, root)
		if err != nil {
			return nil, err
		}
		n.Dependencies = resolved
		for _, dep := range resolved {
			producer, ok := g.byOutput[dep]
			if !ok {
				producer = matchByFnmatch(g, dep, root)
			}
			if producer == nil {
				continue // a plain source file with no producing target
			}
			if producer == n {
				continue
			}
			if err := detector.AddEdge(producer.Target.Name, n.Target.Name); err != nil {
				return nil, err
			}
			producer.Successors = appendUnique(producer.Successors, n)
			n.Predecessors = appendUnique(n.Predecessors, producer)
		}
	}

	g.computeTies()
	return g, nil
}

// resolveDependencyPaths expands plain filesystem wildcards in a
// target's declared dependencies and normalizes every path (§4.2:
// "wildcards in dependencies are resolved at graph-build time").
func resolveDependencyPaths(t *core.Target, root string) ([]string, error) {
	var out []string
	for _, dep := range t.Dependencies {
		if containsWildcard(dep) {
			matches, err := fs.Glob(root, dep)
			if err != nil {
				return nil, core.Wrapf(core.MissingFile, err, "failed to resolve wildcard dependency %q of %q", dep, t.Name)
			}
			out = append(out, matches...)
			continue
		}
		out = append(out, fs.Normalize(root, dep))
	}
	return out, nil
}

func containsWildcard(s string) bool {
	for _, r := range s {
		if r == '*' || r == '?' || r == '[' {
			return true
		}
	}
	return false
}

// matchByFnmatch falls back to fnmatch-style matching (§4.3) when no
// output path is a byte-for-byte match: a producer's output pattern
// (itself possibly containing `*`/`?`) may match a consumer's literal
// dependency path. Walks g.Nodes in declaration order rather than the
// byOutput map directly, so that if more than one target's wildcard
// output happens to match the same dependency, the producer chosen is
// always the first one declared in the Sakefile, not whichever the
// map's randomized iteration order turns up that run.
func matchByFnmatch(g *Graph, dep, root string) *Node {
	for _, n := range g.Nodes {
		for _, out := range n.Target.Output {
			if containsWildcard(out) && fs.Match(fs.Normalize(root, out), dep) {
				return n
			}
		}
	}
	return nil
}

func appendUnique(list []*Node, n *Node) []*Node {
	for _, existing := range list {
		if existing == n {
			return list
		}
	}
	return append(list, n)
}

// computeTies builds the symmetric "shares a dependency" relation: two
// targets are tied if they declare at least one identical dependency
// path (after wildcard resolution). Ties force the scheduler to select
// them jointly even if only one is reachable from the requested roots.
func (g *Graph) computeTies() {
	owners := map[string][]string{} // dependency path -> target names that declare it
	for _, n := range g.Nodes {
		for _, d := range n.Dependencies {
			owners[d] = append(owners[d], n.Target.Name)
		}
	}
	for _, names := range owners {
		if len(names) < 2 {
			continue
		}
		for _, a := range names {
			for _, b := range names {
				if a == b {
					continue
				}
				g.Ties[a] = appendUniqueString(g.Ties[a], b)
			}
		}
	}
	for name := range g.Ties {
		sort.Strings(g.Ties[name])
	}
}

func appendUniqueString(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// Lookup returns the node for a target name, or nil.
func (g *Graph) Lookup(name string) *Node {
	return g.byName[name]
}

// Sinks returns every node with no successors, in declaration order —
// the inferred root set when the Sakefile has no "all" entry (§9 /
// SPEC_FULL.md §12).
func (g *Graph) Sinks() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if len(n.Successors) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Ancestors returns every node reachable by walking Predecessors from
// the given roots, plus the roots themselves, deduplicated.
func (g *Graph) Ancestors(roots []*Node) []*Node {
	seen := map[*Node]bool{}
	var out []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
		for _, p := range n.Predecessors {
			visit(p)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}
