// Package scheduler implements staleness analysis and level
// decomposition (§4.4): deciding which targets must rerun, expanding
// that selection to its ties-closure, and arranging the result into
// levels that can be executed one at a time (serially within a level,
// in parallel across a level when the caller asks for it).
//
// Grounded on the teacher's src/core/state.go (which tracks per-target
// build state across a single invocation) and its level-based worker
// dispatch in src/build/incrementality.go, adapted to sake's simpler
// single-pass level-then-run model (no persistent build server).
package scheduler

import (
	"sort"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/fs"
	"github.com/sakebuild/sake/src/graph"
	"github.com/sakebuild/sake/src/store"
)

// Reason names why a target was judged stale, for --recon output and logging.
type Reason string

const (
	ReasonForced            Reason = "forced"
	ReasonOutputMissing     Reason = "output missing"
	ReasonNoDependencies    Reason = "no dependencies"
	ReasonDependencyMissing Reason = "dependency missing"
	ReasonHashChanged       Reason = "dependency changed"
	ReasonFresh             Reason = "up to date"
)

// Decision records the staleness verdict for one node.
type Decision struct {
	Node   *graph.Node
	Stale  bool
	Reason Reason
	Detail string // which path triggered ReasonHashChanged/ReasonOutputMissing/ReasonDependencyMissing, or "tied to <name>" when marked stale through a tie
}

// Plan is the fully resolved build plan: a staleness decision per
// selected node, and that selection arranged into dependency-respecting
// levels, producers (most depended-upon) first.
type Plan struct {
	Decisions map[string]*Decision // by target name
	Levels    [][]*graph.Node      // Levels[0] runs first
}

// Evaluate decides staleness for every node reachable from roots,
// expands the stale set to its ties-closure, and arranges the result
// into execution levels (§4.4).
func Evaluate(g *graph.Graph, roots []*graph.Node, hasher *fs.Hasher, st *store.Store, settings *core.Settings, root string) (*Plan, error) {
	reachable := g.Ancestors(roots)

	decisions := map[string]*Decision{}
	for _, n := range reachable {
		d, err := decide(n, hasher, st, settings, root)
		if err != nil {
			return nil, err
		}
		decisions[n.Target.Name] = d
	}

	applyTiesClosure(g, decisions)

	selected := map[string]*graph.Node{}
	for _, n := range reachable {
		if decisions[n.Target.Name].Stale {
			selected[n.Target.Name] = n
		}
	}

	levels := levelize(selected)

	return &Plan{Decisions: decisions, Levels: levels}, nil
}

// decide applies the staleness order from §4.4: force, then missing
// output, then "no dependencies means always stale", then a hash
// comparison across every dependency.
func decide(n *graph.Node, hasher *fs.Hasher, st *store.Store, settings *core.Settings, root string) (*Decision, error) {
	if settings.Force {
		return &Decision{Node: n, Stale: true, Reason: ReasonForced}, nil
	}
	for _, out := range n.Target.Output {
		if !fs.FileExists(joinRoot(root, out)) {
			return &Decision{Node: n, Stale: true, Reason: ReasonOutputMissing, Detail: out}, nil
		}
	}
	if len(n.Dependencies) == 0 {
		return &Decision{Node: n, Stale: true, Reason: ReasonNoDependencies}, nil
	}
	for _, dep := range n.Dependencies {
		// A dependency that doesn't exist yet is a staleness signal
		// (§4.4: "If D is missing from M -> stale"), not a fatal error —
		// it's the ordinary case for, e.g., a file another stale target
		// in an earlier level is about to (re)produce. Only a hash
		// failure on a file that does exist is a genuine MissingFile.
		if !fs.FileExists(joinRoot(root, dep)) {
			return &Decision{Node: n, Stale: true, Reason: ReasonDependencyMissing, Detail: dep}, nil
		}
		current, err := hasher.Hash(dep)
		if err != nil {
			return nil, core.Wrapf(core.MissingFile, err, "failed to hash dependency %q of %q", dep, n.Target.Name)
		}
		previous, ok := st.Hash(dep)
		if !ok || previous != current {
			return &Decision{Node: n, Stale: true, Reason: ReasonHashChanged, Detail: dep}, nil
		}
	}
	return &Decision{Node: n, Stale: false, Reason: ReasonFresh}, nil
}

func joinRoot(root, rel string) string {
	if root == "" {
		return rel
	}
	return root + "/" + rel
}

// applyTiesClosure marks every tied target stale whenever one member
// of the tie group is stale, iterating to a fixed point since a
// newly-marked tie can itself pull in further ties (§4.3 "ties").
func applyTiesClosure(g *graph.Graph, decisions map[string]*Decision) {
	changed := true
	for changed {
		changed = false
		for name, d := range decisions {
			if !d.Stale {
				continue
			}
			for _, tied := range g.Ties[name] {
				other, ok := decisions[tied]
				if ok && !other.Stale {
					other.Stale = true
					other.Reason = ReasonHashChanged
					other.Detail = "tied to " + name
					changed = true
				}
			}
		}
	}
}

// levelize arranges the selected nodes into execution levels: level 0
// holds every selected node with no selected successor (a sink within
// the selection), and level k+1 holds the predecessors of level k,
// reversed so that producers run before consumers. A node that shows up
// in more than one level is kept only at its earliest position in
// execution order, and each level is ordered alphabetically for
// determinism (§4.4).
func levelize(selected map[string]*graph.Node) [][]*graph.Node {
	var levelsReverse [][]*graph.Node

	current := sinksWithin(selected)
	for len(current) > 0 {
		sort.Slice(current, func(i, j int) bool { return current[i].Target.Name < current[j].Target.Name })
		levelsReverse = append(levelsReverse, current)
		current = predecessorsWithin(current, selected)
	}

	placed := map[string]bool{}
	var levels [][]*graph.Node
	for i := len(levelsReverse) - 1; i >= 0; i-- {
		var lvl []*graph.Node
		for _, n := range levelsReverse[i] {
			if !placed[n.Target.Name] {
				placed[n.Target.Name] = true
				lvl = append(lvl, n)
			}
		}
		if len(lvl) > 0 {
			levels = append(levels, lvl)
		}
	}
	return levels
}

func sinksWithin(selected map[string]*graph.Node) []*graph.Node {
	var out []*graph.Node
	for _, n := range selected {
		hasSelectedSuccessor := false
		for _, s := range n.Successors {
			if _, ok := selected[s.Target.Name]; ok {
				hasSelectedSuccessor = true
				break
			}
		}
		if !hasSelectedSuccessor {
			out = append(out, n)
		}
	}
	return out
}

func predecessorsWithin(level []*graph.Node, selected map[string]*graph.Node) []*graph.Node {
	seen := map[string]bool{}
	var out []*graph.Node
	for _, n := range level {
		for _, p := range n.Predecessors {
			if _, ok := selected[p.Target.Name]; !ok {
				continue
			}
			if seen[p.Target.Name] {
				continue
			}
			seen[p.Target.Name] = true
			out = append(out, p)
		}
	}
	return out
}
