// Package sake wires the full build pipeline together: preprocess,
// parse, expand, graph, schedule, execute, and persist — the sequence
// described in §2's overview. cmd/sake/main.go is a thin flag-parsing
// shell around this package, the way the teacher keeps its own
// src/please.go thin and pushes orchestration into src/plz.
package sake

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/executor"
	"github.com/sakebuild/sake/src/expand"
	"github.com/sakebuild/sake/src/fs"
	"github.com/sakebuild/sake/src/graph"
	"github.com/sakebuild/sake/src/preprocess"
	"github.com/sakebuild/sake/src/scheduler"
	"github.com/sakebuild/sake/src/store"
)

// Build is the fully assembled state of one invocation, reused by the
// build, recon, audit, clean, and visual subcommands so each pays the
// parse/expand/graph cost only once.
type Build struct {
	Settings *core.Settings
	Sakefile *core.Sakefile
	Graph    *graph.Graph
	Hasher   *fs.Hasher
	Store    *store.Store
}

// Prepare runs preprocessing, parsing, pattern expansion and graph
// construction — everything needed before a staleness decision can be
// made, without touching the store or running any formula.
func Prepare(settings *core.Settings) (*Build, error) {
	macros := preprocess.NewMacros(settings.Macros)
	result, err := preprocess.Process(settings.SakefilePath, macros)
	if err != nil {
		return nil, err
	}

	sf, err := core.ParseSakefile(result.Text)
	if err != nil {
		return nil, err
	}

	expanded, err := expand.Expand(sf, settings.Dir)
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(expanded, settings.Dir)
	if err != nil {
		return nil, err
	}

	st, err := store.Load(settings.StorePath)
	if err != nil {
		return nil, err
	}

	return &Build{
		Settings: settings,
		Sakefile: expanded,
		Graph:    g,
		Hasher:   fs.NewHasher(settings.Dir),
		Store:    st,
	}, nil
}

// ResolveTargets maps the CLI-supplied target names to graph nodes. An
// empty names list resolves to the Sakefile's declared "all" roots, or,
// when "all" was never declared, to the DAG's own sinks (§9 / SPEC_FULL.md §12).
func (b *Build) ResolveTargets(names []string) ([]*graph.Node, error) {
	if len(names) == 0 {
		if len(b.Sakefile.Roots) > 0 {
			names = b.Sakefile.Roots
		} else {
			var out []*graph.Node
			for _, n := range b.Graph.Sinks() {
				out = append(out, n)
			}
			return out, nil
		}
	}

	var nodes []*graph.Node
	seen := map[string]bool{}
	for _, name := range names {
		atoms, ok := b.Sakefile.ExpandName(name)
		if !ok {
			return nil, core.Errorf(core.UnknownTarget, "Couldn't find target '%s' in Sakefile", name)
		}
		for _, a := range atoms {
			if seen[a] {
				continue
			}
			seen[a] = true
			n := b.Graph.Lookup(a)
			if n == nil {
				return nil, core.Errorf(core.UnknownTarget, "Couldn't find target '%s' in Sakefile", a)
			}
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// ResolveTargetsWithTies resolves names exactly like ResolveTargets, then
// closes the result over the graph's ties relation (§3/§4.4): any target
// that shares a declared dependency with an already-selected target is
// pulled in too, repeated to a fixed point. tieNotice lists every member
// of the closure, alphabetically, but only when applying it actually
// enlarged the originally-requested set — the caller prints the
// one-time ties notice in that case and nothing otherwise. Ties only
// apply when the user named explicit targets; an empty names list (the
// "build everything" case) skips the closure entirely.
func (b *Build) ResolveTargetsWithTies(names []string) (nodes []*graph.Node, tieNotice []string, err error) {
	base, err := b.ResolveTargets(names)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		return base, nil, nil
	}

	set := map[string]bool{}
	for _, n := range base {
		set[n.Target.Name] = true
	}
	original := len(set)

	changed := true
	for changed {
		changed = false
		for name := range set {
			for _, tied := range b.Graph.Ties[name] {
				if !set[tied] {
					set[tied] = true
					changed = true
				}
			}
		}
	}

	members := make([]string, 0, len(set))
	for name := range set {
		members = append(members, name)
	}
	sort.Strings(members)

	nodes = make([]*graph.Node, len(members))
	for i, name := range members {
		nodes[i] = b.Graph.Lookup(name)
	}
	if len(set) > original {
		tieNotice = members
	}
	return nodes, tieNotice, nil
}

// FormatTiesNotice renders the fixed "ties" announcement text (§6): a
// header line followed by one indented bullet per tied member, already
// sorted alphabetically by ResolveTargetsWithTies.
func FormatTiesNotice(members []string) string {
	var b strings.Builder
	b.WriteString("The following targets share dependencies and must be run together:\n")
	for _, m := range members {
		fmt.Fprintf(&b, "  - %s\n", m)
	}
	return b.String()
}

// Plan evaluates staleness for the given roots and returns the
// execution plan, without running or persisting anything.
func (b *Build) Plan(roots []*graph.Node) (*scheduler.Plan, error) {
	return scheduler.Evaluate(b.Graph, roots, b.Hasher, b.Store, b.Settings, b.Settings.Dir)
}

// Execute runs plan's levels and, on success, persists the updated
// store back to disk. The final write merges the hashes just computed
// for this invocation's effective DAG with whatever the loaded store
// already held outside it, so a sub-build (explicit target names
// narrower than the full graph) never erases fingerprints belonging to
// targets it didn't touch (§4.5 "sub-build merge"). Targets that were
// only stale because of --force are excluded from the write entirely:
// forcing a rebuild is a one-off override and must not overwrite the
// baseline used to judge staleness on the next ordinary run. log may
// be nil.
func (b *Build) Execute(ctx context.Context, plan *scheduler.Plan, log executor.Logger) error {
	loaded := b.Store.Clone()
	if err := executor.Run(ctx, plan, b.Hasher, b.Store, b.Settings, log); err != nil {
		return err
	}
	b.Store = store.Merge(loaded, b.Store, b.effectiveDAGPaths(plan), b.forcedPaths(plan))
	return b.Store.Save(b.Settings.StorePath)
}

// effectiveDAGPaths collects the normalized output and dependency paths
// of every node plan.Decisions covers — the full reachable set for this
// invocation, before staleness filtering. Entries outside this set
// belong to targets the current sub-build never reached and must
// survive Execute's merge unchanged.
func (b *Build) effectiveDAGPaths(plan *scheduler.Plan) map[string]bool {
	paths := map[string]bool{}
	for name := range plan.Decisions {
		n := b.Graph.Lookup(name)
		if n == nil {
			continue
		}
		for _, dep := range n.Dependencies {
			paths[dep] = true
		}
		for _, out := range n.Target.Output {
			paths[fs.Normalize(b.Settings.Dir, out)] = true
		}
	}
	return paths
}

// forcedPaths collects the paths belonging to targets that were stale
// only because of --force, so Merge leaves their previously recorded
// hash (or lack of one) untouched rather than baking in the forced
// rebuild's result as the new comparison point.
func (b *Build) forcedPaths(plan *scheduler.Plan) map[string]bool {
	paths := map[string]bool{}
	if !b.Settings.Force {
		return paths
	}
	for name, d := range plan.Decisions {
		if d.Reason != scheduler.ReasonForced {
			continue
		}
		n := b.Graph.Lookup(name)
		if n == nil {
			continue
		}
		for _, dep := range n.Dependencies {
			paths[dep] = true
		}
		for _, out := range n.Target.Output {
			paths[fs.Normalize(b.Settings.Dir, out)] = true
		}
	}
	return paths
}

// PrintRecon writes the fixed recon phrasing for what would run, without
// executing anything (the `-r`/--recon flag, §4.4, stdout contract in
// §6). In serial mode every stale target gets its own "Would run
// target: <name>" line; in parallel mode a level of two or more stale
// targets gets one combined "Would run targets '...' in parallel" line,
// and a level of exactly one falls back to the single-target phrasing.
func PrintRecon(plan *scheduler.Plan, parallel bool, w io.Writer) {
	for _, level := range plan.Levels {
		names := make([]string, len(level))
		for i, n := range level {
			names[i] = n.Target.Name
		}
		if !parallel {
			for _, name := range names {
				fmt.Fprintf(w, "Would run target: %s\n", name)
			}
			continue
		}
		if len(names) == 1 {
			fmt.Fprintf(w, "Would run target '%s'\n", names[0])
		} else {
			fmt.Fprintf(w, "Would run targets '%s' in parallel\n", strings.Join(names, ", "))
		}
	}
}
