// Package audit implements `sake audit`, a supplemental read-only
// report of build freshness: for every atomic target it states whether
// it is stale and why, without running anything or touching the
// store. This command has no counterpart in spec.md's core operation
// list; it supplements the distillation with the original Python
// tool's "explain what would run and why" introspection need (see
// DESIGN.md), built from the same staleness decisions the real build
// uses so the two can never disagree.
package audit

import (
	"fmt"
	"io"
	"sort"

	"github.com/sakebuild/sake/src/scheduler"
)

// Print writes one line per target in plan.Decisions, sorted by name,
// reporting its staleness verdict and reason.
func Print(plan *scheduler.Plan, w io.Writer) {
	names := make([]string, 0, len(plan.Decisions))
	for name := range plan.Decisions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := plan.Decisions[name]
		status := "fresh"
		if d.Stale {
			status = "stale"
		}
		if d.Detail != "" {
			fmt.Fprintf(w, "%s\t%s\t%s (%s)\n", name, status, d.Reason, d.Detail)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, status, d.Reason)
		}
	}
}

// StaleTargets returns the names of every stale node in plan, sorted.
func StaleTargets(plan *scheduler.Plan) []string {
	var out []string
	for name, d := range plan.Decisions {
		if d.Stale {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
