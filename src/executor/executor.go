// Package executor runs a resolved build plan: one shell invocation per
// stale target, level by level, serially or concurrently within a
// level, updating the fingerprint store as each target completes.
//
// Grounded on the teacher's src/build/step.go (one subprocess per
// build step, captured output, exit-code driven success) and its
// bounded worker pool in src/build/build.go, adapted from Please's
// persistent worker architecture to sake's simpler "spawn, wait,
// report" per-level model. Concurrency uses golang.org/x/sync/errgroup
// the way the pack's other services bound fan-out, and per-level
// failure aggregation uses github.com/hashicorp/go-multierror so every
// stale sibling target's error is reported, not just the first.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/fs"
	"github.com/sakebuild/sake/src/graph"
	"github.com/sakebuild/sake/src/scheduler"
	"github.com/sakebuild/sake/src/store"
)

// Result records the outcome of running one target's formula.
type Result struct {
	Target       string
	Output       []string
	Dependencies []string
	Stdout       string
	Stderr       string
	Err          error
	Duration     time.Duration
	OutputBytes  int64
}

// Logger receives progress notices as targets start and finish. All
// methods must be safe for concurrent use from multiple goroutines
// when running a level in parallel.
type Logger interface {
	// StartingLevel is called once per level, before any of its
	// targets are launched, with the names of every stale target in
	// that level (already alphabetically ordered). Implementations
	// decide whether that warrants the parallel execution banner (§6:
	// "Going to run these targets '...' in parallel") — a level with
	// a single stale target never gets one, matching the recon phrasing.
	StartingLevel(names []string, parallel bool)
	Running(target, formula string)
	Finished(result Result)
}

// Run executes every level of plan in order, updating hasher and st as
// outputs are produced. It stops at the first level with any failure
// and returns the aggregated error for that level (§4.5: "a level's
// failures are collected and reported together; later levels never run").
func Run(ctx context.Context, plan *scheduler.Plan, hasher *fs.Hasher, st *store.Store, settings *core.Settings, log Logger) error {
	for _, level := range plan.Levels {
		if log != nil {
			names := make([]string, len(level))
			for i, n := range level {
				names[i] = n.Target.Name
			}
			log.StartingLevel(names, settings.Parallel)
		}
		var results []Result
		var err error
		if settings.Parallel {
			results, err = runParallel(ctx, level, settings, log)
		} else {
			results, err = runSerial(ctx, level, settings, log)
		}
		var hashErrs *multierror.Error
		for _, r := range results {
			if r.Err == nil {
				if herr := recordOutputs(r, hasher, st, settings); herr != nil {
					hashErrs = multierror.Append(hashErrs, herr)
				}
			}
		}
		if err != nil {
			return err
		}
		if hashErrs.ErrorOrNil() != nil {
			return hashErrs.ErrorOrNil()
		}
		// Durability checkpoint: the store is rewritten in full after
		// every level that settles without a failure, in serial and
		// parallel mode alike, so a later level's failure never throws
		// away an earlier level's already-recorded progress. It is not
		// rewritten between the targets of one level, and a level with
		// any failure is not saved.
		if err := st.Save(settings.StorePath); err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return nil
}

func runSerial(ctx context.Context, level []*graph.Node, settings *core.Settings, log Logger) ([]Result, error) {
	var results []Result
	var errs *multierror.Error
	for _, n := range level {
		r := runOne(ctx, n, settings, log)
		results = append(results, r)
		if r.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", n.Target.Name, r.Err))
		}
	}
	return results, errs.ErrorOrNil()
}

func runParallel(ctx context.Context, level []*graph.Node, settings *core.Settings, log Logger) ([]Result, error) {
	results := make([]Result, len(level))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, n := range level {
		i, n := i, n
		g.Go(func() error {
			results[i] = runOne(gctx, n, settings, log)
			return nil // collect all results; don't let errgroup short-circuit the level
		})
	}
	g.Wait() //nolint:errcheck // runOne never returns an error from Go(), only via results

	var errs *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", r.Target, r.Err))
		}
	}
	return results, errs.ErrorOrNil()
}

func runOne(ctx context.Context, n *graph.Node, settings *core.Settings, log Logger) Result {
	if log != nil {
		log.Running(n.Target.Name, n.Target.Formula)
	}
	start := time.Now()
	stdout, stderr, err := runFormula(ctx, n.Target.Formula, settings)
	var outputBytes int64
	if err == nil {
		for _, out := range n.Target.Output {
			full := joinRoot(settings.Dir, out)
			info, statErr := os.Stat(full)
			if statErr != nil {
				err = core.Errorf(core.FormulaFailed, "target %q did not produce declared output %q", n.Target.Name, out)
				break
			}
			outputBytes += info.Size()
		}
	}
	r := Result{
		Target:       n.Target.Name,
		Output:       n.Target.Output,
		Dependencies: n.Dependencies,
		Stdout:       stdout,
		Stderr:       stderr,
		Err:          err,
		Duration:     time.Since(start),
		OutputBytes:  outputBytes,
	}
	if log != nil {
		log.Finished(r)
	}
	return r
}

// runFormula runs a target's formula in a shell, using a POSIX fail-fast
// invocation (`sh -e -c`) on Unix or `cmd /C` on Windows, unless
// NoEnhancedErrors asks for the plain shell instead (§4.5 platform note).
func runFormula(ctx context.Context, formula string, settings *core.Settings) (string, string, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", formula)
	} else if settings.NoEnhancedErrors {
		cmd = exec.CommandContext(ctx, "sh", "-c", formula)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-e", "-c", formula)
	}
	cmd.Dir = settings.Dir

	var stdoutBuf, stderrBuf bytes.Buffer
	if settings.Quiet {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	} else {
		cmd.Stdout = io.MultiWriter(os.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderrBuf)
	}

	if err := cmd.Run(); err != nil {
		return stdoutBuf.String(), stderrBuf.String(), core.Wrapf(core.FormulaFailed, err, "formula failed")
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// recordOutputs re-hashes a successfully-built target's outputs and its
// extant dependencies, recording the new digests in the store. Both
// halves matter: outputs so any downstream target sees the fresh
// content rather than a stale memoised hash from before the formula
// ran, and dependencies so that §3's invariant holds — "the store
// contains the current hash of every output of T and every (extant)
// dependency of T" — otherwise a plain source-file dependency (one no
// other target produces) would never gain a store entry and every
// target depending on it would be judged stale on every subsequent run.
// A dependency that no longer exists is simply skipped, not an error.
func recordOutputs(r Result, hasher *fs.Hasher, st *store.Store, settings *core.Settings) error {
	var errs *multierror.Error
	for _, out := range r.Output {
		norm := fs.Normalize(settings.Dir, out)
		hasher.Forget(norm)
		sum, err := hasher.Hash(norm)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("hash output %q of %q: %w", out, r.Target, err))
			continue
		}
		st.Set(norm, sum)
	}
	for _, dep := range r.Dependencies {
		if !fs.FileExists(joinRoot(settings.Dir, dep)) {
			continue
		}
		hasher.Forget(dep)
		sum, err := hasher.Hash(dep)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("hash dependency %q of %q: %w", dep, r.Target, err))
			continue
		}
		st.Set(dep, sum)
	}
	return errs.ErrorOrNil()
}

func joinRoot(root, rel string) string {
	if root == "" {
		return rel
	}
	return root + "/" + rel
}
