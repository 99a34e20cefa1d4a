// Command sake builds declaratively-described targets from a Sakefile:
// a self-documenting, content-hash-driven alternative to Make, in the
// spirit of the original Python tool of the same name.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sakebuild/sake/src/audit"
	"github.com/sakebuild/sake/src/cli"
	"github.com/sakebuild/sake/src/cli/logging"
	"github.com/sakebuild/sake/src/clean"
	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/executor"
	"github.com/sakebuild/sake/src/fs"
	"github.com/sakebuild/sake/src/help"
	"github.com/sakebuild/sake/src/sake"
	"github.com/sakebuild/sake/src/visual"
	"github.com/sakebuild/sake/src/watch"
)

var opts struct {
	Usage string `usage:"sake [FLAGS] [TARGET...]"`

	Recon            bool     `short:"r" long:"recon" description:"print what would be done without doing it"`
	Parallel         bool     `short:"p" long:"parallel" description:"execute each build level concurrently"`
	Force            bool     `short:"F" long:"force" description:"treat every target in the effective DAG as stale"`
	Quiet            bool     `short:"q" long:"quiet" description:"suppress formula stdout/stderr"`
	Verbose          bool     `short:"v" long:"verbose" description:"emit detailed progress output"`
	Macros           []string `short:"D" long:"define" description:"override a macro, e.g. -D NAME=VALUE" value-name:"NAME=VALUE"`
	SakefilePath     string   `short:"s" long:"sakefile" description:"path to the Sakefile (default search order: Sakefile, Sakefile.yaml, Sakefile.yml)"`
	StorePath        string   `long:"store" description:"path to the fingerprint store" default:".shastore"`
	NoEnhancedErrors bool     `long:"no-enhanced-errors" description:"don't use the fail-fast shell invocation"`
	VisualDOTOnly    bool     `short:"n" long:"dot-only" description:"visual: print DOT to stdout only, even when -f is given"`
	VisualFile       string   `short:"f" long:"file" description:"visual: render the dependency graph to FILE via dot (format from extension)" value-name:"FILE"`

	Args struct {
		Targets []string `positional-arg-name:"TARGET"`
	} `positional-args:"yes"`
}

func main() {
	_, extraArgs := cli.ParseFlagsOrDie("sake", core.Version, &opts)
	if len(extraArgs) > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %s\n", strings.Join(extraArgs, " "))
		os.Exit(1)
	}

	verbosity := logging.WARNING
	if opts.Verbose {
		verbosity = logging.DEBUG
	}
	cli.InitLogging(cli.Verbosity(verbosity))

	settings := &core.Settings{
		Dir:              ".",
		SakefilePath:     resolveSakefilePath(opts.SakefilePath),
		StorePath:        opts.StorePath,
		Macros:           parseMacroOverrides(opts.Macros),
		Force:            opts.Force,
		Recon:            opts.Recon,
		Parallel:         opts.Parallel,
		Quiet:            opts.Quiet,
		Verbose:          opts.Verbose,
		NoEnhancedErrors: opts.NoEnhancedErrors,
	}

	if len(opts.Args.Targets) > 0 {
		switch opts.Args.Targets[0] {
		case "clean":
			runClean(settings)
			return
		case "visual":
			runVisual(settings, opts.VisualDOTOnly, opts.VisualFile)
			return
		case "help":
			runHelp(settings)
			return
		case "audit":
			runAudit(settings)
			return
		case "watch":
			runWatch(settings, opts.Args.Targets[1:])
			return
		}
	}

	runBuild(settings, opts.Args.Targets)
}

// resolveSakefilePath honours an explicit `-s FILE`, or else searches
// the default order from §6: Sakefile, Sakefile.yaml, Sakefile.yml. If
// none exist, it returns the first name anyway so the resulting
// MissingFile error names it.
func resolveSakefilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range core.SakefileNames {
		if fs.FileExists(name) {
			return name
		}
	}
	return core.SakefileNames[0]
}

// parseMacroOverrides turns repeated "-D NAME=VALUE" flags into the
// override map threaded through preprocessing (§4.1 CLI precedence).
func parseMacroOverrides(defines []string) map[string]string {
	out := make(map[string]string, len(defines))
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			die(fmt.Errorf("invalid -D value %q, expected NAME=VALUE", d))
		}
		out[name] = value
	}
	return out
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}

func runBuild(settings *core.Settings, targets []string) {
	b, err := sake.Prepare(settings)
	if err != nil {
		die(err)
	}
	roots, tieNotice, err := b.ResolveTargetsWithTies(targets)
	if err != nil {
		die(err)
	}
	if len(tieNotice) > 0 {
		fmt.Print(sake.FormatTiesNotice(tieNotice))
	}
	plan, err := b.Plan(roots)
	if err != nil {
		die(err)
	}
	if settings.Recon {
		sake.PrintRecon(plan, settings.Parallel, os.Stdout)
		return
	}
	if err := b.Execute(context.Background(), plan, consoleLogger{verbose: settings.Verbose, quiet: settings.Quiet}); err != nil {
		die(err)
	}
	fmt.Println("Done")
}

func runClean(settings *core.Settings) {
	b, err := sake.Prepare(settings)
	if err != nil {
		die(err)
	}
	if err := clean.Clean(b.Sakefile, settings, os.Stdout); err != nil {
		die(err)
	}
}

func runHelp(settings *core.Settings) {
	b, err := sake.Prepare(settings)
	if err != nil {
		die(err)
	}
	help.Print(b.Sakefile, os.Stdout)
}

// runAudit reports freshness for every atomic target in the Sakefile,
// not just the default build's root set — unlike -r recon, which only
// covers the requested target's effective DAG (§11.1 of SPEC_FULL.md).
func runAudit(settings *core.Settings) {
	b, err := sake.Prepare(settings)
	if err != nil {
		die(err)
	}
	plan, err := b.Plan(b.Graph.Nodes)
	if err != nil {
		die(err)
	}
	audit.Print(plan, os.Stdout)
}

// runVisual implements `visual [-n] [-f FILE]` (§6): with no flags, or
// with -n, the DOT document goes straight to stdout; with -f FILE (and
// no -n), it's rendered through `dot` into FILE, the output format
// chosen from FILE's extension.
func runVisual(settings *core.Settings, dotOnly bool, outFile string) {
	b, err := sake.Prepare(settings)
	if err != nil {
		die(err)
	}
	if outFile == "" || dotOnly {
		if err := visual.WriteDOT(b.Graph, os.Stdout); err != nil {
			die(err)
		}
		return
	}
	var dot bytes.Buffer
	if err := visual.WriteDOT(b.Graph, &dot); err != nil {
		die(err)
	}
	if err := visual.Render(dot.Bytes(), visual.FormatFromExtension(outFile), outFile); err != nil {
		die(fmt.Errorf("failed to render dependency graph to %s: %w", outFile, err))
	}
}

func runWatch(settings *core.Settings, targets []string) {
	b, err := sake.Prepare(settings)
	if err != nil {
		die(err)
	}
	rebuild := func() error {
		fresh, err := sake.Prepare(settings)
		if err != nil {
			return err
		}
		freshRoots, err := fresh.ResolveTargets(targets)
		if err != nil {
			return err
		}
		plan, err := fresh.Plan(freshRoots)
		if err != nil {
			return err
		}
		return fresh.Execute(context.Background(), plan, consoleLogger{verbose: settings.Verbose, quiet: settings.Quiet})
	}
	onError := func(err error) { fmt.Fprintf(os.Stderr, "Error: %s\n", err) }
	if err := watch.Run(context.Background(), settings, b.Graph, rebuild, onError); err != nil {
		die(err)
	}
}

// consoleLogger reports build progress to stdout, matching the
// teacher's convention of keeping progress on stdout and diagnostics on stderr.
type consoleLogger struct {
	verbose bool
	quiet   bool
}

// StartingLevel prints the parallel execution banner (§6) when a level
// holds more than one stale target and parallel mode is on; a
// single-target level runs exactly like the serial path and gets no banner.
func (consoleLogger) StartingLevel(names []string, parallel bool) {
	if parallel && len(names) > 1 {
		fmt.Printf("Going to run these targets '%s' in parallel\n", strings.Join(names, ", "))
	}
}

func (l consoleLogger) Running(target, formula string) {
	fmt.Printf("Running target %s\n", target)
	if !l.quiet {
		fmt.Println(formula)
	}
}

func (l consoleLogger) Finished(r executor.Result) {
	if r.Err != nil {
		fmt.Fprintf(os.Stderr, "Failed %s: %s\n", r.Target, r.Err)
		return
	}
	if l.verbose {
		fmt.Printf("Finished %s in %s (%s written)\n", r.Target, r.Duration.Round(time.Millisecond), humanize.Bytes(uint64(r.OutputBytes)))
	}
}
