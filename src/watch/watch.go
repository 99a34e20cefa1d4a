// Package watch implements `sake watch`, a companion mode from the
// original Python tool (supplemented back in per DESIGN.md /
// SPEC_FULL.md §11.4: the distilled spec doesn't mention it, but the
// original's watch loop is simple enough, and useful enough during
// iterative development, to carry forward): re-run a build whenever a
// file the current DAG depends on changes, debounced so a burst of
// writes from an editor or compiler triggers one rebuild, not many.
//
// Grounded on the teacher's plugin file-watch loop (a single
// fsnotify.Watcher fed from a debounce timer goroutine), using the same
// github.com/fsnotify/fsnotify dependency the pack already carries.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/graph"
)

// DefaultDebounce is how long watch waits after the last detected
// change before triggering a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Run watches every dependency path reachable in g and calls rebuild
// whenever one changes, until ctx is cancelled. rebuild errors are
// passed to onError rather than stopping the loop, so a single broken
// build doesn't end the watch session.
func Run(ctx context.Context, settings *core.Settings, g *graph.Graph, rebuild func() error, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return core.Wrapf(core.IntegrityError, err, "failed to start filesystem watcher")
	}
	defer watcher.Close()

	for _, dir := range watchedDirs(settings, g) {
		if err := watcher.Add(dir); err != nil {
			onError(core.Wrapf(core.MissingFile, err, "failed to watch %s", dir))
		}
	}
	watchedFiles := map[string]bool{filepath.Clean(settings.SakefilePath): true}
	for _, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			watchedFiles[filepath.Join(settings.Dir, dep)] = true
		}
	}

	var timer *time.Timer
	debounced := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedFiles[filepath.Clean(event.Name)] {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(DefaultDebounce, func() {
				select {
				case debounced <- struct{}{}:
				default:
				}
			})
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onError(core.Wrapf(core.IntegrityError, werr, "watcher error"))
		case <-debounced:
			if err := rebuild(); err != nil {
				onError(err)
			}
		}
	}
}

// watchedDirs returns the deduplicated set of directories containing
// every dependency path in the graph, plus the directory holding the
// Sakefile itself (a Sakefile edit should also trigger a rebuild).
func watchedDirs(settings *core.Settings, g *graph.Graph) []string {
	seen := map[string]bool{}
	var out []string
	add := func(dir string) {
		if dir == "" {
			dir = "."
		}
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	add(filepath.Dir(settings.SakefilePath))
	for _, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			add(filepath.Join(settings.Dir, filepath.Dir(dep)))
		}
	}
	return out
}
