package core

import "strings"

// dependencyChain is a path through the graph, printed when a cycle is found.
type dependencyChain []string

func (c dependencyChain) String() string {
	return strings.Join([]string(c), "\n -> ")
}

// CycleDetector incrementally checks a graph of string-keyed dependency
// edges for cycles as they are added, adapted from the teacher's
// src/core/cycle_detector.go. The graph builder runs single-threaded
// (§4.3), so this version is synchronous rather than channel-driven.
type CycleDetector struct {
	deps map[string][]string
}

// NewCycleDetector returns an empty CycleDetector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{deps: map[string][]string{}}
}

// AddEdge records an edge from -> to and reports an error if it would
// close a cycle. Edges should be added in the same producer->consumer
// direction used by the graph (§4.3).
func (c *CycleDetector) AddEdge(from, to string) error {
	if c.reaches(to, from) {
		chain := c.buildCycle([]string{from, to})
		return Errorf(CycleDetected, "Dependency cycle found:\n%s", dependencyChain(chain).String())
	}
	c.deps[from] = append(c.deps[from], to)
	return nil
}

// reaches reports whether there is a path from `from` to `to` in the
// graph as it currently stands.
func (c *CycleDetector) reaches(from, to string) bool {
	for _, dep := range c.deps[from] {
		if dep == to || c.reaches(dep, to) {
			return true
		}
	}
	return false
}

// buildCycle walks the recorded edges to reconstruct an actual cycle
// path once AddEdge's reaches check has already confirmed one exists.
// A nil return means this branch dead-ends without closing the loop;
// callers must not mistake a merely-longer chain for a found one, since
// every recursive step extends the chain whether or not it ever closes.
func (c *CycleDetector) buildCycle(chain []string) []string {
	tail := chain[len(chain)-1]
	head := chain[0]
	for _, dep := range c.deps[tail] {
		if dep == head {
			return chain
		}
		if found := c.buildCycle(append(append([]string{}, chain...), dep)); found != nil {
			return found
		}
	}
	return nil
}
