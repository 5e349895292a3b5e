// Package depm computes the dependency structure of a MIL program: the
// direct dependency set of every definition, the strongly connected
// components of the resulting call graph, and the order in which later
// phases should visit them.
package depm

import (
	"milc/mil"
)

// SCC is a maximal set of mutually recursive definitions in the call graph.
// Every definition belongs to exactly one SCC.
type SCC struct {
	Defns []mil.Defn

	// recursive is true for multi-member components and for singletons with
	// a self edge.
	recursive bool
}

// IsRecursive reports whether the component contains any cycle.
func (scc *SCC) IsRecursive() bool {
	return scc.recursive
}

// Graph is the result of dependency analysis over a program.
type Graph struct {
	// SCCs lists the components in reverse topological order: callees come
	// before their non-recursive callers.  Generalization and the optimizer
	// visit components in this order.
	SCCs []*SCC

	// SCCOf maps each analyzed definition to its component.  Definitions
	// created after the analysis (derived blocks) are absent until the next
	// analysis; lookups on them return nil.
	SCCOf map[mil.Defn]*SCC
}

// SameSCC reports whether two definitions were placed in the same component.
// Unanalyzed definitions share a component with nothing.
func (g *Graph) SameSCC(a, b mil.Defn) bool {
	sa, sb := g.SCCOf[a], g.SCCOf[b]
	return sa != nil && sa == sb
}

// Recursive reports whether the definition's component is recursive.  A
// definition not yet analyzed is treated as recursive, the conservative
// answer for inlining decisions.
func (g *Graph) Recursive(d mil.Defn) bool {
	scc := g.SCCOf[d]
	return scc == nil || scc.recursive
}

// -----------------------------------------------------------------------------

// Analyze computes the dependency sets of every definition in the program
// and decomposes the call graph into strongly connected components using
// Tarjan's algorithm.
func Analyze(prog *mil.Program) *Graph {
	t := &tarjan{
		index:   make(map[mil.Defn]int),
		lowlink: make(map[mil.Defn]int),
		onStack: make(map[mil.Defn]bool),
		graph: &Graph{
			SCCOf: make(map[mil.Defn]*SCC),
		},
	}

	for _, d := range prog.Defns {
		if _, visited := t.index[d]; !visited {
			t.connect(d)
		}
	}

	return t.graph
}

// tarjan holds the mutable state of one run of Tarjan's algorithm.
type tarjan struct {
	counter int
	index   map[mil.Defn]int
	lowlink map[mil.Defn]int
	onStack map[mil.Defn]bool
	stack   []mil.Defn
	graph   *Graph
}

func (t *tarjan) connect(d mil.Defn) {
	t.index[d] = t.counter
	t.lowlink[d] = t.counter
	t.counter++
	t.stack = append(t.stack, d)
	t.onStack[d] = true

	selfEdge := false
	for _, dep := range mil.Dependencies(d) {
		if dep == d {
			selfEdge = true
			continue
		}

		if _, visited := t.index[dep]; !visited {
			t.connect(dep)
			if t.lowlink[dep] < t.lowlink[d] {
				t.lowlink[d] = t.lowlink[dep]
			}
		} else if t.onStack[dep] && t.index[dep] < t.lowlink[d] {
			t.lowlink[d] = t.index[dep]
		}
	}

	if t.lowlink[d] == t.index[d] {
		// d roots a component; pop its members off the stack
		scc := &SCC{}
		for {
			n := len(t.stack) - 1
			member := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[member] = false

			scc.Defns = append(scc.Defns, member)
			t.graph.SCCOf[member] = scc

			if member == d {
				break
			}
		}

		scc.recursive = len(scc.Defns) > 1 || selfEdge
		t.graph.SCCs = append(t.graph.SCCs, scc)
	}
}
