// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reach

import (
	"sort"

	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/state"
	"grimm.is/reachability/internal/transition"
)

// Edge is a labeled transition between two states.
type Edge struct {
	From       state.Expr
	To         state.Expr
	Transition transition.Transition
}

// Graph is an immutable state graph with forward and reverse adjacency.
type Graph struct {
	edges  []Edge
	out    map[state.Expr][]int
	in     map[state.Expr][]int
	states []state.Expr
}

// NewGraph indexes edges. Edges whose transition can never pass traffic are dropped.
func NewGraph(edges []Edge) *Graph {
	g := &Graph{
		out: make(map[state.Expr][]int),
		in:  make(map[state.Expr][]int),
	}
	seen := make(map[state.Expr]bool)
	add := func(s state.Expr) {
		if !seen[s] {
			seen[s] = true
			g.states = append(g.states, s)
		}
	}

	for _, e := range edges {
		errors.Assert(e.From != nil && e.To != nil, "edge with nil endpoint")
		errors.Assert(e.Transition != nil, "edge %s -> %s has no transition", e.From, e.To)
		if transition.IsZero(e.Transition) {
			continue
		}
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.out[e.From] = append(g.out[e.From], idx)
		g.in[e.To] = append(g.in[e.To], idx)
		add(e.From)
		add(e.To)
	}

	sort.Slice(g.states, func(i, j int) bool {
		return g.states[i].String() < g.states[j].String()
	})
	return g
}

// Out returns the edges leaving s.
func (g *Graph) Out(s state.Expr) []Edge { return g.pick(g.out[s]) }

// In returns the edges entering s.
func (g *Graph) In(s state.Expr) []Edge { return g.pick(g.in[s]) }

func (g *Graph) pick(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// States returns every state touched by an edge, sorted by name.
func (g *Graph) States() []state.Expr {
	return append([]state.Expr(nil), g.states...)
}

// Edges returns a copy of the edge list in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// NumEdges counts the edges kept after dropping unsatisfiable transitions.
func (g *Graph) NumEdges() int { return len(g.edges) }

// NumStates counts the states touched by at least one edge.
func (g *Graph) NumStates() int { return len(g.states) }

// Has reports whether s appears in the graph.
func (g *Graph) Has(s state.Expr) bool {
	return len(g.out[s]) > 0 || len(g.in[s]) > 0
}

// Terminal reports whether s has no outgoing edges.
func (g *Graph) Terminal(s state.Expr) bool { return len(g.out[s]) == 0 }

func sortedStates[V any](m map[state.Expr]V) []state.Expr {
	out := make([]state.Expr, 0, len(m))
	for st := range m {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
