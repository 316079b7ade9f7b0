// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reach

import (
	"time"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/metrics"
	"grimm.is/reachability/internal/state"
)

// Stats describes one fixed-point run.
type Stats struct {
	// Iterations counts states popped from the worklist.
	Iterations int
	// States counts states with a non-empty result.
	States   int
	Duration time.Duration
}

// Solver computes least fixed points over a graph.
type Solver struct {
	f    *bdd.Factory
	g    *Graph
	opts options
}

// NewSolver returns a solver for g. Only WithLogger and WithMetrics apply.
func NewSolver(f *bdd.Factory, g *Graph, opts ...Option) *Solver {
	return &Solver{f: f, g: g, opts: buildOptions("solver", opts)}
}

// Graph returns the graph the solver runs over.
func (s *Solver) Graph() *Graph { return s.g }

// Forward returns, per state, every header that can be there given the roots.
// Result predicates only grow while solving; the run ends when no edge adds
// anything new. States with an empty result are absent.
func (s *Solver) Forward(roots map[state.Expr]bdd.Node) (map[state.Expr]bdd.Node, Stats) {
	return s.run(metrics.Forward, roots, nil, nil)
}

// Backward returns, per state, every header there that can reach a seed
// state inside that seed's predicate.
func (s *Solver) Backward(seeds map[state.Expr]bdd.Node) (map[state.Expr]bdd.Node, Stats) {
	return s.run(metrics.Backward, seeds, nil, nil)
}

// run is a delta worklist: each state carries the part of its predicate that
// has not been pushed along its edges yet. expand, when set, limits which
// states propagate; within limits which states may receive.
func (s *Solver) run(dir metrics.Direction, init map[state.Expr]bdd.Node, expand, within func(state.Expr) bool) (map[state.Expr]bdd.Node, Stats) {
	f := s.f
	start := time.Now()
	result := make(map[state.Expr]bdd.Node, len(init))
	delta := make(map[state.Expr]bdd.Node, len(init))
	var queue []state.Expr
	queued := make(map[state.Expr]bool)

	for _, st := range sortedStates(init) {
		n := init[st]
		if f.IsZero(n) {
			continue
		}
		result[st] = n
		delta[st] = n
		queue = append(queue, st)
		queued[st] = true
	}

	var stats Stats
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		queued[cur] = false
		d := delta[cur]
		delete(delta, cur)
		stats.Iterations++
		if expand != nil && !expand(cur) {
			continue
		}

		var edges []Edge
		if dir == metrics.Forward {
			edges = s.g.Out(cur)
		} else {
			edges = s.g.In(cur)
		}
		for _, e := range edges {
			next := e.To
			var img bdd.Node
			if dir == metrics.Forward {
				img = e.Transition.Forward(d)
			} else {
				next = e.From
				img = e.Transition.Backward(d)
			}
			if within != nil && !within(next) {
				continue
			}
			if f.IsZero(img) {
				continue
			}
			prev, ok := result[next]
			if ok {
				img = f.Diff(img, prev)
				if f.IsZero(img) {
					continue
				}
				result[next] = f.Or(prev, img)
			} else {
				result[next] = img
			}
			if pending, ok := delta[next]; ok {
				delta[next] = f.Or(pending, img)
			} else {
				delta[next] = img
			}
			if !queued[next] {
				queued[next] = true
				queue = append(queue, next)
			}
		}
	}

	stats.States = len(result)
	stats.Duration = time.Since(start)
	s.opts.metrics.ObserveFixpoint(dir, stats.Iterations, stats.Duration)
	s.opts.logger.Debug("fixed point reached",
		"direction", string(dir),
		"iterations", stats.Iterations,
		"states", stats.States,
		"duration", stats.Duration)
	return result, stats
}

// BackwardReachable returns, for every origination state of the graph, the
// headers there that end in one of dispositions. Loop is ignored here; see
// LoopHeaders.
func (s *Solver) BackwardReachable(dispositions ...state.Disposition) map[state.Expr]bdd.Node {
	seeds := make(map[state.Expr]bdd.Node)
	for _, d := range dispositions {
		if t, ok := d.Terminal(); ok && s.g.Has(t) {
			seeds[t] = s.f.One()
		}
	}
	back, _ := s.Backward(seeds)
	return Origins(back)
}

// Origins keeps only the origination states of a result.
func Origins(m map[state.Expr]bdd.Node) map[state.Expr]bdd.Node {
	out := make(map[state.Expr]bdd.Node)
	for st, n := range m {
		if state.IsOrigination(st) {
			out[st] = n
		}
	}
	return out
}

// Restrict intersects each predicate of m with the same state's predicate in
// by, dropping empty results.
func Restrict(f *bdd.Factory, m, by map[state.Expr]bdd.Node) map[state.Expr]bdd.Node {
	out := make(map[state.Expr]bdd.Node)
	for st, n := range m {
		other, ok := by[st]
		if !ok {
			continue
		}
		if r := f.And(n, other); !f.IsZero(r) {
			out[st] = r
		}
	}
	return out
}

// CheckConservation verifies that every header reaching a non-terminal state
// is claimed by at least one of its outgoing edges.
func CheckConservation(f *bdd.Factory, g *Graph, reach map[state.Expr]bdd.Node) error {
	for _, st := range sortedStates(reach) {
		out := g.Out(st)
		if len(out) == 0 {
			continue
		}
		in := reach[st]
		covered := f.Zero()
		for _, e := range out {
			covered = f.Or(covered, f.And(in, e.Transition.Backward(f.One())))
		}
		if !f.Equal(covered, in) {
			return errors.Attr(errors.Errorf(errors.KindIntegrity,
				"headers vanish at %s", st), "state", st.String())
		}
	}
	return nil
}
