// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reach

import (
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/metrics"
	"grimm.is/reachability/internal/state"
)

// maxLoopRounds bounds the refinement in LoopHeaders. Stopping early keeps
// a superset of the looping headers.
const maxLoopRounds = 64

type tarjanState struct {
	index   int
	lowlink int
	onStack bool
}

// Cycles returns the strongly connected components of g that contain a
// cycle, using Tarjan's algorithm over outgoing edges.
func (g *Graph) Cycles() [][]state.Expr {
	visit := make(map[state.Expr]*tarjanState, len(g.states))
	var stack []state.Expr
	counter := 0
	var out [][]state.Expr

	var strongconnect func(u state.Expr)
	strongconnect = func(u state.Expr) {
		visit[u] = &tarjanState{index: counter, lowlink: counter, onStack: true}
		counter++
		stack = append(stack, u)

		for _, e := range g.Out(u) {
			v := e.To
			if _, seen := visit[v]; !seen {
				strongconnect(v)
				if visit[v].lowlink < visit[u].lowlink {
					visit[u].lowlink = visit[v].lowlink
				}
			} else if visit[v].onStack && visit[v].index < visit[u].lowlink {
				visit[u].lowlink = visit[v].index
			}
		}

		if visit[u].lowlink != visit[u].index {
			return
		}
		var members []state.Expr
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visit[w].onStack = false
			members = append(members, w)
			if w == u {
				break
			}
		}
		if len(members) > 1 || g.selfLoop(u) {
			out = append(out, members)
		}
	}

	for _, s := range g.states {
		if _, seen := visit[s]; !seen {
			strongconnect(s)
		}
	}
	return out
}

func (g *Graph) selfLoop(s state.Expr) bool {
	for _, e := range g.Out(s) {
		if e.To == s {
			return true
		}
	}
	return false
}

// LoopHeaders returns, for interface-entry states on a cycle, the headers
// from reach that keep coming back to the state. Every cycle crosses a
// device boundary, so checking PreInInterface states finds all of them.
func (s *Solver) LoopHeaders(reach map[state.Expr]bdd.Node) map[state.Expr]bdd.Node {
	f := s.f
	out := make(map[state.Expr]bdd.Node)
	for _, comp := range s.g.Cycles() {
		members := make(map[state.Expr]bool, len(comp))
		for _, st := range comp {
			members[st] = true
		}
		for _, st := range comp {
			if _, ok := st.(state.PreInInterface); !ok {
				continue
			}
			cur, ok := reach[st]
			if !ok {
				continue
			}
			rounds := 0
			for ; rounds < maxLoopRounds && !f.IsZero(cur); rounds++ {
				next := s.returning(st, cur, members)
				if f.Equal(next, cur) {
					break
				}
				cur = next
			}
			if rounds == maxLoopRounds {
				s.opts.logger.Warn("loop refinement stopped early", "state", st.String())
			}
			if !f.IsZero(cur) {
				out[st] = cur
			}
		}
	}
	return out
}

// returning pushes headers from st around its component and returns what
// arrives back at st.
func (s *Solver) returning(st state.Expr, headers bdd.Node, members map[state.Expr]bool) bdd.Node {
	f := s.f
	back := f.Zero()
	init := make(map[state.Expr]bdd.Node)
	for _, e := range s.g.Out(st) {
		if !members[e.To] {
			continue
		}
		img := e.Transition.Forward(headers)
		if e.To == st {
			back = f.Or(back, img)
			continue
		}
		if prev, ok := init[e.To]; ok {
			img = f.Or(prev, img)
		}
		init[e.To] = img
	}
	res, _ := s.run(metrics.Forward, init,
		func(x state.Expr) bool { return x != st },
		func(x state.Expr) bool { return members[x] })
	if n, ok := res[st]; ok {
		back = f.Or(back, n)
	}
	return back
}

// LoopRoots returns, per origination state in reach, the headers that enter
// a forwarding loop.
func (s *Solver) LoopRoots(reach map[state.Expr]bdd.Node) map[state.Expr]bdd.Node {
	loops := s.LoopHeaders(reach)
	if len(loops) == 0 {
		return map[state.Expr]bdd.Node{}
	}
	back, _ := s.Backward(loops)
	return Restrict(s.f, Origins(back), Origins(reach))
}
