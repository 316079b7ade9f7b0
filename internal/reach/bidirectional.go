// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reach

import (
	"sync"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/state"
)

// BidirectionalResult classifies root headers by round-trip outcome. Keys are
// origination states.
type BidirectionalResult struct {
	// SuccessByLocation holds headers whose forward flow succeeds and whose
	// reply makes it back.
	SuccessByLocation map[state.Expr]bdd.Node
	// FailureByLocation holds headers that fail forward, loop forward, or
	// whose reply fails.
	FailureByLocation map[state.Expr]bdd.Node
}

// Bidirectional runs a forward pass from roots, derives sessions and return
// roots from it, and runs the return pass over the same factory. Every step
// is computed once, on first use.
type Bidirectional struct {
	fac   *Factory
	roots map[state.Expr]bdd.Node
	opts  []Option
	o     options

	ForwardReach func() map[state.Expr]bdd.Node
	ReturnRoots  func() map[state.Expr]bdd.Node
	Sessions     func() []Session
	ReturnGraph  func() *Graph
	ReturnReach  func() map[state.Expr]bdd.Node
	Result       func() *BidirectionalResult
}

// NewBidirectional prepares a round-trip analysis. WithLogger and WithMetrics
// apply to every solver run.
func NewBidirectional(fac *Factory, roots map[state.Expr]bdd.Node, opts ...Option) *Bidirectional {
	b := &Bidirectional{fac: fac, roots: roots, opts: opts, o: buildOptions("bidirectional", opts)}
	b.ForwardReach = sync.OnceValue(b.forwardReach)
	b.ReturnRoots = sync.OnceValue(b.returnRoots)
	b.Sessions = sync.OnceValue(func() []Session { return b.fac.Sessions(b.ForwardReach()) })
	b.ReturnGraph = sync.OnceValue(func() *Graph { return b.fac.SessionGraph(b.Sessions()) })
	b.ReturnReach = sync.OnceValue(b.returnReach)
	b.Result = sync.OnceValue(b.classify)
	return b
}

func (b *Bidirectional) forwardReach() map[state.Expr]bdd.Node {
	r, _ := NewSolver(b.fac.f, b.fac.Graph(), b.opts...).Forward(b.roots)
	return r
}

// ReturnOrigin maps a successful forward termination to the state the reply
// starts in: a device accepting a flow answers from its VRF, a flow leaving
// through an interface is answered on that interface's wire.
func ReturnOrigin(st state.Expr) (state.Expr, bool) {
	r := state.Describe(st).Reply
	return r, r != nil
}

func (b *Bidirectional) returnRoots() map[state.Expr]bdd.Node {
	f := b.fac.f
	fwd := b.ForwardReach()
	out := make(map[state.Expr]bdd.Node)
	for _, st := range sortedStates(fwd) {
		origin, ok := ReturnOrigin(st)
		if !ok {
			continue
		}
		reply := f.Swap(f.ExistTags(fwd[st]))
		if prev, ok := out[origin]; ok {
			reply = f.Or(prev, reply)
		}
		out[origin] = reply
	}
	return out
}

func (b *Bidirectional) returnReach() map[state.Expr]bdd.Node {
	r, _ := NewSolver(b.fac.f, b.ReturnGraph(), b.opts...).Forward(b.ReturnRoots())
	return r
}

func (b *Bidirectional) classify() *BidirectionalResult {
	f := b.fac.f
	fwd := b.ForwardReach()
	retRoots := b.ReturnRoots()
	b.o.metrics.IncBidirectional()

	ret := NewSolver(f, b.ReturnGraph(), b.opts...)
	retOK := Restrict(f, ret.BackwardReachable(state.Successes()...), retRoots)
	retFail := Restrict(f, ret.BackwardReachable(state.Failures()...), retRoots)

	// seed each forward termination with the flows whose reply had that outcome
	okSeeds := make(map[state.Expr]bdd.Node)
	failSeeds := make(map[state.Expr]bdd.Node)
	for _, st := range sortedStates(fwd) {
		origin, ok := ReturnOrigin(st)
		if !ok {
			continue
		}
		if r, ok := retOK[origin]; ok {
			if n := f.And(fwd[st], f.Swap(r)); !f.IsZero(n) {
				okSeeds[st] = n
			}
		}
		if r, ok := retFail[origin]; ok {
			if n := f.And(fwd[st], f.Swap(r)); !f.IsZero(n) {
				failSeeds[st] = n
			}
		}
	}

	solver := NewSolver(f, b.fac.Graph(), b.opts...)
	okBack, _ := solver.Backward(okSeeds)
	failBack, _ := solver.Backward(failSeeds)

	failure := Origins(failBack)
	for _, part := range []map[state.Expr]bdd.Node{
		solver.BackwardReachable(state.Failures()...),
		solver.LoopRoots(fwd),
	} {
		for st, n := range part {
			if prev, ok := failure[st]; ok {
				n = f.Or(prev, n)
			}
			failure[st] = n
		}
	}

	res := &BidirectionalResult{
		SuccessByLocation: Restrict(f, Origins(okBack), b.roots),
		FailureByLocation: Restrict(f, failure, b.roots),
	}
	b.o.logger.Debug("round trip classified",
		"roots", len(b.roots),
		"return_roots", len(retRoots),
		"sessions", len(b.Sessions()),
		"success", len(res.SuccessByLocation),
		"failure", len(res.FailureByLocation))
	return res
}
