// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/location"
	"grimm.is/reachability/internal/logging"
	"grimm.is/reachability/internal/reach"
	"grimm.is/reachability/internal/state"
)

// Answer is the per-location result of a request.
type Answer struct {
	RequestID string    `json:"request_id"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
	// ByLocation holds the matching root headers per location. Locations
	// with no matching headers are absent.
	ByLocation map[location.Location]bdd.Node `json:"-"`
	Summary    []LocationSummary              `json:"summary"`
	Pipeline   *PipelineResult                `json:"-"`
}

// ForwardAnswer is the result of a forward pass.
type ForwardAnswer struct {
	Answer
	// Reach holds, per state, every header that can be there.
	Reach map[state.Expr]bdd.Node
	// ByDisposition holds the headers arriving at each outcome, as seen at
	// the terminal state. Loop holds headers that keep returning to a
	// device on a cycle.
	ByDisposition map[state.Disposition]bdd.Node
	Stats         reach.Stats
}

// BidirectionalAnswer classifies root headers by round-trip outcome. The
// embedded ByLocation holds successes.
type BidirectionalAnswer struct {
	Answer
	Failure  map[location.Location]bdd.Node
	Sessions []reach.Session
}

type request struct {
	ans *Answer
	log *logging.Logger
}

func (e *Engine) newRequest(kind string) request {
	id := uuid.NewString()
	return request{
		ans: &Answer{RequestID: id, Query: kind, CreatedAt: time.Now()},
		log: e.log.With("request_id", id, "query", kind),
	}
}

func (e *Engine) finish(ctx context.Context, r request, p *Pipeline) error {
	res, err := p.ExecuteWithTimeout(ctx, e.opts.timeout)
	r.ans.Pipeline = res
	if err != nil {
		r.log.Warn("request failed", "error", err)
		return errors.Attr(err, "request_id", r.ans.RequestID)
	}
	if r.ans.ByLocation == nil {
		r.ans.ByLocation = map[location.Location]bdd.Node{}
	}
	r.ans.Summary = e.summarize(r.ans.ByLocation)
	if e.store != nil {
		e.store.Put(r.ans)
	}
	r.log.Info("request finished", "locations", len(r.ans.ByLocation), "duration", res.Duration)
	return nil
}

func rootsStage(e *Engine, q Query, roots *map[state.Expr]bdd.Node) Stage {
	return Stage{
		Name:        "roots",
		Description: "Resolve source locations and header constraints",
		Run: func(context.Context) error {
			var err error
			*roots, err = e.roots(q)
			return err
		},
	}
}

// Reachability returns, per location, the root headers that end in one of
// q.Dispositions.
func (e *Engine) Reachability(ctx context.Context, q Query) (*Answer, error) {
	if len(q.Dispositions) == 0 {
		return nil, errors.New(errors.KindValidation, "no dispositions requested")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.newRequest("reachability")
	solver := reach.NewSolver(e.f, e.fac.Graph(), e.reachOptions("solver", r.log)...)
	var roots, found map[state.Expr]bdd.Node
	wantLoop := false
	var terminal []state.Disposition
	for _, d := range q.Dispositions {
		if d == state.Loop {
			wantLoop = true
			continue
		}
		terminal = append(terminal, d)
	}

	p := NewPipeline("reachability", r.log)
	p.AddStage(rootsStage(e, q, &roots))
	p.AddStage(Stage{
		Name:        "backward",
		Description: "Backward fixed point from the requested terminals",
		Run: func(context.Context) error {
			found = reach.Restrict(e.f, solver.BackwardReachable(terminal...), roots)
			return nil
		},
	})
	if wantLoop {
		p.AddStage(Stage{
			Name:        "loops",
			Description: "Forward fixed point and loop detection",
			Run: func(context.Context) error {
				fwd, _ := solver.Forward(roots)
				found = union(e.f, found, solver.LoopRoots(fwd))
				return nil
			},
		})
	}
	p.AddStage(Stage{
		Name: "collect",
		Run: func(context.Context) error {
			r.ans.ByLocation = byLocation(found)
			return e.f.Err()
		},
	})

	if err := e.finish(ctx, r, p); err != nil {
		return nil, err
	}
	return r.ans, nil
}

// Forward runs a forward pass from the query roots.
func (e *Engine) Forward(ctx context.Context, q Query) (*ForwardAnswer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.newRequest("forward")
	fa := &ForwardAnswer{}
	solver := reach.NewSolver(e.f, e.fac.Graph(), e.reachOptions("solver", r.log)...)
	var roots map[state.Expr]bdd.Node

	p := NewPipeline("forward", r.log)
	p.AddStage(rootsStage(e, q, &roots))
	p.AddStage(Stage{
		Name:        "forward",
		Description: "Forward fixed point from the roots",
		Run: func(context.Context) error {
			fa.Reach, fa.Stats = solver.Forward(roots)
			return nil
		},
	})
	p.AddStage(Stage{
		Name:        "conservation",
		Description: "Check that no header vanishes at a non-terminal state",
		Run: func(context.Context) error {
			return reach.CheckConservation(e.f, e.fac.Graph(), fa.Reach)
		},
	})
	p.AddStage(Stage{
		Name: "dispositions",
		Run: func(context.Context) error {
			fa.ByDisposition = dispositions(fa.Reach)
			loops := e.f.Zero()
			for _, n := range solver.LoopHeaders(fa.Reach) {
				loops = e.f.Or(loops, n)
			}
			if !e.f.IsZero(loops) {
				fa.ByDisposition[state.Loop] = loops
			}
			r.ans.ByLocation = byLocation(reach.Origins(fa.Reach))
			return e.f.Err()
		},
	})

	if err := e.finish(ctx, r, p); err != nil {
		return nil, err
	}
	fa.Answer = *r.ans
	return fa, nil
}

// Bidirectional classifies the query roots by round-trip outcome.
func (e *Engine) Bidirectional(ctx context.Context, q Query) (*BidirectionalAnswer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.newRequest("bidirectional")
	ba := &BidirectionalAnswer{}
	var roots map[state.Expr]bdd.Node
	var bi *reach.Bidirectional

	p := NewPipeline("bidirectional", r.log)
	p.AddStage(rootsStage(e, q, &roots))
	p.AddStage(Stage{
		Name:        "forward",
		Description: "Forward fixed point from the roots",
		Run: func(context.Context) error {
			bi = reach.NewBidirectional(e.fac, roots, e.reachOptions("bidirectional", r.log)...)
			bi.ForwardReach()
			return nil
		},
	})
	p.AddStage(Stage{
		Name:        "sessions",
		Description: "Derive sessions and the return graph",
		Run: func(context.Context) error {
			ba.Sessions = bi.Sessions()
			bi.ReturnGraph()
			return nil
		},
	})
	p.AddStage(Stage{
		Name:        "return",
		Description: "Forward fixed point of the replies",
		Run: func(context.Context) error {
			bi.ReturnReach()
			return nil
		},
	})
	p.AddStage(Stage{
		Name:        "classify",
		Description: "Backward passes splitting roots into success and failure",
		Run: func(context.Context) error {
			res := bi.Result()
			r.ans.ByLocation = byLocation(res.SuccessByLocation)
			ba.Failure = byLocation(res.FailureByLocation)
			return e.f.Err()
		},
	})

	if err := e.finish(ctx, r, p); err != nil {
		return nil, err
	}
	ba.Answer = *r.ans
	return ba, nil
}

// Loops returns, per location, the root headers that enter a forwarding loop.
func (e *Engine) Loops(ctx context.Context, q Query) (*Answer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.newRequest("loops")
	solver := reach.NewSolver(e.f, e.fac.Graph(), e.reachOptions("solver", r.log)...)
	var roots map[state.Expr]bdd.Node

	p := NewPipeline("loops", r.log)
	p.AddStage(rootsStage(e, q, &roots))
	p.AddStage(Stage{
		Name:        "loops",
		Description: "Forward fixed point and loop detection",
		Run: func(context.Context) error {
			fwd, _ := solver.Forward(roots)
			r.ans.ByLocation = byLocation(solver.LoopRoots(fwd))
			return e.f.Err()
		},
	})

	if err := e.finish(ctx, r, p); err != nil {
		return nil, err
	}
	return r.ans, nil
}

func union(f *bdd.Factory, a, b map[state.Expr]bdd.Node) map[state.Expr]bdd.Node {
	out := make(map[state.Expr]bdd.Node, len(a)+len(b))
	for st, n := range a {
		out[st] = n
	}
	for st, n := range b {
		if prev, ok := out[st]; ok {
			n = f.Or(prev, n)
		}
		out[st] = n
	}
	return out
}
