// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"
	"slices"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/location"
	"grimm.is/reachability/internal/reach"
	"grimm.is/reachability/internal/state"
)

type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictDrop   Verdict = "drop"
)

// Evaluation is the fate of one concrete packet.
type Evaluation struct {
	Packet   Packet  `json:"packet"`
	Location string  `json:"location"`
	Verdict  Verdict `json:"verdict"`
	// Dispositions lists every outcome the packet can have. More than one
	// means the network forwards it along several paths.
	Dispositions []state.Disposition `json:"dispositions"`
}

// Evaluate traces pkt from loc. The verdict is accept when some path
// delivers the packet.
func (e *Engine) Evaluate(ctx context.Context, pkt Packet, loc location.Location) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := pkt.Header()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkLocation(loc); err != nil {
		return nil, err
	}

	solver := reach.NewSolver(e.f, e.fac.Graph(), e.reachOptions("solver", nil)...)
	fwd, _ := solver.Forward(map[state.Expr]bdd.Node{loc.State(): e.f.Cube(h)})

	ev := &Evaluation{Packet: pkt, Location: loc.String(), Verdict: VerdictDrop}
	for d := range dispositions(fwd) {
		ev.Dispositions = append(ev.Dispositions, d)
		if d.Success() {
			ev.Verdict = VerdictAccept
		}
	}
	slices.Sort(ev.Dispositions)
	if len(solver.LoopHeaders(fwd)) > 0 {
		ev.Dispositions = append(ev.Dispositions, state.Loop)
	}
	return ev, e.f.Err()
}

// Contains reports whether pkt starting at loc is part of byLoc, a result
// returned by this engine.
func (e *Engine) Contains(byLoc map[location.Location]bdd.Node, loc location.Location, pkt Packet) (bool, error) {
	h, err := pkt.Header()
	if err != nil {
		return false, err
	}
	n, ok := byLoc[loc]
	if !ok {
		return false, nil
	}
	if n == nil {
		return false, errors.Attr(errors.New(errors.KindInternal, "nil predicate"), "location", loc.String())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.f.Contains(n, h), nil
}
