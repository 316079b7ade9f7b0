// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package transition defines the header-space functions that label graph edges.
//
// Every transition distributes over union: T(a or b) == T(a) or T(b). The
// solver relies on this to propagate only newly reached headers.
package transition

import "grimm.is/reachability/internal/bdd"

// Transition maps header sets across one edge in both directions.
type Transition interface {
	// Forward returns the headers leaving the edge given headers entering it.
	Forward(in bdd.Node) bdd.Node
	// Backward returns the headers entering the edge that can produce out.
	Backward(out bdd.Node) bdd.Node
}

type identity struct{}

func (identity) Forward(in bdd.Node) bdd.Node   { return in }
func (identity) Backward(out bdd.Node) bdd.Node { return out }

// Identity passes every header through unchanged.
func Identity() Transition { return identity{} }

type zero struct{ f *bdd.Factory }

func (z zero) Forward(bdd.Node) bdd.Node  { return z.f.Zero() }
func (z zero) Backward(bdd.Node) bdd.Node { return z.f.Zero() }

// Zero blocks every header.
func Zero(f *bdd.Factory) Transition { return zero{f} }

type constraint struct {
	f    *bdd.Factory
	pred bdd.Node
}

func (c constraint) Forward(in bdd.Node) bdd.Node   { return c.f.And(in, c.pred) }
func (c constraint) Backward(out bdd.Node) bdd.Node { return c.f.And(out, c.pred) }

// Constraint keeps only headers in pred. Trivial predicates collapse to Identity or Zero.
func Constraint(f *bdd.Factory, pred bdd.Node) Transition {
	switch {
	case f.IsOne(pred):
		return Identity()
	case f.IsZero(pred):
		return Zero(f)
	}
	return constraint{f, pred}
}

type assign struct {
	f      *bdd.Factory
	fields []bdd.Field
	values bdd.Node
}

func (a assign) Forward(in bdd.Node) bdd.Node {
	return a.f.And(a.f.Exist(in, a.fields...), a.values)
}

func (a assign) Backward(out bdd.Node) bdd.Node {
	return a.f.Exist(a.f.And(out, a.values), a.fields...)
}

// Assign erases fields and sets them to any assignment in values. values must
// only mention the assigned fields.
func Assign(f *bdd.Factory, values bdd.Node, fields ...bdd.Field) Transition {
	return assign{f, fields, values}
}

// AssignValue sets a single field to a constant.
func AssignValue(f *bdd.Factory, field bdd.Field, v uint64) Transition {
	return Assign(f, f.Value(field, v), field)
}

type compose struct{ steps []Transition }

func (c compose) Forward(in bdd.Node) bdd.Node {
	for _, t := range c.steps {
		in = t.Forward(in)
	}
	return in
}

func (c compose) Backward(out bdd.Node) bdd.Node {
	for i := len(c.steps) - 1; i >= 0; i-- {
		out = c.steps[i].Backward(out)
	}
	return out
}

// Compose applies steps in order. Identities are dropped and any Zero step makes the result Zero.
func Compose(f *bdd.Factory, steps ...Transition) Transition {
	var kept []Transition
	for _, t := range steps {
		switch t.(type) {
		case identity:
			continue
		case zero:
			return Zero(f)
		case compose:
			kept = append(kept, t.(compose).steps...)
			continue
		}
		kept = append(kept, t)
	}
	switch len(kept) {
	case 0:
		return Identity()
	case 1:
		return kept[0]
	}
	return compose{kept}
}

type or struct {
	f    *bdd.Factory
	alts []Transition
}

func (o or) Forward(in bdd.Node) bdd.Node {
	parts := make([]bdd.Node, len(o.alts))
	for i, t := range o.alts {
		parts[i] = t.Forward(in)
	}
	return o.f.Or(parts...)
}

func (o or) Backward(out bdd.Node) bdd.Node {
	parts := make([]bdd.Node, len(o.alts))
	for i, t := range o.alts {
		parts[i] = t.Backward(out)
	}
	return o.f.Or(parts...)
}

// Or unions the images of alternative transitions.
func Or(f *bdd.Factory, alts ...Transition) Transition {
	var kept []Transition
	for _, t := range alts {
		if _, ok := t.(zero); ok {
			continue
		}
		kept = append(kept, t)
	}
	switch len(kept) {
	case 0:
		return Zero(f)
	case 1:
		return kept[0]
	}
	return or{f, kept}
}

// Func adapts a pair of functions into a Transition.
type Func struct {
	Fwd func(bdd.Node) bdd.Node
	Bwd func(bdd.Node) bdd.Node
}

func (t Func) Forward(in bdd.Node) bdd.Node   { return t.Fwd(in) }
func (t Func) Backward(out bdd.Node) bdd.Node { return t.Bwd(out) }

// Transform builds a transition from arbitrary forward and backward functions.
// Callers are responsible for both functions distributing over union.
func Transform(fwd, bwd func(bdd.Node) bdd.Node) Transition {
	return Func{Fwd: fwd, Bwd: bwd}
}

// IsZero reports whether t was built as Zero.
func IsZero(t Transition) bool {
	_, ok := t.(zero)
	return ok
}
