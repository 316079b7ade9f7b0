// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import "grimm.is/reachability/internal/errors"

// Disposition is the final fate of a flow.
type Disposition int

const (
	Accepted Disposition = iota
	DeniedIn
	DeniedOut
	NoRoute
	NullRouted
	DeliveredToSubnetDisposition
	ExitsNetworkDisposition
	NeighborUnreachableDisposition
	Loop
)

var dispositionNames = map[Disposition]string{
	Accepted:                       "accepted",
	DeniedIn:                       "denied_in",
	DeniedOut:                      "denied_out",
	NoRoute:                        "no_route",
	NullRouted:                     "null_routed",
	DeliveredToSubnetDisposition:   "delivered_to_subnet",
	ExitsNetworkDisposition:        "exits_network",
	NeighborUnreachableDisposition: "neighbor_unreachable",
	Loop:                           "loop",
}

func (d Disposition) String() string {
	if s, ok := dispositionNames[d]; ok {
		return s
	}
	return "unknown"
}

// ParseDisposition is the inverse of String.
func ParseDisposition(s string) (Disposition, bool) {
	for d, name := range dispositionNames {
		if name == s {
			return d, true
		}
	}
	return 0, false
}

// MarshalText renders d by name.
func (d Disposition) MarshalText() ([]byte, error) {
	if _, ok := dispositionNames[d]; !ok {
		return nil, errors.Errorf(errors.KindInternal, "unknown disposition %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (d *Disposition) UnmarshalText(b []byte) error {
	v, ok := ParseDisposition(string(b))
	if !ok {
		return errors.Attr(errors.Errorf(errors.KindValidation, "unknown disposition %q", string(b)), "field", "dispositions")
	}
	*d = v
	return nil
}

// Success reports whether the flow made it to a destination.
func (d Disposition) Success() bool {
	switch d {
	case Accepted, DeliveredToSubnetDisposition, ExitsNetworkDisposition:
		return true
	}
	return false
}

// Terminal returns the global terminal state for d. Loop has no terminal state.
func (d Disposition) Terminal() (Expr, bool) {
	t, ok := terminals[d]
	return t, ok
}

var globalTerminals = []Expr{
	Accept{}, Drop{}, DropAclIn{}, DropAclOut{}, DropNoRoute{}, DropNullRoute{},
	DeliveredToSubnet{}, ExitsNetwork{}, NeighborUnreachable{},
}

var terminals = func() map[Disposition]Expr {
	m := make(map[Disposition]Expr)
	for _, t := range globalTerminals {
		if d, ok := DispositionOf(t); ok {
			m[d] = t
		}
	}
	return m
}()

// Successes lists the dispositions for which Success is true.
func Successes() []Disposition {
	return []Disposition{Accepted, DeliveredToSubnetDisposition, ExitsNetworkDisposition}
}

// Failures lists the failure dispositions that have terminal states.
func Failures() []Disposition {
	return []Disposition{DeniedIn, DeniedOut, NoRoute, NullRouted, NeighborUnreachableDisposition}
}
