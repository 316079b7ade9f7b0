// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package location names where traffic starts and builds the root predicates for a query.
package location

import (
	"net/netip"
	"sort"

	"go4.org/netipx"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/state"
	"grimm.is/reachability/internal/validation"
)

// Location is a point where flows can originate.
type Location interface {
	String() string
	// State is the root state that traffic from this location starts in.
	State() state.Expr
	isLocation()
}

// InterfaceLocation is traffic already inside a device at an interface, past its ingress ACL.
type InterfaceLocation struct{ Hostname, Iface string }

// InterfaceLinkLocation is traffic arriving on the wire of an interface.
type InterfaceLinkLocation struct{ Hostname, Iface string }

func (InterfaceLocation) isLocation()     {}
func (InterfaceLinkLocation) isLocation() {}

func (l InterfaceLocation) String() string     { return l.Hostname + "[" + l.Iface + "]" }
func (l InterfaceLinkLocation) String() string { return l.Hostname + "[" + l.Iface + "]@link" }

func (l InterfaceLocation) State() state.Expr {
	return state.OriginateInterface{Hostname: l.Hostname, Iface: l.Iface}
}

func (l InterfaceLinkLocation) State() state.Expr {
	return state.OriginateInterfaceLink{Hostname: l.Hostname, Iface: l.Iface}
}

// FromState maps an originate state back to its location.
func FromState(e state.Expr) (Location, bool) {
	i := state.Describe(e)
	switch {
	case i.Role != state.Origination || i.Iface == "":
		return nil, false
	case i.Link:
		return InterfaceLinkLocation{i.Hostname, i.Iface}, true
	default:
		return InterfaceLocation{i.Hostname, i.Iface}, true
	}
}

// Entry assigns one source IP space to a group of locations.
type Entry struct {
	Locations []Location
	SrcIPs    *netipx.IPSet
}

// Assignment is the list of source IP assignments of a query.
type Assignment []Entry

// Roots builds the root predicate for every assigned location: source IP in the
// assigned space and the header constraint. A location listed in several
// entries gets the union of their spaces. Empty roots are omitted.
func Roots(f *bdd.Factory, a Assignment, constraint bdd.Node) map[state.Expr]bdd.Node {
	roots := make(map[state.Expr]bdd.Node)
	for _, e := range a {
		src := f.And(f.IPSet(bdd.SrcIP, e.SrcIPs), constraint)
		if f.IsZero(src) {
			continue
		}
		for _, loc := range e.Locations {
			s := loc.State()
			if prev, ok := roots[s]; ok {
				roots[s] = f.Or(prev, src)
			} else {
				roots[s] = src
			}
		}
	}
	return roots
}

// Default assigns each enabled interface the hosts of its connected subnets, as
// an InterfaceLocation. Entries are sorted by location.
func Default(net *config.Network) Assignment {
	var a Assignment
	for _, d := range net.Devices {
		for _, iface := range d.Interfaces {
			if iface.Disabled || len(iface.IPv4) == 0 {
				continue
			}
			var b netipx.IPSetBuilder
			for _, addr := range iface.IPv4 {
				p, err := validation.ParseInterfaceAddress(addr)
				if err != nil {
					continue
				}
				b.AddPrefix(p.Masked())
			}
			set, err := b.IPSet()
			if err != nil || len(set.Prefixes()) == 0 {
				continue
			}
			a = append(a, Entry{
				Locations: []Location{InterfaceLocation{d.Hostname, iface.Name}},
				SrcIPs:    set,
			})
		}
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Locations[0].String() < a[j].Locations[0].String() })
	return a
}

// SetOf builds an IP set from prefixes; a convenience for assignments.
func SetOf(prefixes ...netip.Prefix) *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		b.AddPrefix(p)
	}
	set, _ := b.IPSet()
	return set
}
