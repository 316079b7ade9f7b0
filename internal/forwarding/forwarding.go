// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package forwarding holds the per-device forwarding facts the graph factory
// consumes: which destinations are routable, null routed, sent over each edge,
// or disposed of at an interface.
package forwarding

import (
	"go4.org/netipx"
)

// NodeVrf identifies a VRF on a device.
type NodeVrf struct{ Hostname, Vrf string }

// NodeIface identifies an interface on a device.
type NodeIface struct{ Hostname, Iface string }

// Edge is a directed layer-3 adjacency.
type Edge struct {
	Node1, Iface1 string
	Node2, Iface2 string
}

// Reverse returns the edge in the opposite direction.
func (e Edge) Reverse() Edge { return Edge{e.Node2, e.Iface2, e.Node1, e.Iface1} }

// Analysis is the destination-IP view of a data plane. Missing keys mean the
// empty set.
type Analysis struct {
	// Owned holds the addresses a VRF accepts as its own.
	Owned map[NodeVrf]*netipx.IPSet
	// Routable holds destinations with any matching route.
	Routable map[NodeVrf]*netipx.IPSet
	// NullRouted holds routable destinations whose best route discards.
	NullRouted map[NodeVrf]*netipx.IPSet

	// ArpTrue holds destinations forwarded over the edge whose next hop
	// answers ARP on the far end.
	ArpTrue map[Edge]*netipx.IPSet

	DeliveredToSubnet   map[NodeIface]*netipx.IPSet
	ExitsNetwork        map[NodeIface]*netipx.IPSet
	NeighborUnreachable map[NodeIface]*netipx.IPSet

	// Edges lists every directed layer-3 edge, in a stable order.
	Edges []Edge
	// IfaceVrf maps each enabled interface to its VRF.
	IfaceVrf map[NodeIface]string
}

// NewAnalysis returns an Analysis with every map allocated.
func NewAnalysis() *Analysis {
	return &Analysis{
		Owned:               make(map[NodeVrf]*netipx.IPSet),
		Routable:            make(map[NodeVrf]*netipx.IPSet),
		NullRouted:          make(map[NodeVrf]*netipx.IPSet),
		ArpTrue:             make(map[Edge]*netipx.IPSet),
		DeliveredToSubnet:   make(map[NodeIface]*netipx.IPSet),
		ExitsNetwork:        make(map[NodeIface]*netipx.IPSet),
		NeighborUnreachable: make(map[NodeIface]*netipx.IPSet),
		IfaceVrf:            make(map[NodeIface]string),
	}
}

// EdgesFrom lists the edges leaving an interface.
func (a *Analysis) EdgesFrom(hostname, iface string) []Edge {
	var out []Edge
	for _, e := range a.Edges {
		if e.Node1 == hostname && e.Iface1 == iface {
			out = append(out, e)
		}
	}
	return out
}

// Empty is the empty IP set.
func Empty() *netipx.IPSet {
	var b netipx.IPSetBuilder
	s, _ := b.IPSet()
	return s
}

func union(a, b *netipx.IPSet) *netipx.IPSet {
	var sb netipx.IPSetBuilder
	if a != nil {
		sb.AddSet(a)
	}
	if b != nil {
		sb.AddSet(b)
	}
	s, _ := sb.IPSet()
	return s
}

func minus(a, b *netipx.IPSet) *netipx.IPSet {
	var sb netipx.IPSetBuilder
	if a != nil {
		sb.AddSet(a)
	}
	if b != nil {
		sb.RemoveSet(b)
	}
	s, _ := sb.IPSet()
	return s
}

func intersect(a, b *netipx.IPSet) *netipx.IPSet {
	if a == nil || b == nil {
		return Empty()
	}
	var sb netipx.IPSetBuilder
	sb.AddSet(a)
	sb.Intersect(b)
	s, _ := sb.IPSet()
	return s
}

func isEmpty(s *netipx.IPSet) bool {
	return s == nil || len(s.Ranges()) == 0
}

func addTo[K comparable](m map[K]*netipx.IPSet, k K, s *netipx.IPSet) {
	if isEmpty(s) {
		return
	}
	m[k] = union(m[k], s)
}
