// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import "fmt"

// Visitor computes a T for every state kind.
type Visitor[T any] interface {
	OriginateVrf(OriginateVrf) T
	OriginateInterface(OriginateInterface) T
	OriginateInterfaceLink(OriginateInterfaceLink) T
	PreInInterface(PreInInterface) T
	PostInInterface(PostInInterface) T
	PostInVrf(PostInVrf) T
	PreOutVrf(PreOutVrf) T
	PreOutEdge(PreOutEdge) T
	PreOutEdgePostNat(PreOutEdgePostNat) T
	PreOutInterfaceDeliveredToSubnet(PreOutInterfaceDeliveredToSubnet) T
	PreOutInterfaceExitsNetwork(PreOutInterfaceExitsNetwork) T
	PreOutInterfaceNeighborUnreachable(PreOutInterfaceNeighborUnreachable) T
	SessionMatch(SessionMatch) T
	VrfAccept(VrfAccept) T
	NodeAccept(NodeAccept) T
	NodeDropAclIn(NodeDropAclIn) T
	NodeDropAclOut(NodeDropAclOut) T
	NodeDropNoRoute(NodeDropNoRoute) T
	NodeDropNullRoute(NodeDropNullRoute) T
	NodeInterfaceDeliveredToSubnet(NodeInterfaceDeliveredToSubnet) T
	NodeInterfaceExitsNetwork(NodeInterfaceExitsNetwork) T
	NodeInterfaceNeighborUnreachable(NodeInterfaceNeighborUnreachable) T
	Accept(Accept) T
	Drop(Drop) T
	DropAclIn(DropAclIn) T
	DropAclOut(DropAclOut) T
	DropNoRoute(DropNoRoute) T
	DropNullRoute(DropNullRoute) T
	DeliveredToSubnet(DeliveredToSubnet) T
	ExitsNetwork(ExitsNetwork) T
	NeighborUnreachable(NeighborUnreachable) T
}

// Visit dispatches e to the matching visitor method.
func Visit[T any](e Expr, v Visitor[T]) T {
	switch s := e.(type) {
	case OriginateVrf:
		return v.OriginateVrf(s)
	case OriginateInterface:
		return v.OriginateInterface(s)
	case OriginateInterfaceLink:
		return v.OriginateInterfaceLink(s)
	case PreInInterface:
		return v.PreInInterface(s)
	case PostInInterface:
		return v.PostInInterface(s)
	case PostInVrf:
		return v.PostInVrf(s)
	case PreOutVrf:
		return v.PreOutVrf(s)
	case PreOutEdge:
		return v.PreOutEdge(s)
	case PreOutEdgePostNat:
		return v.PreOutEdgePostNat(s)
	case PreOutInterfaceDeliveredToSubnet:
		return v.PreOutInterfaceDeliveredToSubnet(s)
	case PreOutInterfaceExitsNetwork:
		return v.PreOutInterfaceExitsNetwork(s)
	case PreOutInterfaceNeighborUnreachable:
		return v.PreOutInterfaceNeighborUnreachable(s)
	case SessionMatch:
		return v.SessionMatch(s)
	case VrfAccept:
		return v.VrfAccept(s)
	case NodeAccept:
		return v.NodeAccept(s)
	case NodeDropAclIn:
		return v.NodeDropAclIn(s)
	case NodeDropAclOut:
		return v.NodeDropAclOut(s)
	case NodeDropNoRoute:
		return v.NodeDropNoRoute(s)
	case NodeDropNullRoute:
		return v.NodeDropNullRoute(s)
	case NodeInterfaceDeliveredToSubnet:
		return v.NodeInterfaceDeliveredToSubnet(s)
	case NodeInterfaceExitsNetwork:
		return v.NodeInterfaceExitsNetwork(s)
	case NodeInterfaceNeighborUnreachable:
		return v.NodeInterfaceNeighborUnreachable(s)
	case Accept:
		return v.Accept(s)
	case Drop:
		return v.Drop(s)
	case DropAclIn:
		return v.DropAclIn(s)
	case DropAclOut:
		return v.DropAclOut(s)
	case DropNoRoute:
		return v.DropNoRoute(s)
	case DropNullRoute:
		return v.DropNullRoute(s)
	case DeliveredToSubnet:
		return v.DeliveredToSubnet(s)
	case ExitsNetwork:
		return v.ExitsNetwork(s)
	case NeighborUnreachable:
		return v.NeighborUnreachable(s)
	}
	panic(fmt.Sprintf("state: unhandled kind %T", e))
}

// Role classifies a state for the passes that walk a reachability result.
type Role int

const (
	Transit Role = iota
	// Origination states are the roots of a query.
	Origination
	// Egress states are where a flow leaves a device or is accepted by it.
	// Firewall sessions are installed there.
	Egress
	// Terminal states are the global sinks.
	Terminal
)

// Info is what Describe extracts from a state.
type Info struct {
	Role     Role
	Hostname string
	Iface    string
	Vrf      string
	// Link is set for states on the wire of an interface, before the
	// ingress ACL.
	Link bool
	// Reply is the state a reply to a flow ending here starts in, or nil.
	Reply Expr
	// Disposition is valid when HasDisposition is set. Only global
	// terminals other than Drop have one.
	Disposition    Disposition
	HasDisposition bool
}

// Describe returns the Info of e.
func Describe(e Expr) Info { return Visit[Info](e, describer{}) }

// Hostname returns the device a state belongs to, or "" for global terminals.
func Hostname(e Expr) string { return Describe(e).Hostname }

// IsOrigination reports whether e is a root state kind.
func IsOrigination(e Expr) bool { return Describe(e).Role == Origination }

// DispositionOf returns the disposition of a global terminal.
func DispositionOf(e Expr) (Disposition, bool) {
	i := Describe(e)
	return i.Disposition, i.HasDisposition
}

type describer struct{}

func onIface(host, iface string) Info { return Info{Hostname: host, Iface: iface} }
func inVrf(host, vrf string) Info     { return Info{Hostname: host, Vrf: vrf} }
func terminal(d Disposition) Info {
	return Info{Role: Terminal, Disposition: d, HasDisposition: true}
}

func (describer) OriginateVrf(s OriginateVrf) Info {
	return Info{Role: Origination, Hostname: s.Hostname, Vrf: s.Vrf}
}
func (describer) OriginateInterface(s OriginateInterface) Info {
	return Info{Role: Origination, Hostname: s.Hostname, Iface: s.Iface}
}
func (describer) OriginateInterfaceLink(s OriginateInterfaceLink) Info {
	return Info{Role: Origination, Hostname: s.Hostname, Iface: s.Iface, Link: true}
}
func (describer) PreInInterface(s PreInInterface) Info {
	i := onIface(s.Hostname, s.Iface)
	i.Link = true
	return i
}
func (describer) PostInInterface(s PostInInterface) Info { return onIface(s.Hostname, s.Iface) }
func (describer) PostInVrf(s PostInVrf) Info             { return inVrf(s.Hostname, s.Vrf) }
func (describer) PreOutVrf(s PreOutVrf) Info             { return inVrf(s.Hostname, s.Vrf) }
func (describer) PreOutEdge(s PreOutEdge) Info           { return onIface(s.Hostname, s.Iface) }
func (describer) PreOutEdgePostNat(s PreOutEdgePostNat) Info {
	return Info{Role: Egress, Hostname: s.Hostname, Iface: s.Iface}
}
func (describer) PreOutInterfaceDeliveredToSubnet(s PreOutInterfaceDeliveredToSubnet) Info {
	return onIface(s.Hostname, s.Iface)
}
func (describer) PreOutInterfaceExitsNetwork(s PreOutInterfaceExitsNetwork) Info {
	return onIface(s.Hostname, s.Iface)
}
func (describer) PreOutInterfaceNeighborUnreachable(s PreOutInterfaceNeighborUnreachable) Info {
	return onIface(s.Hostname, s.Iface)
}
func (describer) SessionMatch(s SessionMatch) Info { return onIface(s.Hostname, s.Iface) }
func (describer) VrfAccept(s VrfAccept) Info {
	return Info{
		Role:     Egress,
		Hostname: s.Hostname,
		Vrf:      s.Vrf,
		Reply:    OriginateVrf{Hostname: s.Hostname, Vrf: s.Vrf},
	}
}
func (describer) NodeAccept(s NodeAccept) Info               { return Info{Hostname: s.Hostname} }
func (describer) NodeDropAclIn(s NodeDropAclIn) Info         { return Info{Hostname: s.Hostname} }
func (describer) NodeDropAclOut(s NodeDropAclOut) Info       { return Info{Hostname: s.Hostname} }
func (describer) NodeDropNoRoute(s NodeDropNoRoute) Info     { return Info{Hostname: s.Hostname} }
func (describer) NodeDropNullRoute(s NodeDropNullRoute) Info { return Info{Hostname: s.Hostname} }
func (describer) NodeInterfaceDeliveredToSubnet(s NodeInterfaceDeliveredToSubnet) Info {
	return Info{
		Role:     Egress,
		Hostname: s.Hostname,
		Iface:    s.Iface,
		Reply:    OriginateInterfaceLink{Hostname: s.Hostname, Iface: s.Iface},
	}
}
func (describer) NodeInterfaceExitsNetwork(s NodeInterfaceExitsNetwork) Info {
	return Info{
		Role:     Egress,
		Hostname: s.Hostname,
		Iface:    s.Iface,
		Reply:    OriginateInterfaceLink{Hostname: s.Hostname, Iface: s.Iface},
	}
}
func (describer) NodeInterfaceNeighborUnreachable(s NodeInterfaceNeighborUnreachable) Info {
	return onIface(s.Hostname, s.Iface)
}
func (describer) Accept(Accept) Info               { return terminal(Accepted) }
func (describer) Drop(Drop) Info                   { return Info{Role: Terminal} }
func (describer) DropAclIn(DropAclIn) Info         { return terminal(DeniedIn) }
func (describer) DropAclOut(DropAclOut) Info       { return terminal(DeniedOut) }
func (describer) DropNoRoute(DropNoRoute) Info     { return terminal(NoRoute) }
func (describer) DropNullRoute(DropNullRoute) Info { return terminal(NullRouted) }
func (describer) DeliveredToSubnet(DeliveredToSubnet) Info {
	return terminal(DeliveredToSubnetDisposition)
}
func (describer) ExitsNetwork(ExitsNetwork) Info { return terminal(ExitsNetworkDisposition) }
func (describer) NeighborUnreachable(NeighborUnreachable) Info {
	return terminal(NeighborUnreachableDisposition)
}
