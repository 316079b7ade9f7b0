// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package state defines the vertices of a reachability graph.
//
// Each state is a small comparable struct, so states can be used directly as
// map keys. The set of kinds is closed: Visitor has one method per kind, and a
// new kind does not compile until every visitor handles it.
package state

import "fmt"

// Expr is a state in the reachability graph.
type Expr interface {
	fmt.Stringer
	isState()
}

// OriginateVrf is the start of traffic originated by the device in a VRF.
type OriginateVrf struct{ Hostname, Vrf string }

// OriginateInterface is the start of traffic entering a device at an interface
// whose ingress ACL has already been applied.
type OriginateInterface struct{ Hostname, Iface string }

// OriginateInterfaceLink is the start of traffic arriving on the wire of an interface.
type OriginateInterfaceLink struct{ Hostname, Iface string }

type PreInInterface struct{ Hostname, Iface string }
type PostInInterface struct{ Hostname, Iface string }
type PostInVrf struct{ Hostname, Vrf string }
type PreOutVrf struct{ Hostname, Vrf string }

// PreOutEdge is traffic about to be sent over a layer-3 edge, before egress ACL and source NAT.
type PreOutEdge struct {
	Hostname, Iface         string
	PeerHostname, PeerIface string
}

// PreOutEdgePostNat is traffic on a layer-3 edge after egress processing.
type PreOutEdgePostNat struct {
	Hostname, Iface         string
	PeerHostname, PeerIface string
}

type PreOutInterfaceDeliveredToSubnet struct{ Hostname, Iface string }
type PreOutInterfaceExitsNetwork struct{ Hostname, Iface string }
type PreOutInterfaceNeighborUnreachable struct{ Hostname, Iface string }

// SessionMatch is traffic matched by a firewall session that forwards out of
// Iface. PeerHostname is empty when the session has no layer-3 neighbor.
type SessionMatch struct {
	Hostname, Iface         string
	PeerHostname, PeerIface string
}

type VrfAccept struct{ Hostname, Vrf string }
type NodeAccept struct{ Hostname string }
type NodeDropAclIn struct{ Hostname string }
type NodeDropAclOut struct{ Hostname string }
type NodeDropNoRoute struct{ Hostname string }
type NodeDropNullRoute struct{ Hostname string }
type NodeInterfaceDeliveredToSubnet struct{ Hostname, Iface string }
type NodeInterfaceExitsNetwork struct{ Hostname, Iface string }
type NodeInterfaceNeighborUnreachable struct{ Hostname, Iface string }

// Global terminals.
type (
	Accept              struct{}
	Drop                struct{}
	DropAclIn           struct{}
	DropAclOut          struct{}
	DropNoRoute         struct{}
	DropNullRoute       struct{}
	DeliveredToSubnet   struct{}
	ExitsNetwork        struct{}
	NeighborUnreachable struct{}
)

func (OriginateVrf) isState()                       {}
func (OriginateInterface) isState()                 {}
func (OriginateInterfaceLink) isState()             {}
func (PreInInterface) isState()                     {}
func (PostInInterface) isState()                    {}
func (PostInVrf) isState()                          {}
func (PreOutVrf) isState()                          {}
func (PreOutEdge) isState()                         {}
func (PreOutEdgePostNat) isState()                  {}
func (PreOutInterfaceDeliveredToSubnet) isState()   {}
func (PreOutInterfaceExitsNetwork) isState()        {}
func (PreOutInterfaceNeighborUnreachable) isState() {}
func (SessionMatch) isState()                       {}
func (VrfAccept) isState()                          {}
func (NodeAccept) isState()                         {}
func (NodeDropAclIn) isState()                      {}
func (NodeDropAclOut) isState()                     {}
func (NodeDropNoRoute) isState()                    {}
func (NodeDropNullRoute) isState()                  {}
func (NodeInterfaceDeliveredToSubnet) isState()     {}
func (NodeInterfaceExitsNetwork) isState()          {}
func (NodeInterfaceNeighborUnreachable) isState()   {}
func (Accept) isState()                             {}
func (Drop) isState()                               {}
func (DropAclIn) isState()                          {}
func (DropAclOut) isState()                         {}
func (DropNoRoute) isState()                        {}
func (DropNullRoute) isState()                      {}
func (DeliveredToSubnet) isState()                  {}
func (ExitsNetwork) isState()                       {}
func (NeighborUnreachable) isState()                {}

func (s OriginateVrf) String() string { return "OriginateVrf{" + s.Hostname + ":" + s.Vrf + "}" }
func (s OriginateInterface) String() string {
	return "OriginateInterface{" + s.Hostname + ":" + s.Iface + "}"
}
func (s OriginateInterfaceLink) String() string {
	return "OriginateInterfaceLink{" + s.Hostname + ":" + s.Iface + "}"
}
func (s PreInInterface) String() string { return "PreInInterface{" + s.Hostname + ":" + s.Iface + "}" }
func (s PostInInterface) String() string {
	return "PostInInterface{" + s.Hostname + ":" + s.Iface + "}"
}
func (s PostInVrf) String() string { return "PostInVrf{" + s.Hostname + ":" + s.Vrf + "}" }
func (s PreOutVrf) String() string { return "PreOutVrf{" + s.Hostname + ":" + s.Vrf + "}" }
func (s PreOutEdge) String() string {
	return fmt.Sprintf("PreOutEdge{%s:%s -> %s:%s}", s.Hostname, s.Iface, s.PeerHostname, s.PeerIface)
}
func (s PreOutEdgePostNat) String() string {
	return fmt.Sprintf("PreOutEdgePostNat{%s:%s -> %s:%s}", s.Hostname, s.Iface, s.PeerHostname, s.PeerIface)
}
func (s PreOutInterfaceDeliveredToSubnet) String() string {
	return "PreOutInterfaceDeliveredToSubnet{" + s.Hostname + ":" + s.Iface + "}"
}
func (s PreOutInterfaceExitsNetwork) String() string {
	return "PreOutInterfaceExitsNetwork{" + s.Hostname + ":" + s.Iface + "}"
}
func (s PreOutInterfaceNeighborUnreachable) String() string {
	return "PreOutInterfaceNeighborUnreachable{" + s.Hostname + ":" + s.Iface + "}"
}
func (s SessionMatch) String() string {
	return fmt.Sprintf("SessionMatch{%s:%s -> %s:%s}", s.Hostname, s.Iface, s.PeerHostname, s.PeerIface)
}
func (s VrfAccept) String() string         { return "VrfAccept{" + s.Hostname + ":" + s.Vrf + "}" }
func (s NodeAccept) String() string        { return "NodeAccept{" + s.Hostname + "}" }
func (s NodeDropAclIn) String() string     { return "NodeDropAclIn{" + s.Hostname + "}" }
func (s NodeDropAclOut) String() string    { return "NodeDropAclOut{" + s.Hostname + "}" }
func (s NodeDropNoRoute) String() string   { return "NodeDropNoRoute{" + s.Hostname + "}" }
func (s NodeDropNullRoute) String() string { return "NodeDropNullRoute{" + s.Hostname + "}" }
func (s NodeInterfaceDeliveredToSubnet) String() string {
	return "NodeInterfaceDeliveredToSubnet{" + s.Hostname + ":" + s.Iface + "}"
}
func (s NodeInterfaceExitsNetwork) String() string {
	return "NodeInterfaceExitsNetwork{" + s.Hostname + ":" + s.Iface + "}"
}
func (s NodeInterfaceNeighborUnreachable) String() string {
	return "NodeInterfaceNeighborUnreachable{" + s.Hostname + ":" + s.Iface + "}"
}
func (Accept) String() string              { return "Accept" }
func (Drop) String() string                { return "Drop" }
func (DropAclIn) String() string           { return "DropAclIn" }
func (DropAclOut) String() string          { return "DropAclOut" }
func (DropNoRoute) String() string         { return "DropNoRoute" }
func (DropNullRoute) String() string       { return "DropNullRoute" }
func (DeliveredToSubnet) String() string   { return "DeliveredToSubnet" }
func (ExitsNetwork) String() string        { return "ExitsNetwork" }
func (NeighborUnreachable) String() string { return "NeighborUnreachable" }
