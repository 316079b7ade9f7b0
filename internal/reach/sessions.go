// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reach

import (
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/forwarding"
	"grimm.is/reachability/internal/nat"
	"grimm.is/reachability/internal/state"
	"grimm.is/reachability/internal/transition"
)

// SessionScope is where a session intercepts return traffic.
type SessionScope interface{ isScope() }

// IncomingScope matches traffic entering any of Ifaces, before the ingress ACL.
type IncomingScope struct{ Ifaces []string }

// OriginatingScope matches traffic the device itself originates in Vrf.
type OriginatingScope struct{ Vrf string }

func (IncomingScope) isScope()    {}
func (OriginatingScope) isScope() {}

// SessionAction is what a matched packet does.
type SessionAction interface{ isAction() }

// AcceptAction delivers the packet to the device itself.
type AcceptAction struct{ Vrf string }

// ForwardOutAction sends the packet out of Iface, to NextHop when set.
// Without a next hop the packet leaves on the interface's subnet.
type ForwardOutAction struct {
	Iface   string
	NextHop *forwarding.NodeIface
}

func (AcceptAction) isAction()     {}
func (ForwardOutAction) isAction() {}

// Session is firewall state installed by a forward flow. Matching return
// traffic skips ACLs and routing and is un-NATed by Transform.
type Session struct {
	Hostname  string
	Scope     SessionScope
	Match     bdd.Node
	Action    SessionAction
	Transform transition.Transition
}

// Sessions derives the sessions created by the forward reachability result
// fwd. A node creates sessions for flows entering or leaving a stateful
// interface, one per (ingress interface, previous hop, egress point).
func (b *Factory) Sessions(fwd map[state.Expr]bdd.Node) []Session {
	f := b.f
	var out []Session
	for _, st := range sortedStates(fwd) {
		info := state.Describe(st)
		if info.Role != state.Egress {
			continue
		}
		// Egress states name an interface, except VrfAccept which names a VRF.
		host, egress, acceptVrf := info.Hostname, info.Iface, info.Vrf

		for _, src := range b.srcTags(host) {
			flows := f.And(fwd[st], f.Value(bdd.SrcInterface, uint64(src)))
			if f.IsZero(flows) {
				continue
			}
			var ingress string
			if src != 0 {
				owner, _ := b.TagOwner(src)
				ingress = owner.Iface
			}
			if egress == "" && ingress == "" {
				continue
			}
			if !b.stateful(host, ingress) && !b.stateful(host, egress) {
				continue
			}

			for _, hop := range b.hopTags(host, ingress) {
				flow := f.And(flows, f.Value(bdd.LastHop, uint64(hop)))
				if f.IsZero(flow) {
					continue
				}
				s := Session{
					Hostname:  host,
					Match:     f.Swap(f.ExistTags(flow)),
					Transform: b.reverseNat(fwd, host, ingress, egress, hop),
				}
				if egress == "" {
					s.Scope = OriginatingScope{Vrf: acceptVrf}
				} else {
					s.Scope = IncomingScope{Ifaces: []string{egress}}
				}
				if ingress == "" {
					s.Action = AcceptAction{Vrf: b.ifaceVrf(host, egress)}
				} else {
					action := ForwardOutAction{Iface: ingress}
					if peer, ok := b.TagOwner(hop); ok {
						action.NextHop = &peer
					}
					s.Action = action
				}
				out = append(out, s)
			}
		}
	}
	b.opts.metrics.AddSessions(len(out))
	b.opts.logger.Debug("sessions derived", "count", len(out))
	return out
}

// srcTags lists 0 (originated by the device) and the tag of each of its interfaces.
func (b *Factory) srcTags(host string) []uint32 {
	tags := []uint32{0}
	for _, ni := range b.deviceIfaces(host) {
		tags = append(tags, b.tags[ni])
	}
	return tags
}

// hopTags lists 0 (no previous hop) and the tags of every interface with an
// edge into ingress.
func (b *Factory) hopTags(host, ingress string) []uint32 {
	tags := []uint32{0}
	if ingress == "" {
		return tags
	}
	for _, e := range b.facts.Edges {
		if e.Node2 == host && e.Iface2 == ingress {
			tags = append(tags, b.tags[forwarding.NodeIface{Hostname: e.Node1, Iface: e.Iface1}])
		}
	}
	return tags
}

func (b *Factory) stateful(host, iface string) bool {
	if iface == "" {
		return false
	}
	i, ok := b.iface[forwarding.NodeIface{Hostname: host, Iface: iface}]
	return ok && i.Stateful
}

func (b *Factory) ifaceVrf(host, iface string) string {
	return b.iface[forwarding.NodeIface{Hostname: host, Iface: iface}].VRFName()
}

// reverseNat rewrites the fields the node's NAT rules assigned on the forward
// path back to their values before translation. The original values are
// taken from the forward flows that entered the node on the same path.
func (b *Factory) reverseNat(fwd map[state.Expr]bdd.Node, host, ingress, egress string, hop uint32) transition.Transition {
	f := b.f
	var rules []nat.Rule
	rules = append(rules, b.natIn[forwarding.NodeIface{Hostname: host, Iface: ingress}]...)
	rules = append(rules, b.natOut[forwarding.NodeIface{Hostname: host, Iface: egress}]...)
	assigned := nat.AssignedFields(rules)
	if len(assigned) == 0 {
		return transition.Identity()
	}
	fields := make([]bdd.Field, len(assigned))
	for i, field := range assigned {
		fields[i] = swapField(field)
	}

	get := func(st state.Expr) bdd.Node {
		if n, ok := fwd[st]; ok {
			return n
		}
		return f.Zero()
	}
	var pre bdd.Node
	if ingress == "" {
		pre = get(state.OriginateVrf{Hostname: host, Vrf: b.ifaceVrf(host, egress)})
	} else {
		pre = f.And(get(state.PreInInterface{Hostname: host, Iface: ingress}), f.Value(bdd.LastHop, uint64(hop)))
		if hop == 0 {
			pre = f.Or(pre, get(state.OriginateInterface{Hostname: host, Iface: ingress}))
		}
	}
	orig := f.ExistExcept(f.Swap(f.ExistTags(pre)), fields...)

	return transition.Transform(
		func(in bdd.Node) bdd.Node { return f.And(f.Exist(in, fields...), orig) },
		func(out bdd.Node) bdd.Node { return f.Exist(f.And(out, orig), fields...) },
	)
}

func swapField(field bdd.Field) bdd.Field {
	switch field {
	case bdd.SrcIP:
		return bdd.DstIP
	case bdd.DstIP:
		return bdd.SrcIP
	case bdd.SrcPort:
		return bdd.DstPort
	case bdd.DstPort:
		return bdd.SrcPort
	}
	return field
}

// SessionGraph returns the factory's graph with session edges added. At each
// scope state, sessions are tried in order and claim disjoint headers; the
// normal edges there only see what no session matched.
func (b *Factory) SessionGraph(sessions []Session) *Graph {
	if len(sessions) == 0 {
		return NewGraph(b.base)
	}
	f := b.f
	matched := make(map[state.Expr]bdd.Node)
	added := make(map[state.Expr]bool)
	var extra []Edge

	for _, s := range sessions {
		target := b.sessionTarget(s, added, &extra)
		t := s.Transform
		if t == nil {
			t = transition.Identity()
		}
		for _, scope := range b.scopeStates(s) {
			errors.Assert(b.known[scope], "session on %s scoped to unknown state %s", s.Hostname, scope)
			prior, ok := matched[scope]
			if !ok {
				prior = f.Zero()
			}
			m := f.Diff(s.Match, prior)
			if f.IsZero(m) {
				continue
			}
			matched[scope] = f.Or(prior, m)
			extra = append(extra, Edge{From: scope, To: target, Transition: transition.Compose(f, transition.Constraint(f, m), t)})
		}
	}

	edges := make([]Edge, 0, len(b.base)+len(extra))
	for _, e := range b.base {
		if m, ok := matched[e.From]; ok {
			e.Transition = transition.Compose(f, transition.Constraint(f, f.Not(m)), e.Transition)
		}
		edges = append(edges, e)
	}
	return NewGraph(append(edges, extra...))
}

func (b *Factory) scopeStates(s Session) []state.Expr {
	switch sc := s.Scope.(type) {
	case IncomingScope:
		out := make([]state.Expr, len(sc.Ifaces))
		for i, iface := range sc.Ifaces {
			out[i] = state.PreInInterface{Hostname: s.Hostname, Iface: iface}
		}
		return out
	case OriginatingScope:
		return []state.Expr{state.OriginateVrf{Hostname: s.Hostname, Vrf: sc.Vrf}}
	}
	errors.Assert(false, "session on %s has no scope", s.Hostname)
	return nil
}

// sessionTarget returns the state a matched packet moves to, adding the edges
// that carry it from there on to extra.
func (b *Factory) sessionTarget(s Session, added map[state.Expr]bool, extra *[]Edge) state.Expr {
	h := s.Hostname
	switch a := s.Action.(type) {
	case AcceptAction:
		target := state.VrfAccept{Hostname: h, Vrf: a.Vrf}
		errors.Assert(b.known[target], "session on %s accepts in unknown vrf %s", h, a.Vrf)
		return target

	case ForwardOutAction:
		ni := forwarding.NodeIface{Hostname: h, Iface: a.Iface}
		tag, ok := b.tags[ni]
		errors.Assert(ok, "session on %s forwards out unknown interface %s", h, a.Iface)

		sm := state.SessionMatch{Hostname: h, Iface: a.Iface}
		if a.NextHop != nil {
			sm.PeerHostname, sm.PeerIface = a.NextHop.Hostname, a.NextHop.Iface
		}
		if added[sm] {
			return sm
		}
		added[sm] = true

		var next state.Expr
		switch {
		case a.NextHop != nil:
			e := forwarding.Edge{Node1: h, Iface1: a.Iface, Node2: a.NextHop.Hostname, Iface2: a.NextHop.Iface}
			post := postNatEdge(e)
			next = post
			if !b.delivery[e] && !added[post] {
				added[post] = true
				*extra = append(*extra, Edge{
					From:       post,
					To:         state.PreInInterface{Hostname: e.Node2, Iface: e.Iface2},
					Transition: transition.AssignValue(b.f, bdd.LastHop, uint64(tag)),
				})
			}
		case len(b.facts.EdgesFrom(h, a.Iface)) > 0:
			next = state.NodeInterfaceDeliveredToSubnet{Hostname: h, Iface: a.Iface}
		default:
			next = state.NodeInterfaceExitsNetwork{Hostname: h, Iface: a.Iface}
		}
		*extra = append(*extra, Edge{From: sm, To: next, Transition: transition.Identity()})
		return sm
	}
	errors.Assert(false, "session on %s has no action", h)
	return nil
}
