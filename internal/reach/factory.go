// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reach builds the symbolic state graph of a network and computes
// forward, backward and round-trip reachability over it.
package reach

import (
	"sort"
	"time"

	"go4.org/netipx"

	"grimm.is/reachability/internal/acl"
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/forwarding"
	"grimm.is/reachability/internal/logging"
	"grimm.is/reachability/internal/metrics"
	"grimm.is/reachability/internal/nat"
	"grimm.is/reachability/internal/state"
	"grimm.is/reachability/internal/transition"
)

type options struct {
	sessions      []Session
	ignoreFilters bool
	logger        *logging.Logger
	metrics       *metrics.Metrics
}

// Option configures a Factory or a Solver.
type Option func(o *options)

// WithSessions adds session edges to the graph the factory builds.
func WithSessions(s ...Session) Option {
	return func(o *options) { o.sessions = append(o.sessions, s...) }
}

// WithIgnoreFilters treats every ACL as permit-all.
func WithIgnoreFilters() Option {
	return func(o *options) { o.ignoreFilters = true }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records build and fixed-point metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(component string, opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	o.logger = o.logger.WithComponent(component)
	return o
}

// Factory turns a configuration snapshot and its forwarding facts into a
// state graph. Everything it compiles is kept so that return-pass graphs with
// sessions can be derived without recompiling ACLs or NAT rules.
type Factory struct {
	f     *bdd.Factory
	net   *config.Network
	facts *forwarding.Analysis
	opts  options

	devices []*config.Device
	ifaces  []forwarding.NodeIface
	iface   map[forwarding.NodeIface]*config.Interface
	tags    map[forwarding.NodeIface]uint32

	permitIn  map[forwarding.NodeIface]bdd.Node
	permitOut map[forwarding.NodeIface]bdd.Node
	natIn     map[forwarding.NodeIface][]nat.Rule
	natOut    map[forwarding.NodeIface][]nat.Rule

	owned      map[forwarding.NodeVrf]bdd.Node
	routable   map[forwarding.NodeVrf]bdd.Node
	nullRouted map[forwarding.NodeVrf]bdd.Node
	arp        map[forwarding.Edge]bdd.Node
	delivered  map[forwarding.NodeIface]bdd.Node
	exits      map[forwarding.NodeIface]bdd.Node
	unreach    map[forwarding.NodeIface]bdd.Node

	base     []Edge
	known    map[state.Expr]bool
	delivery map[forwarding.Edge]bool
	graph    *Graph
}

// NewFactory compiles net against facts. A nil facts means an empty data plane.
//
// The build runs in dependency order: index, tags, ACLs, NAT, facts, edges.
// Dangling references (an ACL, NAT pool or interface that does not exist)
// fail the build with a KindIntegrity error.
func NewFactory(f *bdd.Factory, net *config.Network, facts *forwarding.Analysis, opts ...Option) (*Factory, error) {
	if facts == nil {
		facts = forwarding.NewAnalysis()
	}
	b := &Factory{
		f:     f,
		net:   net,
		facts: facts,
		opts:  buildOptions("factory", opts),
	}

	start := time.Now()
	steps := []struct {
		name string
		run  func() error
	}{
		{"index", b.index},
		{"tags", b.assignTags},
		{"acls", b.compileACLs},
		{"nat", b.compileNAT},
		{"facts", b.convertFacts},
		{"edges", b.buildEdges},
	}
	for _, step := range steps {
		stepStart := time.Now()
		if err := step.run(); err != nil {
			if errors.Integrity(err) {
				b.opts.metrics.IncIntegrity()
			}
			return nil, errors.Attr(err, "step", step.name)
		}
		b.opts.logger.Debug("build step done", "step", step.name, "duration", time.Since(stepStart))
	}
	if err := f.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "bdd factory failed")
	}

	b.graph = b.SessionGraph(b.opts.sessions)
	elapsed := time.Since(start)
	b.opts.metrics.ObserveBuild(b.graph.NumStates(), b.graph.NumEdges(), elapsed)
	b.opts.logger.Info("graph built",
		"devices", len(b.devices),
		"states", b.graph.NumStates(),
		"edges", b.graph.NumEdges(),
		"sessions", len(b.opts.sessions),
		"duration", elapsed)
	return b, nil
}

// Graph returns the graph built by NewFactory.
func (b *Factory) Graph() *Graph { return b.graph }

// BDD returns the header-space factory the graph is expressed in.
func (b *Factory) BDD() *bdd.Factory { return b.f }

// Network returns the snapshot the graph was built from.
func (b *Factory) Network() *config.Network { return b.net }

// Tag returns the source-interface/last-hop tag of an interface. Tag 0 means none.
func (b *Factory) Tag(hostname, iface string) (uint32, bool) {
	t, ok := b.tags[forwarding.NodeIface{Hostname: hostname, Iface: iface}]
	return t, ok
}

// TagOwner is the inverse of Tag.
func (b *Factory) TagOwner(tag uint32) (forwarding.NodeIface, bool) {
	if tag == 0 || int(tag) > len(b.ifaces) {
		return forwarding.NodeIface{}, false
	}
	return b.ifaces[tag-1], true
}

func (b *Factory) index() error {
	b.iface = make(map[forwarding.NodeIface]*config.Interface)
	for i := range b.net.Devices {
		d := &b.net.Devices[i]
		b.devices = append(b.devices, d)
		for j := range d.Interfaces {
			iface := &d.Interfaces[j]
			if iface.Disabled {
				continue
			}
			ni := forwarding.NodeIface{Hostname: d.Hostname, Iface: iface.Name}
			b.iface[ni] = iface
			b.ifaces = append(b.ifaces, ni)
		}
	}
	sort.Slice(b.devices, func(i, j int) bool { return b.devices[i].Hostname < b.devices[j].Hostname })
	sort.Slice(b.ifaces, func(i, j int) bool {
		if b.ifaces[i].Hostname != b.ifaces[j].Hostname {
			return b.ifaces[i].Hostname < b.ifaces[j].Hostname
		}
		return b.ifaces[i].Iface < b.ifaces[j].Iface
	})
	return nil
}

// Tags are assigned densely from 1 in interface order, so they are stable
// for a given snapshot.
func (b *Factory) assignTags() error {
	if uint64(len(b.ifaces)) > uint64(b.f.MaxTag()) {
		return errors.Errorf(errors.KindUnsupported,
			"%d interfaces do not fit in %d tag bits", len(b.ifaces), b.f.Width(bdd.SrcInterface))
	}
	b.tags = make(map[forwarding.NodeIface]uint32, len(b.ifaces))
	for i, ni := range b.ifaces {
		b.tags[ni] = uint32(i + 1)
	}
	return nil
}

func (b *Factory) compileACLs() error {
	b.permitIn = make(map[forwarding.NodeIface]bdd.Node)
	b.permitOut = make(map[forwarding.NodeIface]bdd.Node)
	for _, d := range b.devices {
		host := d.Hostname
		// a disabled interface resolves to tag 0, which no ingress traffic carries
		c := acl.NewCompiler(b.f, d, func(iface string) (uint32, bool) {
			if t, ok := b.Tag(host, iface); ok {
				return t, true
			}
			_, declared := d.Interface(iface)
			return 0, declared
		})
		for _, iface := range d.Interfaces {
			ni := forwarding.NodeIface{Hostname: host, Iface: iface.Name}
			if _, ok := b.iface[ni]; !ok {
				continue
			}
			if b.opts.ignoreFilters {
				b.permitIn[ni] = b.f.One()
				b.permitOut[ni] = b.f.One()
				continue
			}
			in, err := c.PermitOrAll(iface.ACLIn)
			if err != nil {
				return errors.Attr(err, "interface", iface.Name)
			}
			out, err := c.PermitOrAll(iface.ACLOut)
			if err != nil {
				return errors.Attr(err, "interface", iface.Name)
			}
			b.permitIn[ni] = in
			b.permitOut[ni] = out
		}
	}
	return nil
}

func (b *Factory) compileNAT() error {
	b.natIn = make(map[forwarding.NodeIface][]nat.Rule)
	b.natOut = make(map[forwarding.NodeIface][]nat.Rule)
	for _, d := range b.devices {
		for _, r := range d.NAT {
			for _, ref := range []string{r.InInterface, r.OutInterface} {
				if ref == "" {
					continue
				}
				if _, ok := d.Interface(ref); !ok {
					return errors.Attr(errors.Attr(
						errors.Errorf(errors.KindIntegrity, "nat rule %s references undefined interface %s", r.Name, ref),
						"hostname", d.Hostname), "nat_rule", r.Name)
				}
			}
		}
		for _, iface := range d.Interfaces {
			ni := forwarding.NodeIface{Hostname: d.Hostname, Iface: iface.Name}
			if _, ok := b.iface[ni]; !ok {
				continue
			}
			in, err := nat.Incoming(b.f, d, iface.Name)
			if err != nil {
				return err
			}
			out, err := nat.Outgoing(b.f, d, iface.Name)
			if err != nil {
				return err
			}
			b.natIn[ni] = in
			b.natOut[ni] = out
		}
	}
	return nil
}

func (b *Factory) knownVrf(nv forwarding.NodeVrf) bool {
	d, ok := b.net.Device(nv.Hostname)
	if !ok {
		return false
	}
	for _, v := range d.VRFNames() {
		if v == nv.Vrf {
			return true
		}
	}
	return false
}

func (b *Factory) convertFacts() error {
	f := b.f
	dst := func(s *netipx.IPSet) bdd.Node { return f.IPSet(bdd.DstIP, s) }

	vrfFacts := func(name string, in map[forwarding.NodeVrf]*netipx.IPSet) (map[forwarding.NodeVrf]bdd.Node, error) {
		out := make(map[forwarding.NodeVrf]bdd.Node, len(in))
		for nv, s := range in {
			if !b.knownVrf(nv) {
				return nil, errors.Attr(errors.Errorf(errors.KindIntegrity,
					"%s facts reference unknown vrf %s on %s", name, nv.Vrf, nv.Hostname), "hostname", nv.Hostname)
			}
			out[nv] = dst(s)
		}
		return out, nil
	}
	ifaceFacts := func(name string, in map[forwarding.NodeIface]*netipx.IPSet) (map[forwarding.NodeIface]bdd.Node, error) {
		out := make(map[forwarding.NodeIface]bdd.Node, len(in))
		for ni, s := range in {
			if _, ok := b.iface[ni]; !ok {
				return nil, errors.Attr(errors.Errorf(errors.KindIntegrity,
					"%s facts reference unknown interface %s on %s", name, ni.Iface, ni.Hostname), "hostname", ni.Hostname)
			}
			out[ni] = dst(s)
		}
		return out, nil
	}

	var err error
	if b.owned, err = vrfFacts("owned", b.facts.Owned); err != nil {
		return err
	}
	if b.routable, err = vrfFacts("routable", b.facts.Routable); err != nil {
		return err
	}
	if b.nullRouted, err = vrfFacts("null-routed", b.facts.NullRouted); err != nil {
		return err
	}
	if b.delivered, err = ifaceFacts("delivered-to-subnet", b.facts.DeliveredToSubnet); err != nil {
		return err
	}
	if b.exits, err = ifaceFacts("exits-network", b.facts.ExitsNetwork); err != nil {
		return err
	}
	if b.unreach, err = ifaceFacts("neighbor-unreachable", b.facts.NeighborUnreachable); err != nil {
		return err
	}

	b.arp = make(map[forwarding.Edge]bdd.Node, len(b.facts.ArpTrue))
	for _, e := range b.facts.Edges {
		for _, end := range []forwarding.NodeIface{{Hostname: e.Node1, Iface: e.Iface1}, {Hostname: e.Node2, Iface: e.Iface2}} {
			if _, ok := b.iface[end]; !ok {
				return errors.Attr(errors.Errorf(errors.KindIntegrity,
					"edge references unknown interface %s on %s", end.Iface, end.Hostname), "hostname", end.Hostname)
			}
		}
	}
	for e, s := range b.facts.ArpTrue {
		if _, ok := b.iface[forwarding.NodeIface{Hostname: e.Node2, Iface: e.Iface2}]; !ok {
			return errors.Attr(errors.Errorf(errors.KindIntegrity,
				"arp facts reference unknown interface %s on %s", e.Iface2, e.Node2), "hostname", e.Node2)
		}
		b.arp[e] = dst(s)
	}
	return nil
}

func (b *Factory) node(m map[forwarding.NodeVrf]bdd.Node, nv forwarding.NodeVrf) bdd.Node {
	if n, ok := m[nv]; ok {
		return n
	}
	return b.f.Zero()
}

func (b *Factory) nodeIface(m map[forwarding.NodeIface]bdd.Node, ni forwarding.NodeIface) bdd.Node {
	if n, ok := m[ni]; ok {
		return n
	}
	return b.f.Zero()
}

// resetTags assigns the source-interface tag and clears the last hop.
func (b *Factory) resetTags(src uint32) transition.Transition {
	f := b.f
	return transition.Assign(f,
		f.And(f.Value(bdd.SrcInterface, uint64(src)), f.Value(bdd.LastHop, 0)),
		bdd.SrcInterface, bdd.LastHop)
}

func (b *Factory) buildEdges() error {
	f := b.f
	b.known = make(map[state.Expr]bool)
	b.delivery = make(map[forwarding.Edge]bool)
	add := func(from, to state.Expr, t transition.Transition) {
		b.base = append(b.base, Edge{From: from, To: to, Transition: t})
		b.known[from] = true
		b.known[to] = true
	}
	constraint := func(pred bdd.Node) transition.Transition { return transition.Constraint(f, pred) }

	for _, d := range b.devices {
		h := d.Hostname
		for _, vrf := range d.VRFNames() {
			nv := forwarding.NodeVrf{Hostname: h, Vrf: vrf}
			postIn := state.PostInVrf{Hostname: h, Vrf: vrf}
			preOut := state.PreOutVrf{Hostname: h, Vrf: vrf}
			accept := b.node(b.owned, nv)
			routable := b.node(b.routable, nv)

			add(state.OriginateVrf{Hostname: h, Vrf: vrf}, postIn, b.resetTags(0))

			// accept, no route and route are a partition of the header space
			add(postIn, state.VrfAccept{Hostname: h, Vrf: vrf}, constraint(accept))
			add(postIn, state.NodeDropNoRoute{Hostname: h}, constraint(f.And(f.Not(accept), f.Not(routable))))
			add(postIn, preOut, constraint(f.Diff(routable, accept)))
			add(state.VrfAccept{Hostname: h, Vrf: vrf}, state.NodeAccept{Hostname: h}, transition.Identity())

			null := b.node(b.nullRouted, nv)
			covered := null
			add(preOut, state.NodeDropNullRoute{Hostname: h}, constraint(null))
			for _, ni := range b.vrfIfaces(h, vrf) {
				for _, e := range b.facts.EdgesFrom(h, ni.Iface) {
					arp, ok := b.arp[e]
					if !ok {
						continue
					}
					covered = f.Or(covered, arp)
					add(preOut, preOutEdge(e), constraint(arp))
				}
				for _, out := range []struct {
					fact bdd.Node
					to   state.Expr
				}{
					{b.nodeIface(b.delivered, ni), state.PreOutInterfaceDeliveredToSubnet{Hostname: h, Iface: ni.Iface}},
					{b.nodeIface(b.exits, ni), state.PreOutInterfaceExitsNetwork{Hostname: h, Iface: ni.Iface}},
					{b.nodeIface(b.unreach, ni), state.PreOutInterfaceNeighborUnreachable{Hostname: h, Iface: ni.Iface}},
				} {
					covered = f.Or(covered, out.fact)
					add(preOut, out.to, constraint(out.fact))
				}
			}
			// routable space no route selection claims is still dropped
			add(preOut, state.NodeDropNoRoute{Hostname: h}, constraint(f.Not(covered)))
		}

		for _, ni := range b.deviceIfaces(h) {
			b.buildInterfaceEdges(ni, add)
		}

		add(state.NodeAccept{Hostname: h}, state.Accept{}, transition.Identity())
		add(state.NodeDropAclIn{Hostname: h}, state.DropAclIn{}, transition.Identity())
		add(state.NodeDropAclOut{Hostname: h}, state.DropAclOut{}, transition.Identity())
		add(state.NodeDropNoRoute{Hostname: h}, state.DropNoRoute{}, transition.Identity())
		add(state.NodeDropNullRoute{Hostname: h}, state.DropNullRoute{}, transition.Identity())
	}

	for _, drop := range []state.Expr{
		state.DropAclIn{}, state.DropAclOut{}, state.DropNoRoute{}, state.DropNullRoute{}, state.NeighborUnreachable{},
	} {
		add(drop, state.Drop{}, transition.Identity())
	}
	return nil
}

func (b *Factory) buildInterfaceEdges(ni forwarding.NodeIface, add func(from, to state.Expr, t transition.Transition)) {
	f := b.f
	h, name := ni.Hostname, ni.Iface
	tag := b.tags[ni]
	vrf := b.iface[ni].VRFName()
	permitIn := b.permitIn[ni]
	permitOut := b.permitOut[ni]
	srcNat := nat.Transition(f, b.natOut[ni])

	preIn := state.PreInInterface{Hostname: h, Iface: name}
	postIn := state.PostInInterface{Hostname: h, Iface: name}

	add(state.OriginateInterface{Hostname: h, Iface: name}, state.PostInVrf{Hostname: h, Vrf: vrf}, b.resetTags(tag))
	add(state.OriginateInterfaceLink{Hostname: h, Iface: name}, preIn, transition.AssignValue(f, bdd.LastHop, 0))

	// the tag is set before the ACL so src_interface lines can match it
	setSrc := transition.AssignValue(f, bdd.SrcInterface, uint64(tag))
	add(preIn, postIn, transition.Compose(f, setSrc, transition.Constraint(f, permitIn), nat.Transition(f, b.natIn[ni])))
	add(preIn, state.NodeDropAclIn{Hostname: h}, transition.Compose(f, setSrc, transition.Constraint(f, f.Not(permitIn))))
	add(postIn, state.PostInVrf{Hostname: h, Vrf: vrf}, transition.Identity())

	egress := func(pre, post state.Expr) {
		add(pre, post, transition.Compose(f, transition.Constraint(f, permitOut), srcNat))
		add(pre, state.NodeDropAclOut{Hostname: h}, transition.Constraint(f, f.Not(permitOut)))
	}

	for _, e := range b.facts.EdgesFrom(h, name) {
		if _, ok := b.arp[e]; !ok {
			continue
		}
		egress(preOutEdge(e), postNatEdge(e))
		b.delivery[e] = true
		add(postNatEdge(e), state.PreInInterface{Hostname: e.Node2, Iface: e.Iface2},
			transition.AssignValue(f, bdd.LastHop, uint64(tag)))
	}

	if !f.IsZero(b.nodeIface(b.delivered, ni)) {
		egress(state.PreOutInterfaceDeliveredToSubnet{Hostname: h, Iface: name}, state.NodeInterfaceDeliveredToSubnet{Hostname: h, Iface: name})
	}
	if !f.IsZero(b.nodeIface(b.exits, ni)) {
		egress(state.PreOutInterfaceExitsNetwork{Hostname: h, Iface: name}, state.NodeInterfaceExitsNetwork{Hostname: h, Iface: name})
	}
	if !f.IsZero(b.nodeIface(b.unreach, ni)) {
		egress(state.PreOutInterfaceNeighborUnreachable{Hostname: h, Iface: name}, state.NodeInterfaceNeighborUnreachable{Hostname: h, Iface: name})
	}

	add(state.NodeInterfaceDeliveredToSubnet{Hostname: h, Iface: name}, state.DeliveredToSubnet{}, transition.Identity())
	add(state.NodeInterfaceExitsNetwork{Hostname: h, Iface: name}, state.ExitsNetwork{}, transition.Identity())
	add(state.NodeInterfaceNeighborUnreachable{Hostname: h, Iface: name}, state.NeighborUnreachable{}, transition.Identity())
}

func (b *Factory) deviceIfaces(hostname string) []forwarding.NodeIface {
	var out []forwarding.NodeIface
	for _, ni := range b.ifaces {
		if ni.Hostname == hostname {
			out = append(out, ni)
		}
	}
	return out
}

func (b *Factory) vrfIfaces(hostname, vrf string) []forwarding.NodeIface {
	var out []forwarding.NodeIface
	for _, ni := range b.deviceIfaces(hostname) {
		if b.iface[ni].VRFName() == vrf {
			out = append(out, ni)
		}
	}
	return out
}

func preOutEdge(e forwarding.Edge) state.PreOutEdge {
	return state.PreOutEdge{Hostname: e.Node1, Iface: e.Iface1, PeerHostname: e.Node2, PeerIface: e.Iface2}
}

func postNatEdge(e forwarding.Edge) state.PreOutEdgePostNat {
	return state.PreOutEdgePostNat{Hostname: e.Node1, Iface: e.Iface1, PeerHostname: e.Node2, PeerIface: e.Iface2}
}
