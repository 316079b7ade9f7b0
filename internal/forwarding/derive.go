// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package forwarding

import (
	"net/netip"
	"sort"

	"go4.org/netipx"

	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/validation"
)

type fibEntry struct {
	prefix  netip.Prefix
	null    bool
	iface   string
	nextHop netip.Addr
}

// FromConfig derives forwarding facts from connected subnets and static routes.
//
// Each destination is resolved by longest prefix match; entries sharing the
// best prefix are all used. A static route naming only a next hop is resolved
// through the connected subnet containing it and is dropped when none does.
func FromConfig(net *config.Network) *Analysis {
	a := NewAnalysis()

	// Addresses and subnets of enabled interfaces.
	ifaceAddrs := make(map[NodeIface][]netip.Prefix)
	for _, d := range net.Devices {
		for _, iface := range d.Interfaces {
			if iface.Disabled {
				continue
			}
			ni := NodeIface{d.Hostname, iface.Name}
			a.IfaceVrf[ni] = iface.VRFName()
			for _, s := range iface.IPv4 {
				p, err := validation.ParseInterfaceAddress(s)
				if err != nil {
					continue
				}
				ifaceAddrs[ni] = append(ifaceAddrs[ni], p)
				addTo(a.Owned, NodeVrf{d.Hostname, iface.VRFName()}, hostSet(p.Addr()))
			}
		}
	}

	for _, l := range net.Links {
		e := Edge{l.Node1, l.Iface1, l.Node2, l.Iface2}
		_, ok1 := a.IfaceVrf[NodeIface{e.Node1, e.Iface1}]
		_, ok2 := a.IfaceVrf[NodeIface{e.Node2, e.Iface2}]
		if !ok1 || !ok2 {
			continue
		}
		a.Edges = append(a.Edges, e, e.Reverse())
	}
	sort.Slice(a.Edges, func(i, j int) bool { return edgeLess(a.Edges[i], a.Edges[j]) })

	for _, d := range net.Devices {
		for _, vrf := range d.VRFNames() {
			nv := NodeVrf{d.Hostname, vrf}
			fib := buildFIB(&d, vrf, ifaceAddrs)
			deriveVrf(a, nv, fib, ifaceAddrs)
		}
	}
	return a
}

func buildFIB(d *config.Device, vrf string, ifaceAddrs map[NodeIface][]netip.Prefix) []fibEntry {
	var fib []fibEntry
	connected := make(map[string][]netip.Prefix)
	for _, iface := range d.Interfaces {
		if iface.Disabled || iface.VRFName() != vrf {
			continue
		}
		for _, p := range ifaceAddrs[NodeIface{d.Hostname, iface.Name}] {
			connected[iface.Name] = append(connected[iface.Name], p.Masked())
			fib = append(fib, fibEntry{prefix: p.Masked(), iface: iface.Name})
		}
	}

	for _, r := range d.Routes {
		if r.VRFName() != vrf {
			continue
		}
		p, err := validation.ParsePrefix(r.Prefix)
		if err != nil {
			continue
		}
		p = p.Masked()
		if r.Null {
			fib = append(fib, fibEntry{prefix: p, null: true})
			continue
		}
		var nh netip.Addr
		if r.NextHop != "" {
			if nh, err = netip.ParseAddr(r.NextHop); err != nil {
				continue
			}
		}
		iface := r.Interface
		if iface == "" {
			iface = resolveNextHop(connected, nh)
		} else if i, ok := d.Interface(iface); !ok || i.Disabled || i.VRFName() != vrf {
			continue
		}
		if iface == "" {
			continue
		}
		fib = append(fib, fibEntry{prefix: p, iface: iface, nextHop: nh})
	}
	return fib
}

// deriveVrf carves the destination space by longest prefix match and assigns
// each region to a forwarding fact.
func deriveVrf(a *Analysis, nv NodeVrf, fib []fibEntry, ifaceAddrs map[NodeIface][]netip.Prefix) {
	byPrefix := make(map[netip.Prefix][]fibEntry)
	var prefixes []netip.Prefix
	for _, e := range fib {
		if _, ok := byPrefix[e.prefix]; !ok {
			prefixes = append(prefixes, e.prefix)
		}
		byPrefix[e.prefix] = append(byPrefix[e.prefix], e)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if prefixes[i].Bits() != prefixes[j].Bits() {
			return prefixes[i].Bits() > prefixes[j].Bits()
		}
		return prefixes[i].Addr().Less(prefixes[j].Addr())
	})

	covered := Empty()
	for _, p := range prefixes {
		region := minus(prefixSet(p), covered)
		covered = union(covered, prefixSet(p))
		if isEmpty(region) {
			continue
		}
		addTo(a.Routable, nv, region)
		for _, e := range byPrefix[p] {
			if e.null {
				addTo(a.NullRouted, nv, region)
				continue
			}
			a.forwardOut(nv.Hostname, e, region, ifaceAddrs)
		}
	}
}

// forwardOut classifies a region forwarded out of an interface by who answers
// ARP for the next hop (or for the destination itself when there is none).
func (a *Analysis) forwardOut(hostname string, e fibEntry, region *netipx.IPSet, ifaceAddrs map[NodeIface][]netip.Prefix) {
	ni := NodeIface{hostname, e.iface}
	edges := a.EdgesFrom(hostname, e.iface)

	if e.nextHop.IsValid() {
		for _, edge := range edges {
			if ownsAddr(ifaceAddrs[NodeIface{edge.Node2, edge.Iface2}], e.nextHop) {
				addTo(a.ArpTrue, edge, region)
				return
			}
		}
		if len(edges) == 0 {
			addTo(a.ExitsNetwork, ni, region)
		} else {
			addTo(a.NeighborUnreachable, ni, region)
		}
		return
	}

	remaining := region
	for _, edge := range edges {
		peer := Empty()
		for _, p := range ifaceAddrs[NodeIface{edge.Node2, edge.Iface2}] {
			peer = union(peer, hostSet(p.Addr()))
		}
		hit := intersect(remaining, peer)
		addTo(a.ArpTrue, edge, hit)
		remaining = minus(remaining, hit)
	}
	if isEmpty(remaining) {
		return
	}

	subnets := Empty()
	for _, p := range ifaceAddrs[ni] {
		subnets = union(subnets, prefixSet(p.Masked()))
	}
	onSubnet := intersect(remaining, subnets)
	addTo(a.DeliveredToSubnet, ni, onSubnet)
	rest := minus(remaining, onSubnet)
	if len(edges) == 0 {
		addTo(a.ExitsNetwork, ni, rest)
	} else {
		addTo(a.NeighborUnreachable, ni, rest)
	}
}

// resolveNextHop returns the connected interface whose subnet holds nh,
// preferring the lexically smallest name when several do.
func resolveNextHop(connected map[string][]netip.Prefix, nh netip.Addr) string {
	best := ""
	for name, subnets := range connected {
		for _, s := range subnets {
			if s.Contains(nh) && (best == "" || name < best) {
				best = name
			}
		}
	}
	return best
}

func ownsAddr(addrs []netip.Prefix, ip netip.Addr) bool {
	for _, p := range addrs {
		if p.Addr() == ip {
			return true
		}
	}
	return false
}

func hostSet(ip netip.Addr) *netipx.IPSet {
	var b netipx.IPSetBuilder
	b.Add(ip)
	s, _ := b.IPSet()
	return s
}

func prefixSet(p netip.Prefix) *netipx.IPSet {
	var b netipx.IPSetBuilder
	b.AddPrefix(p)
	s, _ := b.IPSet()
	return s
}

func edgeLess(x, y Edge) bool {
	if x.Node1 != y.Node1 {
		return x.Node1 < y.Node1
	}
	if x.Iface1 != y.Iface1 {
		return x.Iface1 < y.Iface1
	}
	if x.Node2 != y.Node2 {
		return x.Node2 < y.Node2
	}
	return x.Iface2 < y.Iface2
}
