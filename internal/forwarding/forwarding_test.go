// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package forwarding

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"

	"grimm.is/reachability/internal/config"
)

func twoNode() *config.Network {
	return &config.Network{
		Devices: []config.Device{
			{
				Hostname: "a",
				Interfaces: []config.Interface{
					{Name: "eth0", IPv4: []string{"10.0.0.1/30"}},
					{Name: "eth1", IPv4: []string{"192.168.1.1/24"}},
					{Name: "eth2", IPv4: []string{"172.31.0.1/24"}, Disabled: true},
				},
				Routes: []config.Route{
					{Prefix: "0.0.0.0/0", NextHop: "10.0.0.2"},
					{Prefix: "10.99.0.0/16", Null: true},
					{Prefix: "172.16.0.0/16", NextHop: "10.0.0.9"},
					{Prefix: "10.200.0.0/16", Interface: "eth1", NextHop: "192.168.1.254"},
				},
			},
			{
				Hostname:   "b",
				Interfaces: []config.Interface{{Name: "eth0", IPv4: []string{"10.0.0.2/30"}}},
				Routes: []config.Route{
					{Prefix: "192.168.1.0/24", NextHop: "10.0.0.1"},
					{Prefix: "8.8.8.0/24", NextHop: "10.0.0.3"},
				},
			},
		},
		Links: []config.Link{
			{Node1: "a", Iface1: "eth0", Node2: "b", Iface2: "eth0"},
			{Node1: "a", Iface1: "eth2", Node2: "b", Iface2: "eth0"},
		},
	}
}

func set(t *testing.T, items ...string) *netipx.IPSet {
	t.Helper()
	var b netipx.IPSetBuilder
	for _, s := range items {
		if p, err := netip.ParsePrefix(s); err == nil {
			b.AddPrefix(p)
			continue
		}
		b.Add(netip.MustParseAddr(s))
	}
	out, err := b.IPSet()
	require.NoError(t, err)
	return out
}

func assertSet(t *testing.T, want, got *netipx.IPSet) {
	t.Helper()
	if got == nil {
		got = Empty()
	}
	assert.True(t, want.Equal(got), "want %v, got %v", want.Prefixes(), got.Prefixes())
}

func TestFromConfig_Edges(t *testing.T) {
	a := FromConfig(twoNode())
	// The link to the disabled interface is ignored.
	assert.Equal(t, []Edge{
		{"a", "eth0", "b", "eth0"},
		{"b", "eth0", "a", "eth0"},
	}, a.Edges)
	assert.Equal(t, "default", a.IfaceVrf[NodeIface{"a", "eth1"}])
	_, ok := a.IfaceVrf[NodeIface{"a", "eth2"}]
	assert.False(t, ok)
}

func TestFromConfig_Owned(t *testing.T) {
	a := FromConfig(twoNode())
	assertSet(t, set(t, "10.0.0.1", "192.168.1.1"), a.Owned[NodeVrf{"a", "default"}])
	assertSet(t, set(t, "10.0.0.2"), a.Owned[NodeVrf{"b", "default"}])
}

func TestFromConfig_NodeA(t *testing.T) {
	a := FromConfig(twoNode())
	nv := NodeVrf{"a", "default"}

	assertSet(t, set(t, "0.0.0.0/0"), a.Routable[nv])
	assertSet(t, set(t, "10.99.0.0/16"), a.NullRouted[nv])

	var b netipx.IPSetBuilder
	b.AddPrefix(netip.MustParsePrefix("0.0.0.0/0"))
	for _, p := range []string{"10.0.0.0/30", "192.168.1.0/24", "10.99.0.0/16", "10.200.0.0/16"} {
		b.RemovePrefix(netip.MustParsePrefix(p))
	}
	b.Add(netip.MustParseAddr("10.0.0.2"))
	want, err := b.IPSet()
	require.NoError(t, err)
	assertSet(t, want, a.ArpTrue[Edge{"a", "eth0", "b", "eth0"}])

	assertSet(t, set(t, "10.0.0.0", "10.0.0.1", "10.0.0.3"), a.DeliveredToSubnet[NodeIface{"a", "eth0"}])
	assertSet(t, set(t, "192.168.1.0/24"), a.DeliveredToSubnet[NodeIface{"a", "eth1"}])
	assertSet(t, set(t, "10.200.0.0/16"), a.ExitsNetwork[NodeIface{"a", "eth1"}])
	assert.Nil(t, a.NeighborUnreachable[NodeIface{"a", "eth0"}])
}

func TestFromConfig_NodeB(t *testing.T) {
	a := FromConfig(twoNode())
	nv := NodeVrf{"b", "default"}

	assertSet(t, set(t, "10.0.0.0/30", "192.168.1.0/24", "8.8.8.0/24"), a.Routable[nv])
	assertSet(t, set(t, "10.0.0.1", "192.168.1.0/24"), a.ArpTrue[Edge{"b", "eth0", "a", "eth0"}])
	assertSet(t, set(t, "8.8.8.0/24"), a.NeighborUnreachable[NodeIface{"b", "eth0"}])
	assertSet(t, set(t, "10.0.0.0", "10.0.0.2", "10.0.0.3"), a.DeliveredToSubnet[NodeIface{"b", "eth0"}])
}

// Every routable destination lands in exactly one region per route.
func TestFromConfig_PartitionCoversRoutable(t *testing.T) {
	a := FromConfig(twoNode())
	for nv, routable := range a.Routable {
		var b netipx.IPSetBuilder
		if s := a.NullRouted[nv]; s != nil {
			b.AddSet(s)
		}
		for e, s := range a.ArpTrue {
			if e.Node1 == nv.Hostname {
				b.AddSet(s)
			}
		}
		for _, m := range []map[NodeIface]*netipx.IPSet{a.DeliveredToSubnet, a.ExitsNetwork, a.NeighborUnreachable} {
			for ni, s := range m {
				if ni.Hostname == nv.Hostname {
					b.AddSet(s)
				}
			}
		}
		covered, err := b.IPSet()
		require.NoError(t, err)
		assertSet(t, routable, covered)
	}
}

func TestEdgeReverse(t *testing.T) {
	e := Edge{"a", "eth0", "b", "eth1"}
	assert.Equal(t, Edge{"b", "eth1", "a", "eth0"}, e.Reverse())
	assert.Equal(t, e, e.Reverse().Reverse())
}
