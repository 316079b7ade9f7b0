// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package location

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/state"
)

func newFactory(t *testing.T) *bdd.Factory {
	t.Helper()
	f, err := bdd.New(bdd.TagBits(4), bdd.NodeSize(1<<12), bdd.CacheSize(1<<10))
	require.NoError(t, err)
	return f
}

func TestStateMapping(t *testing.T) {
	il := InterfaceLocation{"r1", "eth0"}
	link := InterfaceLinkLocation{"r1", "eth0"}
	assert.Equal(t, state.OriginateInterface{Hostname: "r1", Iface: "eth0"}, il.State())
	assert.Equal(t, state.OriginateInterfaceLink{Hostname: "r1", Iface: "eth0"}, link.State())

	back, ok := FromState(il.State())
	require.True(t, ok)
	assert.Equal(t, Location(il), back)
	back, ok = FromState(link.State())
	require.True(t, ok)
	assert.Equal(t, Location(link), back)

	_, ok = FromState(state.OriginateVrf{Hostname: "r1", Vrf: "default"})
	assert.False(t, ok)
	// On the wire, but not a root.
	_, ok = FromState(state.PreInInterface{Hostname: "r1", Iface: "eth0"})
	assert.False(t, ok)
	_, ok = FromState(state.NodeInterfaceExitsNetwork{Hostname: "r1", Iface: "eth0"})
	assert.False(t, ok)
	assert.Equal(t, "r1[eth0]@link", link.String())
}

func TestRoots(t *testing.T) {
	f := newFactory(t)
	r1 := InterfaceLocation{"r1", "eth0"}
	r2 := InterfaceLinkLocation{"r2", "eth1"}

	a := Assignment{
		{Locations: []Location{r1, r2}, SrcIPs: SetOf(netip.MustParsePrefix("10.0.0.0/24"))},
		{Locations: []Location{r1}, SrcIPs: SetOf(netip.MustParsePrefix("10.0.1.0/24"))},
		{Locations: []Location{InterfaceLocation{"r3", "eth0"}}, SrcIPs: SetOf()},
	}
	web := f.Value(bdd.DstPort, 80)
	roots := Roots(f, a, web)

	require.Len(t, roots, 2)
	want := f.And(web, f.Or(
		f.Prefix(bdd.SrcIP, netip.MustParsePrefix("10.0.0.0/24")),
		f.Prefix(bdd.SrcIP, netip.MustParsePrefix("10.0.1.0/24")),
	))
	assert.True(t, f.Equal(want, roots[r1.State()]))
	assert.True(t, f.Equal(f.And(web, f.Prefix(bdd.SrcIP, netip.MustParsePrefix("10.0.0.0/24"))), roots[r2.State()]))
}

func TestDefault(t *testing.T) {
	net := &config.Network{Devices: []config.Device{{
		Hostname: "r1",
		Interfaces: []config.Interface{
			{Name: "eth1", IPv4: []string{"192.168.1.1/24"}},
			{Name: "eth0", IPv4: []string{"10.0.0.1/30"}},
			{Name: "eth2", IPv4: []string{"172.16.0.1/24"}, Disabled: true},
			{Name: "lo"},
		},
	}}}
	a := Default(net)
	require.Len(t, a, 2)
	assert.Equal(t, Location(InterfaceLocation{"r1", "eth0"}), a[0].Locations[0])
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/30")}, a[0].SrcIPs.Prefixes())
	assert.Equal(t, Location(InterfaceLocation{"r1", "eth1"}), a[1].Locations[0])
}
