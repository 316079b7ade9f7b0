// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allKinds() []Expr {
	return []Expr{
		OriginateVrf{"r1", "default"},
		OriginateInterface{"r1", "eth0"},
		OriginateInterfaceLink{"r1", "eth0"},
		PreInInterface{"r1", "eth0"},
		PostInInterface{"r1", "eth0"},
		PostInVrf{"r1", "default"},
		PreOutVrf{"r1", "default"},
		PreOutEdge{"r1", "eth1", "r2", "eth0"},
		PreOutEdgePostNat{"r1", "eth1", "r2", "eth0"},
		PreOutInterfaceDeliveredToSubnet{"r1", "eth2"},
		PreOutInterfaceExitsNetwork{"r1", "eth2"},
		PreOutInterfaceNeighborUnreachable{"r1", "eth2"},
		SessionMatch{"r1", "eth1", "r2", "eth0"},
		VrfAccept{"r1", "default"},
		NodeAccept{"r1"},
		NodeDropAclIn{"r1"},
		NodeDropAclOut{"r1"},
		NodeDropNoRoute{"r1"},
		NodeDropNullRoute{"r1"},
		NodeInterfaceDeliveredToSubnet{"r1", "eth2"},
		NodeInterfaceExitsNetwork{"r1", "eth2"},
		NodeInterfaceNeighborUnreachable{"r1", "eth2"},
		Accept{}, Drop{}, DropAclIn{}, DropAclOut{}, DropNoRoute{}, DropNullRoute{},
		DeliveredToSubnet{}, ExitsNetwork{}, NeighborUnreachable{},
	}
}

func TestHostname(t *testing.T) {
	for _, e := range allKinds() {
		want := "r1"
		if _, ok := DispositionOf(e); ok {
			want = ""
		}
		if _, ok := e.(Drop); ok {
			want = ""
		}
		assert.Equal(t, want, Hostname(e), e.String())
	}
}

func TestStatesAreDistinctMapKeys(t *testing.T) {
	seen := make(map[Expr]bool)
	for _, e := range allKinds() {
		assert.False(t, seen[e], "duplicate key %s", e)
		seen[e] = true
	}
	// Same fields, different kinds.
	assert.NotEqual(t, Expr(PreInInterface{"r1", "eth0"}), Expr(PostInInterface{"r1", "eth0"}))
	assert.True(t, seen[PreInInterface{"r1", "eth0"}])
}

func TestString(t *testing.T) {
	assert.Equal(t, "PreInInterface{r1:eth0}", PreInInterface{"r1", "eth0"}.String())
	assert.Equal(t, "PreOutEdge{r1:eth1 -> r2:eth0}", PreOutEdge{"r1", "eth1", "r2", "eth0"}.String())
	assert.Equal(t, "DropNoRoute", DropNoRoute{}.String())
}

func TestDispositionTerminals(t *testing.T) {
	for _, d := range append(Successes(), Failures()...) {
		term, ok := d.Terminal()
		assert.True(t, ok, d.String())
		back, ok := DispositionOf(term)
		assert.True(t, ok)
		assert.Equal(t, d, back)
	}
	_, ok := Loop.Terminal()
	assert.False(t, ok)
	_, ok = DispositionOf(Drop{})
	assert.False(t, ok)
}

func TestDispositionSuccess(t *testing.T) {
	assert.True(t, Accepted.Success())
	assert.True(t, ExitsNetworkDisposition.Success())
	assert.False(t, DeniedIn.Success())
	assert.False(t, NeighborUnreachableDisposition.Success())
	assert.False(t, Loop.Success())
}

func TestParseDisposition(t *testing.T) {
	d, ok := ParseDisposition("null_routed")
	assert.True(t, ok)
	assert.Equal(t, NullRouted, d)
	assert.Equal(t, "loop", Loop.String())
	_, ok = ParseDisposition("teleported")
	assert.False(t, ok)

	for _, d := range append(Successes(), append(Failures(), Loop)...) {
		text, err := d.MarshalText()
		assert.NoError(t, err)
		var back Disposition
		assert.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, d, back)
	}
	var bad Disposition
	assert.Error(t, bad.UnmarshalText([]byte("teleported")))
	_, err := Disposition(99).MarshalText()
	assert.Error(t, err)
}

func TestIsOrigination(t *testing.T) {
	assert.True(t, IsOrigination(OriginateVrf{"r1", "default"}))
	assert.True(t, IsOrigination(OriginateInterfaceLink{"r1", "eth0"}))
	assert.False(t, IsOrigination(PreInInterface{"r1", "eth0"}))
}

func TestDescribe_CoversEveryKind(t *testing.T) {
	visitor := reflect.TypeOf((*Visitor[Info])(nil)).Elem()
	assert.Equal(t, visitor.NumMethod(), len(allKinds()), "allKinds is missing a state kind")
	for _, e := range allKinds() {
		assert.NotPanics(t, func() { Describe(e) }, e.String())
		// Each kind dispatches to the visitor method of the same name.
		_, ok := visitor.MethodByName(reflect.TypeOf(e).Name())
		assert.True(t, ok, e.String())
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		e    Expr
		want Info
	}{
		{OriginateVrf{"r1", "default"}, Info{Role: Origination, Hostname: "r1", Vrf: "default"}},
		{OriginateInterface{"r1", "eth0"}, Info{Role: Origination, Hostname: "r1", Iface: "eth0"}},
		{OriginateInterfaceLink{"r1", "eth0"}, Info{Role: Origination, Hostname: "r1", Iface: "eth0", Link: true}},
		{PreInInterface{"r1", "eth0"}, Info{Hostname: "r1", Iface: "eth0", Link: true}},
		{PreOutEdge{"r1", "eth1", "r2", "eth0"}, Info{Hostname: "r1", Iface: "eth1"}},
		{PreOutEdgePostNat{"r1", "eth1", "r2", "eth0"}, Info{Role: Egress, Hostname: "r1", Iface: "eth1"}},
		{VrfAccept{"r1", "default"}, Info{
			Role: Egress, Hostname: "r1", Vrf: "default",
			Reply: OriginateVrf{"r1", "default"},
		}},
		{NodeInterfaceExitsNetwork{"r1", "eth2"}, Info{
			Role: Egress, Hostname: "r1", Iface: "eth2",
			Reply: OriginateInterfaceLink{"r1", "eth2"},
		}},
		{NodeInterfaceNeighborUnreachable{"r1", "eth2"}, Info{Hostname: "r1", Iface: "eth2"}},
		{NodeDropNullRoute{"r1"}, Info{Hostname: "r1"}},
		{Drop{}, Info{Role: Terminal}},
		{DropNullRoute{}, Info{Role: Terminal, Disposition: NullRouted, HasDisposition: true}},
	}
	for _, tt := range tests {
		t.Run(tt.e.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.e))
		})
	}
}

func TestDescribe_RolesPartitionKinds(t *testing.T) {
	counts := make(map[Role]int)
	for _, e := range allKinds() {
		i := Describe(e)
		counts[i.Role]++
		if i.Reply != nil {
			assert.Equal(t, Egress, i.Role, e.String())
			assert.True(t, IsOrigination(i.Reply), e.String())
		}
		if i.HasDisposition {
			assert.Equal(t, Terminal, i.Role, e.String())
		}
	}
	assert.Equal(t, 3, counts[Origination])
	assert.Equal(t, 4, counts[Egress])
	assert.Equal(t, 9, counts[Terminal])
}
