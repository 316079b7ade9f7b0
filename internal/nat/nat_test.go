// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nat

import (
	"net/netip"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/errors"
)

func newFactory(t *testing.T) *bdd.Factory {
	t.Helper()
	f, err := bdd.New(bdd.TagBits(4), bdd.NodeSize(1<<12), bdd.CacheSize(1<<10))
	require.NoError(t, err)
	return f
}

func testDevice() *config.Device {
	return &config.Device{
		Hostname: "fw",
		Interfaces: []config.Interface{
			{Name: "inside", IPv4: []string{"10.0.0.1/24"}},
			{Name: "outside", IPv4: []string{"198.51.100.1/30"}},
		},
		NATPools: []config.NATPool{{Name: "pub", Range: "203.0.113.10-203.0.113.11"}},
		NAT: []config.NATRule{
			{
				Name: "web", Type: config.NATTypeDNAT, InInterface: "outside",
				ToIP: "10.0.0.80", ToPort: "8080",
				Match: &config.HeaderSpace{DstIP: []string{"198.51.100.1"}, DstPort: []string{"80"}},
			},
			{
				Name: "servers", Type: config.NATTypeSNAT, OutInterface: "outside", ToIP: "203.0.113.1",
				Match: &config.HeaderSpace{SrcIP: []string{"10.0.0.0/28"}},
			},
			{
				Name: "clients", Type: config.NATTypeSNAT, OutInterface: "outside", Pool: "pub",
				Match: &config.HeaderSpace{SrcIP: []string{"10.0.0.0/24"}},
			},
			{Name: "rest", Type: config.NATTypeMasquerade, OutInterface: "outside"},
		},
	}
}

func hdr(src, dst string, sport, dport uint16) bdd.Header {
	return bdd.Header{
		SrcIP: netip.MustParseAddr(src), DstIP: netip.MustParseAddr(dst),
		SrcPort: sport, DstPort: dport, Protocol: 6,
	}
}

func TestIncoming(t *testing.T) {
	f := newFactory(t)
	rules, err := Incoming(f, testDevice(), "outside")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []bdd.Field{bdd.DstIP, bdd.DstPort}, rules[0].Fields)

	tr := Transition(f, rules)
	out := tr.Forward(f.Cube(hdr("8.8.8.8", "198.51.100.1", 5000, 80)))
	assert.True(t, f.Equal(f.Cube(hdr("8.8.8.8", "10.0.0.80", 5000, 8080)), out))

	// Unmatched traffic passes through untouched.
	other := f.Cube(hdr("8.8.8.8", "198.51.100.1", 5000, 443))
	assert.True(t, f.Equal(other, tr.Forward(other)))

	none, err := Incoming(f, testDevice(), "inside")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutgoing_FirstMatchWins(t *testing.T) {
	f := newFactory(t)
	rules, err := Outgoing(f, testDevice(), "outside")
	require.NoError(t, err)
	require.Len(t, rules, 3)
	tr := Transition(f, rules)

	// 10.0.0.5 matches both "servers" and "clients"; the first rule decides.
	out := tr.Forward(f.Cube(hdr("10.0.0.5", "8.8.8.8", 1234, 53)))
	assert.True(t, f.Contains(out, hdr("203.0.113.1", "8.8.8.8", 1234, 53)))
	assert.False(t, f.Contains(out, hdr("203.0.113.10", "8.8.8.8", 1234, 53)))

	out = tr.Forward(f.Cube(hdr("10.0.0.100", "8.8.8.8", 1234, 53)))
	assert.True(t, f.Contains(out, hdr("203.0.113.10", "8.8.8.8", 1234, 53)))
	assert.True(t, f.Contains(out, hdr("203.0.113.11", "8.8.8.8", 1234, 53)))

	// Masquerade catches the rest.
	out = tr.Forward(f.Cube(hdr("172.16.0.1", "8.8.8.8", 1234, 53)))
	assert.True(t, f.Equal(f.Cube(hdr("198.51.100.1", "8.8.8.8", 1234, 53)), out))
}

func TestBackward(t *testing.T) {
	f := newFactory(t)
	rules, err := Outgoing(f, testDevice(), "outside")
	require.NoError(t, err)
	tr := Transition(f, rules)

	pre := tr.Backward(f.Cube(hdr("203.0.113.1", "8.8.8.8", 1234, 53)))
	// Every /28 host could have produced it via "servers".
	assert.True(t, f.Contains(pre, hdr("10.0.0.7", "8.8.8.8", 1234, 53)))
	// A /24 host outside the /28 is claimed by "clients", which cannot produce .1.
	assert.False(t, f.Contains(pre, hdr("10.0.0.100", "8.8.8.8", 1234, 53)))
	// Nothing reaches the wire untranslated, so an untranslated header has no pre-image.
	assert.True(t, f.IsZero(tr.Backward(f.Cube(hdr("10.0.0.7", "8.8.8.8", 1234, 53)))))
}

func TestCompile_IntegrityErrors(t *testing.T) {
	f := newFactory(t)
	dev := testDevice()

	_, err := Compile(f, dev, config.NATRule{Name: "x", Type: config.NATTypeSNAT, OutInterface: "outside", Pool: "gone"})
	assert.True(t, errors.Integrity(err))
	assert.Equal(t, "x", errors.GetAttributes(err)["nat_rule"])

	_, err = Compile(f, dev, config.NATRule{Name: "m", Type: config.NATTypeMasquerade, OutInterface: "tunnel0"})
	assert.True(t, errors.Integrity(err))

	_, err = Compile(f, dev, config.NATRule{Name: "y", Type: "nat64"})
	assert.Equal(t, errors.KindUnsupported, errors.GetKind(err))
}

func TestAssignedFields(t *testing.T) {
	f := newFactory(t)
	in, err := Incoming(f, testDevice(), "outside")
	require.NoError(t, err)
	out, err := Outgoing(f, testDevice(), "outside")
	require.NoError(t, err)
	assert.Equal(t, []bdd.Field{bdd.DstIP, bdd.DstPort, bdd.SrcIP}, AssignedFields(append(in, out...)))
}

func TestTransition_Empty(t *testing.T) {
	f := newFactory(t)
	tr := Transition(f, nil)
	p := f.Value(bdd.DstPort, 22)
	assert.True(t, f.Equal(p, tr.Forward(p)))
	assert.True(t, f.Equal(p, tr.Backward(p)))
}

// Forward then Backward never loses the original headers, and within the
// rule that fired it gives them back exactly up to the rewritten fields.
func TestRoundTripProperty(t *testing.T) {
	f := newFactory(t)
	in, err := Incoming(f, testDevice(), "outside")
	require.NoError(t, err)
	out, err := Outgoing(f, testDevice(), "outside")
	require.NoError(t, err)
	trs := []struct {
		name  string
		rules []Rule
	}{{"incoming", in}, {"outgoing", out}}

	pool := f.IPRange(bdd.SrcIP, netipx.IPRangeFrom(
		netip.MustParseAddr("203.0.113.10"), netip.MustParseAddr("203.0.113.11")))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	cube := func(src, dst, sport, dport int) bdd.Node {
		return f.Cube(bdd.Header{
			SrcIP:    netip.AddrFrom4([4]byte{10, 0, 0, byte(src)}),
			DstIP:    netip.AddrFrom4([4]byte{198, 51, 100, byte(dst)}),
			SrcPort:  uint16(sport),
			DstPort:  []uint16{22, 80, 443, 8080}[dport],
			Protocol: 6,
		})
	}
	gens := []gopter.Gen{
		gen.IntRange(0, 255),
		gen.IntRange(0, 3),
		gen.IntRange(0, 65535),
		gen.IntRange(0, 3),
	}

	for _, tc := range trs {
		tr := Transition(f, tc.rules)
		rs := tr.(*rules)

		properties.Property(tc.name+" backward covers input", prop.ForAll(
			func(src, dst, sport, dport int) bool {
				x := cube(src, dst, sport, dport)
				return f.Implies(x, tr.Backward(tr.Forward(x)))
			},
			gens...,
		))

		properties.Property(tc.name+" backward of the fired rule is exact", prop.ForAll(
			func(src, dst, sport, dport int) bool {
				x := cube(src, dst, sport, dport)
				fwd := tr.Forward(x)
				back := tr.Backward(fwd)
				for i, r := range rs.rules {
					if !f.Implies(x, rs.exclusive[i]) {
						continue
					}
					if !f.Implies(fwd, r.Values) {
						return false
					}
					if r.Name == "clients" && !f.Implies(fwd, pool) {
						return false
					}
					return f.Equal(f.Exist(x, r.Fields...), f.Exist(f.And(back, rs.exclusive[i]), r.Fields...))
				}
				return f.Equal(x, fwd) && f.Equal(x, f.And(back, rs.unmatched))
			},
			gens...,
		))
	}

	properties.TestingRun(t)
}

func TestPoolTranslation(t *testing.T) {
	f := newFactory(t)
	out, err := Outgoing(f, testDevice(), "outside")
	require.NoError(t, err)
	tr := Transition(f, out)

	x := f.Cube(hdr("10.0.0.100", "198.51.100.2", 40000, 443))
	fwd := tr.Forward(x)
	pool := f.IPRange(bdd.SrcIP, netipx.IPRangeFrom(
		netip.MustParseAddr("203.0.113.10"), netip.MustParseAddr("203.0.113.11")))
	assert.True(t, f.Implies(fwd, pool))
	assert.Equal(t, "2", f.SatCount(fwd).String(), "one header per pool address")
	assert.True(t, f.Equal(f.Exist(x, bdd.SrcIP), f.Exist(fwd, bdd.SrcIP)), "only the source address changes")
}
