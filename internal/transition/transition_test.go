// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transition

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/bdd"
)

func newFactory(t *testing.T) *bdd.Factory {
	t.Helper()
	f, err := bdd.New(bdd.TagBits(4), bdd.NodeSize(1<<12), bdd.CacheSize(1<<10))
	require.NoError(t, err)
	return f
}

func TestConstraint(t *testing.T) {
	f := newFactory(t)
	pred := f.Value(bdd.DstPort, 80)
	c := Constraint(f, pred)

	assert.True(t, f.Equal(pred, c.Forward(f.One())))
	assert.True(t, f.Equal(pred, c.Backward(f.One())))
	assert.IsType(t, identity{}, Constraint(f, f.One()))
	assert.True(t, IsZero(Constraint(f, f.Zero())))
}

func TestAssign(t *testing.T) {
	f := newFactory(t)
	a := AssignValue(f, bdd.SrcInterface, 3)

	in := f.And(f.Value(bdd.DstPort, 22), f.Value(bdd.SrcInterface, 7))
	out := a.Forward(in)
	assert.True(t, f.Equal(f.And(f.Value(bdd.DstPort, 22), f.Value(bdd.SrcInterface, 3)), out))

	// Backward loses the erased field and returns every pre-image.
	assert.True(t, f.Equal(f.Value(bdd.DstPort, 22), a.Backward(out)))
	// Outputs incompatible with the assigned value have no pre-image.
	assert.True(t, f.IsZero(a.Backward(f.Value(bdd.SrcInterface, 5))))
}

func TestCompose(t *testing.T) {
	f := newFactory(t)
	web := f.Value(bdd.DstPort, 80)
	nat := Assign(f, f.Addr(bdd.DstIP, netip.MustParseAddr("10.0.0.5")), bdd.DstIP)
	c := Compose(f, Identity(), Constraint(f, web), nat)

	out := c.Forward(f.One())
	assert.True(t, f.Equal(f.And(web, f.Addr(bdd.DstIP, netip.MustParseAddr("10.0.0.5"))), out))
	assert.True(t, f.Equal(web, c.Backward(out)))

	assert.True(t, IsZero(Compose(f, nat, Zero(f))))
	assert.IsType(t, identity{}, Compose(f))
	assert.Equal(t, nat, Compose(f, Identity(), nat))
}

func TestOr(t *testing.T) {
	f := newFactory(t)
	a := Constraint(f, f.Value(bdd.DstPort, 80))
	b := Constraint(f, f.Value(bdd.DstPort, 443))
	o := Or(f, a, b, Zero(f))

	want := f.Or(f.Value(bdd.DstPort, 80), f.Value(bdd.DstPort, 443))
	assert.True(t, f.Equal(want, o.Forward(f.One())))
	assert.True(t, f.Equal(want, o.Backward(f.One())))
	assert.True(t, IsZero(Or(f)))
}

func TestDistributesOverUnion(t *testing.T) {
	f := newFactory(t)
	tr := Compose(f,
		Constraint(f, f.Range(bdd.DstPort, 0, 1023)),
		AssignValue(f, bdd.LastHop, 2),
	)
	x := f.Value(bdd.DstPort, 22)
	y := f.Value(bdd.DstPort, 8080)
	z := f.Value(bdd.DstPort, 443)

	assert.True(t, f.Equal(tr.Forward(f.Or(x, y, z)), f.Or(tr.Forward(x), tr.Forward(y), tr.Forward(z))))
	out := f.Or(f.Value(bdd.LastHop, 2), f.Value(bdd.LastHop, 3))
	assert.True(t, f.Equal(tr.Backward(out), f.Or(tr.Backward(f.Value(bdd.LastHop, 2)), tr.Backward(f.Value(bdd.LastHop, 3)))))
}

func TestTransform(t *testing.T) {
	f := newFactory(t)
	tr := Transform(f.Swap, f.Swap)
	h := bdd.Header{
		SrcIP: netip.MustParseAddr("1.1.1.1"), DstIP: netip.MustParseAddr("2.2.2.2"),
		SrcPort: 10, DstPort: 20, Protocol: 6,
	}
	out := tr.Forward(f.Cube(h))
	assert.True(t, f.Contains(out, bdd.Header{
		SrcIP: h.DstIP, DstIP: h.SrcIP, SrcPort: 20, DstPort: 10, Protocol: 6,
	}))
	assert.True(t, f.Equal(f.Cube(h), tr.Backward(out)))
}
