// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reach

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/forwarding"
	"grimm.is/reachability/internal/logging"
	"grimm.is/reachability/internal/state"
	"grimm.is/reachability/internal/testutil"
)

func newBDD(t *testing.T) *bdd.Factory {
	t.Helper()
	return testutil.NewBDD(t)
}

func build(t *testing.T, f *bdd.Factory, net *config.Network, opts ...Option) *Factory {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	fac, err := NewFactory(f, net, forwarding.FromConfig(net), opts...)
	require.NoError(t, err)
	return fac
}

func solver(f *bdd.Factory, fac *Factory) *Solver {
	return NewSolver(f, fac.Graph(), WithLogger(logging.Discard()))
}

func ip(f *bdd.Factory, field bdd.Field, s string) bdd.Node {
	return f.Addr(field, netip.MustParseAddr(s))
}

func prefix(f *bdd.Factory, field bdd.Field, s string) bdd.Node {
	return f.Prefix(field, netip.MustParsePrefix(s))
}

func at(host, iface string) state.Expr {
	return state.OriginateInterface{Hostname: host, Iface: iface}
}

func assertEqualNode(t *testing.T, f *bdd.Factory, want, got bdd.Node, msg string) {
	t.Helper()
	if got == nil {
		got = f.Zero()
	}
	require.True(t, f.Equal(want, got), msg)
}
