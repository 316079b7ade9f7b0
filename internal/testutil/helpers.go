// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package testutil holds small networks and helpers shared by package tests.
package testutil

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/location"
)

// TagBits is wide enough for every fixture network.
const TagBits = 6

// NewBDD returns a fresh factory sized for the fixture networks.
func NewBDD(t *testing.T) *bdd.Factory {
	t.Helper()
	f, err := bdd.New(bdd.TagBits(TagBits))
	require.NoError(t, err)
	return f
}

// From assigns prefix as the source space of one interface location.
func From(host, iface, prefix string) location.Assignment {
	return location.Assignment{{
		Locations: []location.Location{location.InterfaceLocation{Hostname: host, Iface: iface}},
		SrcIPs:    location.SetOf(netip.MustParsePrefix(prefix)),
	}}
}
