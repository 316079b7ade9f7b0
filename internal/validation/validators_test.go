// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package validation

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/errors"
)

func TestValidateInterfaceName(t *testing.T) {
	for _, name := range []string{"eth0", "GigabitEthernet0/0/1.100", "xe-0/0/0:1"} {
		assert.NoError(t, ValidateInterfaceName(name), name)
	}
	for _, name := range []string{"", "eth0;rm", "has space"} {
		assert.Error(t, ValidateInterfaceName(name), name)
	}
}

func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("core-r1.dc"))
	assert.Error(t, ValidateIdentifier(""))
	assert.Error(t, ValidateIdentifier("a/b"))
}

func TestParsePrefix(t *testing.T) {
	p, err := ParsePrefix("10.0.0.0/8")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), p)

	p, err = ParsePrefix("192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 32, p.Bits())

	_, err = ParsePrefix("2001:db8::/32")
	assert.Equal(t, errors.KindUnsupported, errors.GetKind(err))
	_, err = ParsePrefix("10.0.0.0/40")
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestParseInterfaceAddress(t *testing.T) {
	p, err := ParseInterfaceAddress("10.0.0.1/30")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", p.Addr().String())
	assert.Equal(t, 30, p.Bits())
	_, err = ParseInterfaceAddress("10.0.0.1")
	assert.Error(t, err)
}

func TestParseIPRange(t *testing.T) {
	r, err := ParseIPRange("203.0.113.10 - 203.0.113.20")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", r.From().String())
	assert.Equal(t, "203.0.113.20", r.To().String())

	r, err = ParseIPRange("198.51.100.0/30")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.3", r.To().String())

	_, err = ParseIPRange("10.0.0.9-10.0.0.1")
	assert.Error(t, err)
}

func TestParsePortRange(t *testing.T) {
	lo, hi, err := ParsePortRange("80")
	require.NoError(t, err)
	assert.Equal(t, [2]uint16{80, 80}, [2]uint16{lo, hi})

	lo, hi, err = ParsePortRange("1024-65535")
	require.NoError(t, err)
	assert.Equal(t, [2]uint16{1024, 65535}, [2]uint16{lo, hi})

	for _, bad := range []string{"", "http", "70000", "90-80"} {
		_, _, err := ParsePortRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseProtocol(t *testing.T) {
	n, err := ParseProtocol("TCP")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), n)
	n, err = ParseProtocol("112")
	require.NoError(t, err)
	assert.Equal(t, uint8(112), n)
	_, err = ParseProtocol("carrier-pigeon")
	assert.Error(t, err)
}

func TestValidateAllowlist(t *testing.T) {
	assert.NoError(t, ValidateAllowlist("snat", []string{"snat", "dnat"}))
	assert.Error(t, ValidateAllowlist("xnat", []string{"snat", "dnat"}))
}
