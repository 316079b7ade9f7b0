// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package validation parses and validates the scalar values found in network snapshots.
package validation

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"go4.org/netipx"

	"grimm.is/reachability/internal/errors"
)

var (
	// Device interface names include slashes and colons (GigabitEthernet0/0/1.100, xe-0/0/0:1).
	interfaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_./:-]{1,64}$`)

	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// Protocols maps protocol names accepted in snapshots to IP protocol numbers.
var Protocols = map[string]uint8{
	"icmp": 1,
	"igmp": 2,
	"tcp":  6,
	"udp":  17,
	"gre":  47,
	"esp":  50,
	"ah":   51,
	"ospf": 89,
	"sctp": 132,
}

// ValidateInterfaceName validates a device interface name
func ValidateInterfaceName(name string) error {
	if name == "" {
		return errors.New(errors.KindValidation, "interface name cannot be empty")
	}
	if !interfaceNameRegex.MatchString(name) {
		return errors.Errorf(errors.KindValidation, "invalid interface name: %s", name)
	}
	return nil
}

// ValidateIdentifier validates hostnames, VRF, ACL and pool names.
func ValidateIdentifier(id string) error {
	if id == "" {
		return errors.New(errors.KindValidation, "identifier cannot be empty")
	}
	if len(id) > 255 {
		return errors.New(errors.KindValidation, "identifier too long (max 255 characters)")
	}
	if !identifierRegex.MatchString(id) {
		return errors.Errorf(errors.KindValidation, "invalid identifier: %s (must be alphanumeric with -_.)", id)
	}
	return nil
}

// ParsePrefix parses an IPv4 CIDR. A bare address is read as a host prefix.
func ParsePrefix(s string) (netip.Prefix, error) {
	if s == "" {
		return netip.Prefix{}, errors.New(errors.KindValidation, "prefix cannot be empty")
	}
	var p netip.Prefix
	if strings.Contains(s, "/") {
		var err error
		p, err = netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, errors.Wrap(err, errors.KindValidation, "invalid CIDR")
		}
	} else {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, errors.Wrap(err, errors.KindValidation, "invalid IP address")
		}
		p = netip.PrefixFrom(a, a.BitLen())
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, errors.Errorf(errors.KindUnsupported, "only IPv4 is modeled: %s", s)
	}
	return p, nil
}

// ParseInterfaceAddress parses "10.0.0.1/30" keeping the host bits.
func ParseInterfaceAddress(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, errors.Wrap(err, errors.KindValidation, "invalid interface address")
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, errors.Errorf(errors.KindUnsupported, "only IPv4 is modeled: %s", s)
	}
	return p, nil
}

// ParseIPRange parses "a.b.c.d-e.f.g.h", a CIDR, or a single address.
func ParseIPRange(s string) (netipx.IPRange, error) {
	if from, to, ok := strings.Cut(s, "-"); ok {
		r, err := netipx.ParseIPRange(strings.TrimSpace(from) + "-" + strings.TrimSpace(to))
		if err != nil {
			return netipx.IPRange{}, errors.Wrap(err, errors.KindValidation, "invalid IP range")
		}
		if !r.From().Is4() {
			return netipx.IPRange{}, errors.Errorf(errors.KindUnsupported, "only IPv4 is modeled: %s", s)
		}
		return r, nil
	}
	p, err := ParsePrefix(s)
	if err != nil {
		return netipx.IPRange{}, err
	}
	return netipx.RangeOfPrefix(p.Masked()), nil
}

// ParsePortRange parses "80" or "1024-65535".
func ParsePortRange(s string) (lo, hi uint16, err error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		to = from
	}
	l, err := parsePort(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, err
	}
	h, err := parsePort(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, err
	}
	if l > h {
		return 0, 0, errors.Errorf(errors.KindValidation, "invalid port range: %s (low exceeds high)", s)
	}
	return l, h, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, errors.Errorf(errors.KindValidation, "invalid port number: %q (must be 0-65535)", s)
	}
	return uint16(n), nil
}

// ParseProtocol accepts a protocol name or number.
func ParseProtocol(proto string) (uint8, error) {
	p := strings.ToLower(strings.TrimSpace(proto))
	if n, ok := Protocols[p]; ok {
		return n, nil
	}
	n, err := strconv.ParseUint(p, 10, 8)
	if err != nil {
		return 0, errors.Errorf(errors.KindValidation, "invalid protocol: %s", proto)
	}
	return uint8(n), nil
}

// ValidateAllowlist checks if a value is in an allowed list
func ValidateAllowlist(value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Errorf(errors.KindValidation, "value not in allowlist: %s (must be one of: %s)", value, strings.Join(allowed, ", "))
}
