// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"fmt"
	"net/netip"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/validation"
)

// Packet represents a concrete IPv4 header to test against an answer.
type Packet struct {
	SrcIP    string `json:"src_ip"`
	DstIP    string `json:"dst_ip"`
	SrcPort  int    `json:"src_port,omitempty"`
	DstPort  int    `json:"dst_port,omitempty"`
	Protocol string `json:"protocol"` // tcp, udp, icmp or a number
}

func (p Packet) String() string {
	return fmt.Sprintf("%s %s:%d -> %s:%d", p.Protocol, p.SrcIP, p.SrcPort, p.DstIP, p.DstPort)
}

// Header parses the packet into a BDD header.
func (p Packet) Header() (bdd.Header, error) {
	src, err := parseAddr("src_ip", p.SrcIP)
	if err != nil {
		return bdd.Header{}, err
	}
	dst, err := parseAddr("dst_ip", p.DstIP)
	if err != nil {
		return bdd.Header{}, err
	}
	proto, err := validation.ParseProtocol(p.Protocol)
	if err != nil {
		return bdd.Header{}, errors.Attr(err, "field", "protocol")
	}
	for _, port := range []int{p.SrcPort, p.DstPort} {
		if port < 0 || port > 65535 {
			return bdd.Header{}, errors.Errorf(errors.KindValidation, "invalid port number: %d", port)
		}
	}
	return bdd.Header{
		SrcIP:    src,
		DstIP:    dst,
		SrcPort:  uint16(p.SrcPort),
		DstPort:  uint16(p.DstPort),
		Protocol: proto,
	}, nil
}

func parseAddr(field, s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return netip.Addr{}, errors.Attr(errors.Errorf(errors.KindValidation, "invalid IPv4 address: %q", s), "field", field)
	}
	return a, nil
}
