// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import "grimm.is/reachability/internal/config"

// TwoNodes is a single /30 between a and b.
func TwoNodes() *config.Network {
	return &config.Network{
		Devices: []config.Device{
			{Hostname: "a", Interfaces: []config.Interface{{Name: "eth0", IPv4: []string{"10.0.0.1/30"}}}},
			{Hostname: "b", Interfaces: []config.Interface{{Name: "eth0", IPv4: []string{"10.0.0.2/30"}}}},
		},
		Links: []config.Link{{Node1: "a", Iface1: "eth0", Node2: "b", Iface2: "eth0"}},
	}
}

// StaticLoop is TwoNodes where each side routes 192.0.2.0/24 to the other.
func StaticLoop() *config.Network {
	net := TwoNodes()
	net.Devices[0].Routes = []config.Route{{Prefix: "192.0.2.0/24", NextHop: "10.0.0.2"}}
	net.Devices[1].Routes = []config.Route{{Prefix: "192.0.2.0/24", NextHop: "10.0.0.1"}}
	return net
}

// ThreeNodes puts a router r between client a and server b. Inbound traffic
// on r1 is denied; replies only get back to a through a session on r. With
// snat, r hides a behind 203.0.113.1 towards b.
func ThreeNodes(stateful bool, snat bool) *config.Network {
	net := &config.Network{
		Devices: []config.Device{
			{
				Hostname:   "a",
				Interfaces: []config.Interface{{Name: "eth0", IPv4: []string{"10.0.1.1/30"}}},
				Routes:     []config.Route{{Prefix: "10.0.2.0/30", NextHop: "10.0.1.2"}},
			},
			{
				Hostname: "r",
				Interfaces: []config.Interface{
					{Name: "r0", IPv4: []string{"10.0.1.2/30"}, Stateful: stateful},
					{Name: "r1", IPv4: []string{"10.0.2.1/30"}, ACLIn: "BLOCK"},
				},
				ACLs: []config.ACL{{Name: "BLOCK", Lines: []config.ACLLine{{Name: "all", Action: config.ActionDeny}}}},
			},
			{
				Hostname:   "b",
				Interfaces: []config.Interface{{Name: "eth0", IPv4: []string{"10.0.2.2/30"}}},
				Routes: []config.Route{
					{Prefix: "10.0.1.0/30", NextHop: "10.0.2.1"},
					{Prefix: "203.0.113.0/24", NextHop: "10.0.2.1"},
				},
			},
		},
		Links: []config.Link{
			{Node1: "a", Iface1: "eth0", Node2: "r", Iface2: "r0"},
			{Node1: "r", Iface1: "r1", Node2: "b", Iface2: "eth0"},
		},
	}
	if snat {
		net.Devices[1].NAT = []config.NATRule{{Name: "hide", Type: config.NATTypeSNAT, OutInterface: "r1", ToIP: "203.0.113.1"}}
	}
	return net
}

// NoSSH installs an ingress ACL on b's eth0 denying tcp/22 and permitting
// the rest.
func NoSSH(net *config.Network) *config.Network {
	dev, _ := net.Device("b")
	dev.Interfaces[0].ACLIn = "EDGE"
	dev.ACLs = append(dev.ACLs, config.ACL{
		Name: "EDGE",
		Lines: []config.ACLLine{
			{Name: "no-ssh", Action: config.ActionDeny, Protocol: []string{"tcp"}, DstPort: []string{"22"}},
			{Name: "rest", Action: config.ActionPermit},
		},
	})
	return net
}
