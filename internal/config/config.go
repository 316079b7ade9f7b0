// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config holds the network snapshot consumed by the reachability engine.
package config

// CurrentSchemaVersion defines the current schema version of the snapshot format.
const CurrentSchemaVersion = "1.0"

// DefaultVRF is the VRF an interface or route belongs to when none is named.
const DefaultVRF = "default"

// Network is the top-level snapshot: devices and the layer-3 links between them.
type Network struct {
	// @default: "1.0"
	SchemaVersion string   `hcl:"schema_version,optional" json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	Devices       []Device `hcl:"device,block" json:"device,omitempty" yaml:"devices,omitempty"`
	Links         []Link   `hcl:"link,block" json:"link,omitempty" yaml:"links,omitempty"`
}

// Device is one router or firewall.
type Device struct {
	Hostname   string      `hcl:"hostname,label" json:"hostname" yaml:"hostname"`
	VRFs       []VRF       `hcl:"vrf,block" json:"vrf,omitempty" yaml:"vrfs,omitempty"`
	Interfaces []Interface `hcl:"interface,block" json:"interface,omitempty" yaml:"interfaces,omitempty"`
	ACLs       []ACL       `hcl:"acl,block" json:"acl,omitempty" yaml:"acls,omitempty"`
	NATPools   []NATPool   `hcl:"nat_pool,block" json:"nat_pool,omitempty" yaml:"nat_pools,omitempty"`
	NAT        []NATRule   `hcl:"nat,block" json:"nat,omitempty" yaml:"nat,omitempty"`
	Routes     []Route     `hcl:"route,block" json:"route,omitempty" yaml:"routes,omitempty"`
}

// VRF declares a routing instance. The default VRF always exists.
type VRF struct {
	Name string `hcl:"name,label" json:"name" yaml:"name"`
}

// Interface is a layer-3 interface.
type Interface struct {
	Name string `hcl:"name,label" json:"name" yaml:"name"`
	// @default: "default"
	VRF string `hcl:"vrf,optional" json:"vrf,omitempty" yaml:"vrf,omitempty"`
	// Interface addresses with prefix length, e.g. "10.0.0.1/30".
	IPv4   []string `hcl:"ipv4,optional" json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	ACLIn  string   `hcl:"acl_in,optional" json:"acl_in,omitempty" yaml:"acl_in,omitempty"`
	ACLOut string   `hcl:"acl_out,optional" json:"acl_out,omitempty" yaml:"acl_out,omitempty"`
	// Stateful interfaces create firewall sessions for flows they forward.
	Stateful bool `hcl:"stateful,optional" json:"stateful,omitempty" yaml:"stateful,omitempty"`
	Disabled bool `hcl:"disabled,optional" json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// VRFName returns the interface's VRF, defaulting to DefaultVRF.
func (i Interface) VRFName() string {
	if i.VRF == "" {
		return DefaultVRF
	}
	return i.VRF
}

// ACL is an ordered list of lines. The first matching line decides; unmatched traffic is denied.
type ACL struct {
	Name  string    `hcl:"name,label" json:"name" yaml:"name"`
	Lines []ACLLine `hcl:"line,block" json:"line,omitempty" yaml:"lines,omitempty"`
}

// Line actions.
const (
	ActionPermit = "permit"
	ActionDeny   = "deny"
)

// ACLLine matches a header space, optional ingress interfaces and optional
// references to other ACLs that must also permit the traffic.
type ACLLine struct {
	Name   string `hcl:"name,label" json:"name" yaml:"name"`
	Action string `hcl:"action" json:"action" yaml:"action"`

	SrcIP    []string `hcl:"src_ip,optional" json:"src_ip,omitempty" yaml:"src_ip,omitempty"`
	DstIP    []string `hcl:"dst_ip,optional" json:"dst_ip,omitempty" yaml:"dst_ip,omitempty"`
	NotSrcIP []string `hcl:"not_src_ip,optional" json:"not_src_ip,omitempty" yaml:"not_src_ip,omitempty"`
	NotDstIP []string `hcl:"not_dst_ip,optional" json:"not_dst_ip,omitempty" yaml:"not_dst_ip,omitempty"`
	Protocol []string `hcl:"protocol,optional" json:"protocol,omitempty" yaml:"protocol,omitempty"`
	SrcPort  []string `hcl:"src_port,optional" json:"src_port,omitempty" yaml:"src_port,omitempty"`
	DstPort  []string `hcl:"dst_port,optional" json:"dst_port,omitempty" yaml:"dst_port,omitempty"`

	SrcInterface []string `hcl:"src_interface,optional" json:"src_interface,omitempty" yaml:"src_interface,omitempty"`
	PermittedBy  []string `hcl:"permitted_by,optional" json:"permitted_by,omitempty" yaml:"permitted_by,omitempty"`
}

// HeaderSpace returns the header constraints of the line.
func (l ACLLine) HeaderSpace() HeaderSpace {
	return HeaderSpace{
		SrcIP:    l.SrcIP,
		DstIP:    l.DstIP,
		NotSrcIP: l.NotSrcIP,
		NotDstIP: l.NotDstIP,
		Protocol: l.Protocol,
		SrcPort:  l.SrcPort,
		DstPort:  l.DstPort,
	}
}

// HeaderSpace is a conjunction of per-field constraints. Empty lists match anything.
type HeaderSpace struct {
	SrcIP    []string `hcl:"src_ip,optional" json:"src_ip,omitempty" yaml:"src_ip,omitempty"`
	DstIP    []string `hcl:"dst_ip,optional" json:"dst_ip,omitempty" yaml:"dst_ip,omitempty"`
	NotSrcIP []string `hcl:"not_src_ip,optional" json:"not_src_ip,omitempty" yaml:"not_src_ip,omitempty"`
	NotDstIP []string `hcl:"not_dst_ip,optional" json:"not_dst_ip,omitempty" yaml:"not_dst_ip,omitempty"`
	Protocol []string `hcl:"protocol,optional" json:"protocol,omitempty" yaml:"protocol,omitempty"`
	SrcPort  []string `hcl:"src_port,optional" json:"src_port,omitempty" yaml:"src_port,omitempty"`
	DstPort  []string `hcl:"dst_port,optional" json:"dst_port,omitempty" yaml:"dst_port,omitempty"`
}

// NATPool is a named range of translation addresses.
type NATPool struct {
	Name string `hcl:"name,label" json:"name" yaml:"name"`
	// "203.0.113.10-203.0.113.20", a CIDR, or a single address.
	Range string `hcl:"range" json:"range" yaml:"range"`
}

// NAT rule types.
const (
	NATTypeSNAT       = "snat"
	NATTypeDNAT       = "dnat"
	NATTypeMasquerade = "masquerade"
)

// NATRule translates matching traffic. Source rules (snat, masquerade) apply at
// egress on OutInterface; dnat rules apply at ingress on InInterface. Within one
// interface the first matching rule wins.
type NATRule struct {
	Name string `hcl:"name,label" json:"name" yaml:"name"`
	// @enum: snat, dnat, masquerade
	Type         string       `hcl:"type" json:"type" yaml:"type"`
	InInterface  string       `hcl:"in_interface,optional" json:"in_interface,omitempty" yaml:"in_interface,omitempty"`
	OutInterface string       `hcl:"out_interface,optional" json:"out_interface,omitempty" yaml:"out_interface,omitempty"`
	Pool         string       `hcl:"pool,optional" json:"pool,omitempty" yaml:"pool,omitempty"`
	ToIP         string       `hcl:"to_ip,optional" json:"to_ip,omitempty" yaml:"to_ip,omitempty"`
	ToPort       string       `hcl:"to_port,optional" json:"to_port,omitempty" yaml:"to_port,omitempty"`
	Match        *HeaderSpace `hcl:"match,block" json:"match,omitempty" yaml:"match,omitempty"`
}

// Route is a static route. Exactly one of NextHop, Interface or Null is usually
// set; NextHop and Interface may be combined.
type Route struct {
	Prefix    string `hcl:"prefix,label" json:"prefix" yaml:"prefix"`
	VRF       string `hcl:"vrf,optional" json:"vrf,omitempty" yaml:"vrf,omitempty"`
	NextHop   string `hcl:"next_hop,optional" json:"next_hop,omitempty" yaml:"next_hop,omitempty"`
	Interface string `hcl:"interface,optional" json:"interface,omitempty" yaml:"interface,omitempty"`
	Null      bool   `hcl:"null,optional" json:"null,omitempty" yaml:"null,omitempty"`
}

// VRFName returns the route's VRF, defaulting to DefaultVRF.
func (r Route) VRFName() string {
	if r.VRF == "" {
		return DefaultVRF
	}
	return r.VRF
}

// Link is a layer-3 adjacency between two interfaces. Links are bidirectional.
type Link struct {
	Node1  string `hcl:"node1" json:"node1" yaml:"node1"`
	Iface1 string `hcl:"iface1" json:"iface1" yaml:"iface1"`
	Node2  string `hcl:"node2" json:"node2" yaml:"node2"`
	Iface2 string `hcl:"iface2" json:"iface2" yaml:"iface2"`
}

// Device returns the device with the given hostname.
func (n *Network) Device(hostname string) (*Device, bool) {
	for i := range n.Devices {
		if n.Devices[i].Hostname == hostname {
			return &n.Devices[i], true
		}
	}
	return nil, false
}

// VRFNames lists the declared VRFs plus DefaultVRF and any VRF referenced by an interface.
func (d *Device) VRFNames() []string {
	seen := map[string]bool{DefaultVRF: true}
	names := []string{DefaultVRF}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, v := range d.VRFs {
		add(v.Name)
	}
	for _, i := range d.Interfaces {
		add(i.VRFName())
	}
	return names
}

// Interface returns the interface with the given name.
func (d *Device) Interface(name string) (*Interface, bool) {
	for i := range d.Interfaces {
		if d.Interfaces[i].Name == name {
			return &d.Interfaces[i], true
		}
	}
	return nil, false
}

// ACL returns the ACL with the given name.
func (d *Device) ACL(name string) (*ACL, bool) {
	for i := range d.ACLs {
		if d.ACLs[i].Name == name {
			return &d.ACLs[i], true
		}
	}
	return nil, false
}

// Pool returns the NAT pool with the given name.
func (d *Device) Pool(name string) (*NATPool, bool) {
	for i := range d.NATPools {
		if d.NATPools[i].Name == name {
			return &d.NATPools[i], true
		}
	}
	return nil, false
}
