// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"net/netip"
	"strings"

	"grimm.is/reachability/internal/validation"
)

// ValidationError represents a snapshot validation error.
type ValidationError struct {
	Field    string
	Message  string
	Severity string // "error" (default), "warning"
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if any entry is not a warning.
func (e ValidationErrors) HasErrors() bool {
	for _, err := range e {
		if err.Severity != "warning" {
			return true
		}
	}
	return false
}

// Validate checks names, references and value syntax across the snapshot.
// A snapshot that validates cleanly never trips a graph integrity assertion.
func (n *Network) Validate() ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool)
	for i := range n.Devices {
		d := &n.Devices[i]
		field := fmt.Sprintf("device[%s]", d.Hostname)
		if err := validation.ValidateIdentifier(d.Hostname); err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("device[%d]", i), Message: err.Error()})
		}
		if seen[d.Hostname] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate hostname"})
		}
		seen[d.Hostname] = true
		errs = append(errs, d.validate(field)...)
	}

	errs = append(errs, n.validateLinks()...)
	return errs
}

func (d *Device) validate(field string) ValidationErrors {
	var errs ValidationErrors

	vrfs := map[string]bool{DefaultVRF: true}
	for _, v := range d.VRFs {
		if err := validation.ValidateIdentifier(v.Name); err != nil {
			errs = append(errs, ValidationError{Field: field + ".vrf", Message: err.Error()})
		}
		vrfs[v.Name] = true
	}

	errs = append(errs, d.validateInterfaces(field, vrfs)...)
	errs = append(errs, d.validateACLs(field)...)
	errs = append(errs, d.validateNAT(field)...)
	errs = append(errs, d.validateRoutes(field, vrfs)...)
	return errs
}

func (d *Device) validateInterfaces(field string, vrfs map[string]bool) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool)
	for _, iface := range d.Interfaces {
		f := fmt.Sprintf("%s.interface[%s]", field, iface.Name)
		if err := validation.ValidateInterfaceName(iface.Name); err != nil {
			errs = append(errs, ValidationError{Field: f, Message: err.Error()})
		}
		if seen[iface.Name] {
			errs = append(errs, ValidationError{Field: f, Message: "duplicate interface"})
		}
		seen[iface.Name] = true

		if !vrfs[iface.VRFName()] {
			errs = append(errs, ValidationError{Field: f + ".vrf", Message: fmt.Sprintf("undefined vrf %q", iface.VRF)})
		}
		for _, addr := range iface.IPv4 {
			if _, err := validation.ParseInterfaceAddress(addr); err != nil {
				errs = append(errs, ValidationError{Field: f + ".ipv4", Message: err.Error()})
			}
		}
		for attr, acl := range map[string]string{"acl_in": iface.ACLIn, "acl_out": iface.ACLOut} {
			if acl == "" {
				continue
			}
			if _, ok := d.ACL(acl); !ok {
				errs = append(errs, ValidationError{Field: f + "." + attr, Message: fmt.Sprintf("undefined acl %q", acl)})
			}
		}
	}
	return errs
}

func (d *Device) validateACLs(field string) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool)
	for _, acl := range d.ACLs {
		f := fmt.Sprintf("%s.acl[%s]", field, acl.Name)
		if err := validation.ValidateIdentifier(acl.Name); err != nil {
			errs = append(errs, ValidationError{Field: f, Message: err.Error()})
		}
		if seen[acl.Name] {
			errs = append(errs, ValidationError{Field: f, Message: "duplicate acl"})
		}
		seen[acl.Name] = true

		for i, line := range acl.Lines {
			lf := fmt.Sprintf("%s.line[%d]", f, i)
			if line.Action != ActionPermit && line.Action != ActionDeny {
				errs = append(errs, ValidationError{Field: lf + ".action", Message: fmt.Sprintf("invalid action %q (must be permit or deny)", line.Action)})
			}
			errs = append(errs, validateHeaderSpace(lf, line.HeaderSpace())...)
			for _, name := range line.SrcInterface {
				if _, ok := d.Interface(name); !ok {
					errs = append(errs, ValidationError{Field: lf + ".src_interface", Message: fmt.Sprintf("undefined interface %q", name)})
				}
			}
			for _, ref := range line.PermittedBy {
				if _, ok := d.ACL(ref); !ok {
					errs = append(errs, ValidationError{Field: lf + ".permitted_by", Message: fmt.Sprintf("undefined acl %q", ref)})
				}
			}
		}
	}

	// permitted_by references must not form a cycle.
	state := make(map[string]int)
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case 1:
			return true
		case 2:
			return false
		}
		state[name] = 1
		if acl, ok := d.ACL(name); ok {
			for _, line := range acl.Lines {
				for _, ref := range line.PermittedBy {
					if visit(ref) {
						return true
					}
				}
			}
		}
		state[name] = 2
		return false
	}
	for _, acl := range d.ACLs {
		if state[acl.Name] == 0 && visit(acl.Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.acl[%s]", field, acl.Name),
				Message: "permitted_by references form a cycle",
			})
		}
	}
	return errs
}

func validateHeaderSpace(field string, hs HeaderSpace) ValidationErrors {
	var errs ValidationErrors
	for attr, vals := range map[string][]string{
		"src_ip": hs.SrcIP, "dst_ip": hs.DstIP, "not_src_ip": hs.NotSrcIP, "not_dst_ip": hs.NotDstIP,
	} {
		for _, v := range vals {
			if _, err := validation.ParseIPRange(v); err != nil {
				errs = append(errs, ValidationError{Field: field + "." + attr, Message: err.Error()})
			}
		}
	}
	for _, v := range hs.Protocol {
		if _, err := validation.ParseProtocol(v); err != nil {
			errs = append(errs, ValidationError{Field: field + ".protocol", Message: err.Error()})
		}
	}
	for attr, vals := range map[string][]string{"src_port": hs.SrcPort, "dst_port": hs.DstPort} {
		for _, v := range vals {
			if _, _, err := validation.ParsePortRange(v); err != nil {
				errs = append(errs, ValidationError{Field: field + "." + attr, Message: err.Error()})
			}
		}
	}
	return errs
}

func (d *Device) validateNAT(field string) ValidationErrors {
	var errs ValidationErrors

	for _, pool := range d.NATPools {
		f := fmt.Sprintf("%s.nat_pool[%s]", field, pool.Name)
		if _, err := validation.ParseIPRange(pool.Range); err != nil {
			errs = append(errs, ValidationError{Field: f + ".range", Message: err.Error()})
		}
	}

	for _, rule := range d.NAT {
		f := fmt.Sprintf("%s.nat[%s]", field, rule.Name)
		if err := validation.ValidateAllowlist(rule.Type, []string{NATTypeSNAT, NATTypeDNAT, NATTypeMasquerade}); err != nil {
			errs = append(errs, ValidationError{Field: f + ".type", Message: err.Error()})
			continue
		}

		switch rule.Type {
		case NATTypeDNAT:
			if rule.InInterface == "" {
				errs = append(errs, ValidationError{Field: f, Message: "dnat requires in_interface"})
			}
			if rule.Pool == "" && rule.ToIP == "" && rule.ToPort == "" {
				errs = append(errs, ValidationError{Field: f, Message: "dnat requires pool, to_ip or to_port"})
			}
		case NATTypeSNAT:
			if rule.OutInterface == "" {
				errs = append(errs, ValidationError{Field: f, Message: "snat requires out_interface"})
			}
			if rule.Pool == "" && rule.ToIP == "" && rule.ToPort == "" {
				errs = append(errs, ValidationError{Field: f, Message: "snat requires pool, to_ip or to_port"})
			}
		case NATTypeMasquerade:
			if rule.OutInterface == "" {
				errs = append(errs, ValidationError{Field: f, Message: "masquerade requires out_interface"})
			} else if iface, ok := d.Interface(rule.OutInterface); ok && len(iface.IPv4) == 0 {
				errs = append(errs, ValidationError{Field: f, Message: fmt.Sprintf("masquerade interface %q has no address", iface.Name)})
			}
		}

		for attr, name := range map[string]string{"in_interface": rule.InInterface, "out_interface": rule.OutInterface} {
			if name == "" {
				continue
			}
			if _, ok := d.Interface(name); !ok {
				errs = append(errs, ValidationError{Field: f + "." + attr, Message: fmt.Sprintf("undefined interface %q", name)})
			}
		}
		if rule.Pool != "" {
			if _, ok := d.Pool(rule.Pool); !ok {
				errs = append(errs, ValidationError{Field: f + ".pool", Message: fmt.Sprintf("undefined nat pool %q", rule.Pool)})
			}
		}
		if rule.ToIP != "" {
			if _, err := validation.ParseIPRange(rule.ToIP); err != nil {
				errs = append(errs, ValidationError{Field: f + ".to_ip", Message: err.Error()})
			}
		}
		if rule.ToPort != "" {
			if _, _, err := validation.ParsePortRange(rule.ToPort); err != nil {
				errs = append(errs, ValidationError{Field: f + ".to_port", Message: err.Error()})
			}
		}
		if rule.Match != nil {
			errs = append(errs, validateHeaderSpace(f+".match", *rule.Match)...)
		}
	}
	return errs
}

func (d *Device) validateRoutes(field string, vrfs map[string]bool) ValidationErrors {
	var errs ValidationErrors
	for _, r := range d.Routes {
		f := fmt.Sprintf("%s.route[%s]", field, r.Prefix)
		if _, err := validation.ParsePrefix(r.Prefix); err != nil {
			errs = append(errs, ValidationError{Field: f, Message: err.Error()})
		}
		if !vrfs[r.VRFName()] {
			errs = append(errs, ValidationError{Field: f + ".vrf", Message: fmt.Sprintf("undefined vrf %q", r.VRF)})
		}
		if r.NextHop == "" && r.Interface == "" && !r.Null {
			errs = append(errs, ValidationError{Field: f, Message: "route needs next_hop, interface or null"})
		}
		if r.Null && (r.NextHop != "" || r.Interface != "") {
			errs = append(errs, ValidationError{Field: f, Message: "null route cannot have a next hop or interface", Severity: "warning"})
		}
		if r.NextHop != "" {
			if a, err := netip.ParseAddr(r.NextHop); err != nil || !a.Is4() {
				errs = append(errs, ValidationError{Field: f + ".next_hop", Message: fmt.Sprintf("invalid IPv4 next hop %q", r.NextHop)})
			}
		}
		if r.Interface != "" {
			if iface, ok := d.Interface(r.Interface); !ok {
				errs = append(errs, ValidationError{Field: f + ".interface", Message: fmt.Sprintf("undefined interface %q", r.Interface)})
			} else if iface.VRFName() != r.VRFName() {
				errs = append(errs, ValidationError{Field: f + ".interface", Message: fmt.Sprintf("interface %q is not in vrf %q", r.Interface, r.VRFName())})
			}
		}
	}
	return errs
}

func (n *Network) validateLinks() ValidationErrors {
	var errs ValidationErrors
	for i, l := range n.Links {
		f := fmt.Sprintf("link[%d]", i)
		for _, end := range [][2]string{{l.Node1, l.Iface1}, {l.Node2, l.Iface2}} {
			d, ok := n.Device(end[0])
			if !ok {
				errs = append(errs, ValidationError{Field: f, Message: fmt.Sprintf("undefined device %q", end[0])})
				continue
			}
			iface, ok := d.Interface(end[1])
			if !ok {
				errs = append(errs, ValidationError{Field: f, Message: fmt.Sprintf("undefined interface %s:%s", end[0], end[1])})
				continue
			}
			if iface.Disabled {
				errs = append(errs, ValidationError{Field: f, Message: fmt.Sprintf("interface %s:%s is disabled", end[0], end[1]), Severity: "warning"})
			}
		}
		if l.Node1 == l.Node2 && l.Iface1 == l.Iface2 {
			errs = append(errs, ValidationError{Field: f, Message: "link connects an interface to itself"})
		}
	}
	return errs
}
