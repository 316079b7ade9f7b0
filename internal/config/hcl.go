// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// GenerateHCL renders a snapshot as formatted HCL that LoadHCL reads back unchanged.
func GenerateHCL(net *Network) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	if net.SchemaVersion != "" {
		body.SetAttributeValue("schema_version", cty.StringVal(net.SchemaVersion))
	}
	for i := range net.Devices {
		body.AppendNewline()
		appendDevice(body, &net.Devices[i])
	}
	for _, l := range net.Links {
		body.AppendNewline()
		lb := body.AppendNewBlock("link", nil).Body()
		lb.SetAttributeValue("node1", cty.StringVal(l.Node1))
		lb.SetAttributeValue("iface1", cty.StringVal(l.Iface1))
		lb.SetAttributeValue("node2", cty.StringVal(l.Node2))
		lb.SetAttributeValue("iface2", cty.StringVal(l.Iface2))
	}
	return hclwrite.Format(f.Bytes()), nil
}

func appendDevice(parent *hclwrite.Body, d *Device) {
	body := parent.AppendNewBlock("device", []string{d.Hostname}).Body()

	for _, v := range d.VRFs {
		body.AppendNewBlock("vrf", []string{v.Name})
	}

	for _, iface := range d.Interfaces {
		ib := body.AppendNewBlock("interface", []string{iface.Name}).Body()
		setString(ib, "vrf", iface.VRF)
		setList(ib, "ipv4", iface.IPv4)
		setString(ib, "acl_in", iface.ACLIn)
		setString(ib, "acl_out", iface.ACLOut)
		if iface.Stateful {
			ib.SetAttributeValue("stateful", cty.True)
		}
		if iface.Disabled {
			ib.SetAttributeValue("disabled", cty.True)
		}
	}

	for _, acl := range d.ACLs {
		ab := body.AppendNewBlock("acl", []string{acl.Name}).Body()
		for _, line := range acl.Lines {
			lb := ab.AppendNewBlock("line", []string{line.Name}).Body()
			lb.SetAttributeValue("action", cty.StringVal(line.Action))
			setHeaderSpace(lb, line.HeaderSpace())
			setList(lb, "src_interface", line.SrcInterface)
			setList(lb, "permitted_by", line.PermittedBy)
		}
	}

	for _, pool := range d.NATPools {
		pb := body.AppendNewBlock("nat_pool", []string{pool.Name}).Body()
		pb.SetAttributeValue("range", cty.StringVal(pool.Range))
	}

	for _, rule := range d.NAT {
		nb := body.AppendNewBlock("nat", []string{rule.Name}).Body()
		nb.SetAttributeValue("type", cty.StringVal(rule.Type))
		setString(nb, "in_interface", rule.InInterface)
		setString(nb, "out_interface", rule.OutInterface)
		setString(nb, "pool", rule.Pool)
		setString(nb, "to_ip", rule.ToIP)
		setString(nb, "to_port", rule.ToPort)
		if rule.Match != nil {
			setHeaderSpace(nb.AppendNewBlock("match", nil).Body(), *rule.Match)
		}
	}

	for _, r := range d.Routes {
		rb := body.AppendNewBlock("route", []string{r.Prefix}).Body()
		setString(rb, "vrf", r.VRF)
		setString(rb, "next_hop", r.NextHop)
		setString(rb, "interface", r.Interface)
		if r.Null {
			rb.SetAttributeValue("null", cty.True)
		}
	}
}

func setHeaderSpace(body *hclwrite.Body, hs HeaderSpace) {
	setList(body, "src_ip", hs.SrcIP)
	setList(body, "dst_ip", hs.DstIP)
	setList(body, "not_src_ip", hs.NotSrcIP)
	setList(body, "not_dst_ip", hs.NotDstIP)
	setList(body, "protocol", hs.Protocol)
	setList(body, "src_port", hs.SrcPort)
	setList(body, "dst_port", hs.DstPort)
}

func setString(body *hclwrite.Body, name, val string) {
	if val != "" {
		body.SetAttributeValue(name, cty.StringVal(val))
	}
}

func setList(body *hclwrite.Body, name string, vals []string) {
	if len(vals) > 0 {
		body.SetAttributeValue(name, toCtyStringList(vals))
	}
}

func toCtyStringList(strs []string) cty.Value {
	vals := make([]cty.Value, len(strs))
	for i, s := range strs {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}
