// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nat models ordered NAT rule lists as header-space transitions.
package nat

import (
	"grimm.is/reachability/internal/acl"
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/transition"
	"grimm.is/reachability/internal/validation"
)

// Rule is one compiled translation: headers in Guard have Fields rewritten to
// any assignment in Values.
type Rule struct {
	Name   string
	Guard  bdd.Node
	Fields []bdd.Field
	Values bdd.Node
}

// Compile builds the rule for r on dev.
func Compile(f *bdd.Factory, dev *config.Device, r config.NATRule) (Rule, error) {
	rule := Rule{Name: r.Name, Guard: f.One(), Values: f.One()}
	if r.Match != nil {
		g, err := acl.HeaderSpace(f, *r.Match)
		if err != nil {
			return Rule{}, errors.Wrapf(err, errors.GetKind(err), "nat rule %s", r.Name)
		}
		rule.Guard = g
	}

	ipField, portField := bdd.SrcIP, bdd.SrcPort
	if r.Type == config.NATTypeDNAT {
		ipField, portField = bdd.DstIP, bdd.DstPort
	}

	switch r.Type {
	case config.NATTypeSNAT, config.NATTypeDNAT:
		ips, err := translationRange(f, dev, r, ipField)
		if err != nil {
			return Rule{}, err
		}
		if ips != nil {
			rule.Fields = append(rule.Fields, ipField)
			rule.Values = f.And(rule.Values, ips)
		}
	case config.NATTypeMasquerade:
		iface, ok := dev.Interface(r.OutInterface)
		if !ok || len(iface.IPv4) == 0 {
			return Rule{}, integrity(dev, r, "masquerade interface %q has no address", r.OutInterface)
		}
		p, err := validation.ParseInterfaceAddress(iface.IPv4[0])
		if err != nil {
			return Rule{}, err
		}
		rule.Fields = append(rule.Fields, ipField)
		rule.Values = f.And(rule.Values, f.Addr(ipField, p.Addr()))
	default:
		return Rule{}, errors.Errorf(errors.KindUnsupported, "nat rule %s: unsupported type %q", r.Name, r.Type)
	}

	if r.ToPort != "" {
		lo, hi, err := validation.ParsePortRange(r.ToPort)
		if err != nil {
			return Rule{}, err
		}
		rule.Fields = append(rule.Fields, portField)
		rule.Values = f.And(rule.Values, f.Range(portField, uint64(lo), uint64(hi)))
	}
	return rule, nil
}

func translationRange(f *bdd.Factory, dev *config.Device, r config.NATRule, field bdd.Field) (bdd.Node, error) {
	switch {
	case r.Pool != "":
		pool, ok := dev.Pool(r.Pool)
		if !ok {
			return nil, integrity(dev, r, "undefined nat pool %q", r.Pool)
		}
		rng, err := validation.ParseIPRange(pool.Range)
		if err != nil {
			return nil, err
		}
		return f.IPRange(field, rng), nil
	case r.ToIP != "":
		rng, err := validation.ParseIPRange(r.ToIP)
		if err != nil {
			return nil, err
		}
		return f.IPRange(field, rng), nil
	}
	return nil, nil
}

func integrity(dev *config.Device, r config.NATRule, format string, args ...any) error {
	err := errors.Errorf(errors.KindIntegrity, format, args...)
	err = errors.Attr(err, "hostname", dev.Hostname)
	return errors.Attr(err, "nat_rule", r.Name)
}

// Incoming compiles the destination NAT rules applied to traffic entering iface, in order.
func Incoming(f *bdd.Factory, dev *config.Device, iface string) ([]Rule, error) {
	return compileWhere(f, dev, func(r config.NATRule) bool {
		return r.Type == config.NATTypeDNAT && r.InInterface == iface
	})
}

// Outgoing compiles the source NAT rules applied to traffic leaving iface, in order.
func Outgoing(f *bdd.Factory, dev *config.Device, iface string) ([]Rule, error) {
	return compileWhere(f, dev, func(r config.NATRule) bool {
		return (r.Type == config.NATTypeSNAT || r.Type == config.NATTypeMasquerade) && r.OutInterface == iface
	})
}

func compileWhere(f *bdd.Factory, dev *config.Device, keep func(config.NATRule) bool) ([]Rule, error) {
	var rules []Rule
	for _, r := range dev.NAT {
		if !keep(r) {
			continue
		}
		rule, err := Compile(f, dev, r)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// AssignedFields lists every field any of the rules may rewrite.
func AssignedFields(rules []Rule) []bdd.Field {
	seen := make(map[bdd.Field]bool)
	var fields []bdd.Field
	for _, r := range rules {
		for _, field := range r.Fields {
			if !seen[field] {
				seen[field] = true
				fields = append(fields, field)
			}
		}
	}
	return fields
}

type rules struct {
	f     *bdd.Factory
	rules []Rule
	// exclusive[i] holds the guard of rule i minus the guards of earlier rules.
	exclusive []bdd.Node
	unmatched bdd.Node
}

// Transition returns the first-match-wins transition for an ordered rule list.
// Headers that match no rule pass through unchanged.
func Transition(f *bdd.Factory, rs []Rule) transition.Transition {
	if len(rs) == 0 {
		return transition.Identity()
	}
	t := &rules{f: f, rules: rs}
	earlier := f.Zero()
	for _, r := range rs {
		t.exclusive = append(t.exclusive, f.Diff(r.Guard, earlier))
		earlier = f.Or(earlier, r.Guard)
	}
	t.unmatched = f.Not(earlier)
	return t
}

func (t *rules) Forward(in bdd.Node) bdd.Node {
	f := t.f
	out := f.Zero()
	remaining := in
	for _, r := range t.rules {
		fired := f.And(remaining, r.Guard)
		if !f.IsZero(fired) {
			out = f.Or(out, f.And(f.Exist(fired, r.Fields...), r.Values))
		}
		remaining = f.Diff(remaining, r.Guard)
	}
	return f.Or(out, remaining)
}

// Backward returns, per rule, the headers only that rule's guard claims and
// whose rewritten fields could have produced out, plus untranslated out.
func (t *rules) Backward(out bdd.Node) bdd.Node {
	f := t.f
	in := f.And(out, t.unmatched)
	for i, r := range t.rules {
		pre := f.Exist(f.And(out, r.Values), r.Fields...)
		in = f.Or(in, f.And(t.exclusive[i], pre))
	}
	return in
}
