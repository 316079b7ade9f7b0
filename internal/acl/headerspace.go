// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package acl

import (
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/validation"
)

// HeaderSpace compiles a header space into a predicate. Each non-empty list is
// a disjunction; the lists are conjoined.
func HeaderSpace(f *bdd.Factory, hs config.HeaderSpace) (bdd.Node, error) {
	parts := []bdd.Node{}

	for _, spec := range []struct {
		field  bdd.Field
		vals   []string
		negate bool
	}{
		{bdd.SrcIP, hs.SrcIP, false},
		{bdd.DstIP, hs.DstIP, false},
		{bdd.SrcIP, hs.NotSrcIP, true},
		{bdd.DstIP, hs.NotDstIP, true},
	} {
		if len(spec.vals) == 0 {
			continue
		}
		n, err := ipList(f, spec.field, spec.vals)
		if err != nil {
			return nil, err
		}
		if spec.negate {
			n = f.Not(n)
		}
		parts = append(parts, n)
	}

	if len(hs.Protocol) > 0 {
		alts := make([]bdd.Node, 0, len(hs.Protocol))
		for _, p := range hs.Protocol {
			n, err := validation.ParseProtocol(p)
			if err != nil {
				return nil, err
			}
			alts = append(alts, f.Value(bdd.IPProtocol, uint64(n)))
		}
		parts = append(parts, f.Or(alts...))
	}

	for _, spec := range []struct {
		field bdd.Field
		vals  []string
	}{
		{bdd.SrcPort, hs.SrcPort},
		{bdd.DstPort, hs.DstPort},
	} {
		if len(spec.vals) == 0 {
			continue
		}
		n, err := portList(f, spec.field, spec.vals)
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
	}

	return f.And(parts...), nil
}

func ipList(f *bdd.Factory, field bdd.Field, vals []string) (bdd.Node, error) {
	alts := make([]bdd.Node, 0, len(vals))
	for _, v := range vals {
		r, err := validation.ParseIPRange(v)
		if err != nil {
			return nil, err
		}
		alts = append(alts, f.IPRange(field, r))
	}
	return f.Or(alts...), nil
}

func portList(f *bdd.Factory, field bdd.Field, vals []string) (bdd.Node, error) {
	alts := make([]bdd.Node, 0, len(vals))
	for _, v := range vals {
		lo, hi, err := validation.ParsePortRange(v)
		if err != nil {
			return nil, err
		}
		alts = append(alts, f.Range(field, uint64(lo), uint64(hi)))
	}
	return f.Or(alts...), nil
}
