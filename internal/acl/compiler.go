// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package acl compiles device ACLs into permit predicates.
package acl

import (
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/errors"
)

// TagFunc resolves a local interface name to its source-interface tag.
type TagFunc func(iface string) (uint32, bool)

// Compiler converts the ACLs of one device. Results are memoized per ACL name.
type Compiler struct {
	f      *bdd.Factory
	dev    *config.Device
	tag    TagFunc
	permit map[string]bdd.Node
	active map[string]bool
}

// NewCompiler returns a compiler for dev. tag resolves src_interface references.
func NewCompiler(f *bdd.Factory, dev *config.Device, tag TagFunc) *Compiler {
	return &Compiler{
		f:      f,
		dev:    dev,
		tag:    tag,
		permit: make(map[string]bdd.Node),
		active: make(map[string]bool),
	}
}

// Permit returns the headers the named ACL permits.
//
// Lines are folded from the last to the first, so the first matching line
// decides; headers no line matches are denied.
func (c *Compiler) Permit(name string) (bdd.Node, error) {
	if n, ok := c.permit[name]; ok {
		return n, nil
	}
	acl, ok := c.dev.ACL(name)
	if !ok {
		return nil, errors.Attr(errors.Attr(
			errors.Errorf(errors.KindIntegrity, "undefined acl %q", name),
			"hostname", c.dev.Hostname), "acl", name)
	}
	if c.active[name] {
		return nil, errors.Attr(
			errors.Errorf(errors.KindIntegrity, "acl %q references itself through permitted_by", name),
			"hostname", c.dev.Hostname)
	}
	c.active[name] = true
	defer delete(c.active, name)

	result := c.f.Zero()
	for i := len(acl.Lines) - 1; i >= 0; i-- {
		line := acl.Lines[i]
		match, err := c.Match(line)
		if err != nil {
			return nil, errors.Attr(errors.Wrapf(err, errors.GetKind(err), "acl %s line %s", name, line.Name), "acl", name)
		}
		action := c.f.Zero()
		if line.Action == config.ActionPermit {
			action = c.f.One()
		}
		result = c.f.Ite(match, action, result)
	}
	c.permit[name] = result
	return result, nil
}

// Match returns the headers a single line matches, regardless of its action.
func (c *Compiler) Match(line config.ACLLine) (bdd.Node, error) {
	hs, err := HeaderSpace(c.f, line.HeaderSpace())
	if err != nil {
		return nil, err
	}
	parts := []bdd.Node{hs}

	if len(line.SrcInterface) > 0 {
		alts := make([]bdd.Node, 0, len(line.SrcInterface))
		for _, iface := range line.SrcInterface {
			id, ok := c.tag(iface)
			if !ok {
				return nil, errors.Attr(
					errors.Errorf(errors.KindIntegrity, "undefined src_interface %q", iface),
					"hostname", c.dev.Hostname)
			}
			alts = append(alts, c.f.Value(bdd.SrcInterface, uint64(id)))
		}
		parts = append(parts, c.f.Or(alts...))
	}

	for _, ref := range line.PermittedBy {
		p, err := c.Permit(ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return c.f.And(parts...), nil
}

// PermitOrAll returns Permit(name), or every header when name is empty.
func (c *Compiler) PermitOrAll(name string) (bdd.Node, error) {
	if name == "" {
		return c.f.One(), nil
	}
	return c.Permit(name)
}
