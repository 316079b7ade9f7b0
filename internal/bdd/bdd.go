// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bdd encodes IPv4 packet headers as BDD variables.
//
// A Factory owns one rudd BDD instance. Nodes from different factories must
// never be mixed, and a Factory must not be used from more than one goroutine.
package bdd

import (
	"math/big"
	"net/netip"

	"github.com/dalzilio/rudd"
	"go4.org/netipx"

	"grimm.is/reachability/internal/errors"
)

// Node is a BDD over the header variables of one Factory.
type Node = rudd.Node

// Field identifies a header field (or a tag) in the variable layout.
type Field int

// Variable order is significant: fields declared first sit closest to the root.
const (
	DstIP Field = iota
	SrcIP
	DstPort
	SrcPort
	IPProtocol
	SrcInterface
	LastHop
	numFields
)

var fieldNames = [...]string{"dst_ip", "src_ip", "dst_port", "src_port", "ip_protocol", "src_interface", "last_hop"}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// HeaderFields are the fields that describe the packet itself.
var HeaderFields = []Field{DstIP, SrcIP, DstPort, SrcPort, IPProtocol}

// TagFields are bookkeeping fields that never leave the graph.
var TagFields = []Field{SrcInterface, LastHop}

const (
	DefaultTagBits   = 12
	DefaultNodeSize  = 1 << 16
	DefaultCacheSize = 1 << 14

	scratchBits = 32
)

// kernel is the subset of the rudd API the factory relies on.
type kernel interface {
	Error() string
	True() rudd.Node
	False() rudd.Node
	Ithvar(i int) rudd.Node
	NIthvar(i int) rudd.Node
	Not(n rudd.Node) rudd.Node
	And(n ...rudd.Node) rudd.Node
	Or(n ...rudd.Node) rudd.Node
	Ite(f, g, h rudd.Node) rudd.Node
	Exist(n, varset rudd.Node) rudd.Node
	Makeset(varset []int) rudd.Node
	Replace(n rudd.Node, r rudd.Replacer) rudd.Node
	NewReplacer(oldvars, newvars []int) (rudd.Replacer, error)
	Equal(n1, n2 rudd.Node) bool
	Satcount(n rudd.Node) *big.Int
}

type options struct {
	tagBits   int
	nodeSize  int
	cacheSize int
}

// Option configures a Factory.
type Option func(o *options)

// TagBits sets the width of the SrcInterface and LastHop tag fields.
func TagBits(n int) Option {
	return func(o *options) { o.tagBits = n }
}

// NodeSize sets the initial node table size.
func NodeSize(n int) Option {
	return func(o *options) { o.nodeSize = n }
}

// CacheSize sets the initial operation cache size.
func CacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// Factory builds and combines header predicates.
type Factory struct {
	k       kernel
	offset  [numFields]int
	width   [numFields]int
	scratch int
	varnum  int

	varsets map[uint]Node
	swaps   []rudd.Replacer
}

// New creates a factory with its own BDD instance.
func New(opts ...Option) (*Factory, error) {
	o := options{tagBits: DefaultTagBits, nodeSize: DefaultNodeSize, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tagBits < 1 || o.tagBits > 31 {
		return nil, errors.Errorf(errors.KindValidation, "tag width %d out of range [1,31]", o.tagBits)
	}

	f := &Factory{varsets: make(map[uint]Node)}
	widths := [numFields]int{32, 32, 16, 16, 8, o.tagBits, o.tagBits}
	next := 0
	for i, w := range widths {
		f.offset[i] = next
		f.width[i] = w
		next += w
	}
	f.scratch = next
	f.varnum = next + scratchBits

	b, err := rudd.New(f.varnum, rudd.Nodesize(o.nodeSize), rudd.Cachesize(o.cacheSize))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "creating bdd")
	}
	f.k = b

	if err := f.buildSwaps(); err != nil {
		return nil, err
	}
	return f, nil
}

// Width returns the number of variables allocated to field.
func (f *Factory) Width(field Field) int { return f.width[field] }

// MaxTag is the largest tag value the factory can encode.
func (f *Factory) MaxTag() uint32 { return uint32(1)<<f.width[SrcInterface] - 1 }

// Err reports an error recorded by the underlying BDD, if any.
func (f *Factory) Err() error {
	if msg := f.k.Error(); msg != "" {
		return errors.New(errors.KindInternal, msg)
	}
	return nil
}

func (f *Factory) One() Node  { return f.k.True() }
func (f *Factory) Zero() Node { return f.k.False() }

func (f *Factory) And(n ...Node) Node {
	if len(n) == 0 {
		return f.k.True()
	}
	return f.k.And(n...)
}

func (f *Factory) Or(n ...Node) Node {
	if len(n) == 0 {
		return f.k.False()
	}
	return f.k.Or(n...)
}

func (f *Factory) Not(n Node) Node { return f.k.Not(n) }

// Diff returns a and not b.
func (f *Factory) Diff(a, b Node) Node { return f.k.And(a, f.k.Not(b)) }

func (f *Factory) Ite(cond, then, els Node) Node { return f.k.Ite(cond, then, els) }

func (f *Factory) Equal(a, b Node) bool { return f.k.Equal(a, b) }

func (f *Factory) IsZero(n Node) bool { return f.k.Equal(n, f.k.False()) }

func (f *Factory) IsOne(n Node) bool { return f.k.Equal(n, f.k.True()) }

// Implies reports whether every assignment of a satisfies b.
func (f *Factory) Implies(a, b Node) bool { return f.IsZero(f.Diff(a, b)) }

// bit returns the variable index of bit i of field, where bit 0 is the most significant.
func (f *Factory) bit(field Field, i int) int { return f.offset[field] + i }

// Value constrains field to equal v.
func (f *Factory) Value(field Field, v uint64) Node {
	w := f.width[field]
	if w < 64 && v>>uint(w) != 0 {
		return f.k.False()
	}
	res := f.k.True()
	for i := w - 1; i >= 0; i-- {
		if v>>uint(w-1-i)&1 == 1 {
			res = f.k.And(f.k.Ithvar(f.bit(field, i)), res)
		} else {
			res = f.k.And(f.k.NIthvar(f.bit(field, i)), res)
		}
	}
	return res
}

// Range constrains lo <= field <= hi, comparing as unsigned integers.
func (f *Factory) Range(field Field, lo, hi uint64) Node {
	w := f.width[field]
	if limit := uint64(1)<<uint(w) - 1; hi > limit {
		hi = limit
	}
	if lo > hi {
		return f.k.False()
	}
	if lo == hi {
		return f.Value(field, lo)
	}
	return f.k.And(f.geq(field, lo), f.leq(field, hi))
}

func (f *Factory) geq(field Field, lo uint64) Node {
	w := f.width[field]
	res := f.k.True()
	for i := w - 1; i >= 0; i-- {
		x := f.k.Ithvar(f.bit(field, i))
		if lo>>uint(w-1-i)&1 == 1 {
			res = f.k.And(x, res)
		} else {
			res = f.k.Or(x, res)
		}
	}
	return res
}

func (f *Factory) leq(field Field, hi uint64) Node {
	w := f.width[field]
	res := f.k.True()
	for i := w - 1; i >= 0; i-- {
		nx := f.k.NIthvar(f.bit(field, i))
		if hi>>uint(w-1-i)&1 == 1 {
			res = f.k.Or(nx, res)
		} else {
			res = f.k.And(nx, res)
		}
	}
	return res
}

// Prefix constrains an IP field to an IPv4 prefix. IPv6 prefixes match nothing.
func (f *Factory) Prefix(field Field, p netip.Prefix) Node {
	if !p.IsValid() || !p.Addr().Is4() {
		return f.k.False()
	}
	v := ipToUint(p.Masked().Addr())
	res := f.k.True()
	for i := p.Bits() - 1; i >= 0; i-- {
		if v>>uint(31-i)&1 == 1 {
			res = f.k.And(f.k.Ithvar(f.bit(field, i)), res)
		} else {
			res = f.k.And(f.k.NIthvar(f.bit(field, i)), res)
		}
	}
	return res
}

// Addr constrains an IP field to a single IPv4 address.
func (f *Factory) Addr(field Field, a netip.Addr) Node {
	if !a.Is4() {
		return f.k.False()
	}
	return f.Value(field, uint64(ipToUint(a)))
}

// IPSet constrains an IP field to the IPv4 part of set. A nil set matches nothing.
func (f *Factory) IPSet(field Field, set *netipx.IPSet) Node {
	if set == nil {
		return f.k.False()
	}
	parts := []Node{}
	for _, p := range set.Prefixes() {
		if p.Addr().Is4() {
			parts = append(parts, f.Prefix(field, p))
		}
	}
	return f.Or(parts...)
}

// IPRange constrains an IP field to an inclusive IPv4 range.
func (f *Factory) IPRange(field Field, r netipx.IPRange) Node {
	if !r.IsValid() || !r.From().Is4() {
		return f.k.False()
	}
	return f.Range(field, uint64(ipToUint(r.From())), uint64(ipToUint(r.To())))
}

func (f *Factory) varset(fields []Field) Node {
	var key uint
	for _, field := range fields {
		key |= 1 << uint(field)
	}
	if n, ok := f.varsets[key]; ok {
		return n
	}
	vars := []int{}
	for field := Field(0); field < numFields; field++ {
		if key&(1<<uint(field)) == 0 {
			continue
		}
		for i := 0; i < f.width[field]; i++ {
			vars = append(vars, f.bit(field, i))
		}
	}
	n := f.k.Makeset(vars)
	f.varsets[key] = n
	return n
}

// Exist existentially quantifies the given fields out of n.
func (f *Factory) Exist(n Node, fields ...Field) Node {
	if len(fields) == 0 {
		return n
	}
	return f.k.Exist(n, f.varset(fields))
}

// ExistTags removes SrcInterface and LastHop from n.
func (f *Factory) ExistTags(n Node) Node { return f.Exist(n, TagFields...) }

// ExistExcept quantifies every header and tag field except keep.
func (f *Factory) ExistExcept(n Node, keep ...Field) Node {
	var drop []Field
outer:
	for field := Field(0); field < numFields; field++ {
		for _, k := range keep {
			if k == field {
				continue outer
			}
		}
		drop = append(drop, field)
	}
	return f.Exist(n, drop...)
}

// buildSwaps prepares the replacers that exchange source and destination
// fields through the scratch block: a->scratch, b->a, scratch->b.
func (f *Factory) buildSwaps() error {
	for _, pair := range [][2]Field{{SrcIP, DstIP}, {SrcPort, DstPort}} {
		a, b := pair[0], pair[1]
		w := f.width[a]
		av, bv, sv := make([]int, w), make([]int, w), make([]int, w)
		for i := 0; i < w; i++ {
			av[i] = f.bit(a, i)
			bv[i] = f.bit(b, i)
			sv[i] = f.scratch + i
		}
		for _, step := range [][2][]int{{av, sv}, {bv, av}, {sv, bv}} {
			r, err := f.k.NewReplacer(step[0], step[1])
			if err != nil {
				return errors.Wrapf(err, errors.KindInternal, "building %s/%s swap", a, b)
			}
			f.swaps = append(f.swaps, r)
		}
	}
	return nil
}

// Swap exchanges source and destination IP addresses and ports.
func (f *Factory) Swap(n Node) Node {
	for _, r := range f.swaps {
		n = f.k.Replace(n, r)
	}
	return n
}

// SatCount returns the number of concrete headers in n, ignoring tags.
func (f *Factory) SatCount(n Node) *big.Int {
	c := f.k.Satcount(f.ExistTags(n))
	free := 2*f.width[SrcInterface] + scratchBits
	return c.Rsh(c, uint(free))
}

// Header is a concrete packet header.
type Header struct {
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// Cube returns the predicate holding exactly h.
func (f *Factory) Cube(h Header) Node {
	return f.And(
		f.Addr(DstIP, h.DstIP),
		f.Addr(SrcIP, h.SrcIP),
		f.Value(DstPort, uint64(h.DstPort)),
		f.Value(SrcPort, uint64(h.SrcPort)),
		f.Value(IPProtocol, uint64(h.Protocol)),
	)
}

// Contains reports whether h satisfies n for some tag assignment.
func (f *Factory) Contains(n Node, h Header) bool {
	return !f.IsZero(f.k.And(f.ExistTags(n), f.Cube(h)))
}

func ipToUint(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
