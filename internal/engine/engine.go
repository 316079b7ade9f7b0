// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package engine answers reachability queries against one network snapshot.
//
// An Engine owns a single BDD factory and the forward graph built from the
// snapshot. BDD factories are not safe for concurrent use, so requests are
// serialized; every predicate in an answer belongs to the engine's factory
// and must only be inspected through the engine.
package engine

import (
	"sort"
	"sync"
	"time"

	"grimm.is/reachability/internal/acl"
	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/forwarding"
	"grimm.is/reachability/internal/location"
	"grimm.is/reachability/internal/logging"
	"grimm.is/reachability/internal/metrics"
	"grimm.is/reachability/internal/reach"
	"grimm.is/reachability/internal/state"
)

type options struct {
	logger        *logging.Logger
	metrics       *metrics.Metrics
	facts         *forwarding.Analysis
	bddOpts       []bdd.Option
	ignoreFilters bool
	store         *ResultStore
	timeout       time.Duration
}

// Option configures an Engine.
type Option func(o *options)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records build and solver metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFacts supplies forwarding facts computed elsewhere. Without it facts
// are derived from the snapshot's connected subnets and static routes.
func WithFacts(a *forwarding.Analysis) Option {
	return func(o *options) { o.facts = a }
}

// WithBDDOptions passes options to the BDD factory.
func WithBDDOptions(opts ...bdd.Option) Option {
	return func(o *options) { o.bddOpts = append(o.bddOpts, opts...) }
}

// WithIgnoreFilters builds the graph with every ACL permitting all traffic.
func WithIgnoreFilters() Option {
	return func(o *options) { o.ignoreFilters = true }
}

// WithResultStore keeps every answer in s under its request id.
func WithResultStore(s *ResultStore) Option {
	return func(o *options) { o.store = s }
}

// WithTimeout bounds every request. The limit is checked between pipeline
// stages, so a running fixed point finishes before the request gives up.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Engine answers queries against one snapshot.
type Engine struct {
	mu sync.Mutex

	net     *config.Network
	f       *bdd.Factory
	fac     *reach.Factory
	log     *logging.Logger
	metrics *metrics.Metrics
	store   *ResultStore
	opts    options
}

// New validates net, creates the BDD factory and builds the forward graph.
func New(net *config.Network, opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	log := o.logger.WithComponent("engine")

	if net == nil {
		return nil, errors.New(errors.KindValidation, "no network snapshot")
	}
	if errs := net.Validate(); errs.HasErrors() {
		return nil, errors.Wrap(errs, errors.KindValidation, "invalid snapshot")
	}

	f, err := bdd.New(o.bddOpts...)
	if err != nil {
		return nil, err
	}
	facts := o.facts
	if facts == nil {
		facts = forwarding.FromConfig(net)
	}

	e := &Engine{net: net, f: f, log: log, metrics: o.metrics, store: o.store, opts: o}
	e.fac, err = reach.NewFactory(f, net, facts, e.reachOptions("factory", nil)...)
	if err != nil {
		return nil, err
	}
	log.Info("engine ready",
		"devices", len(net.Devices),
		"states", e.fac.Graph().NumStates(),
		"edges", e.fac.Graph().NumEdges())
	return e, nil
}

func (e *Engine) reachOptions(component string, reqLog *logging.Logger) []reach.Option {
	l := reqLog
	if l == nil {
		l = e.opts.logger
	}
	opts := []reach.Option{
		reach.WithLogger(l.WithComponent(component)),
		reach.WithMetrics(e.metrics),
	}
	if e.opts.ignoreFilters {
		opts = append(opts, reach.WithIgnoreFilters())
	}
	return opts
}

// Network returns the snapshot the engine was built from.
func (e *Engine) Network() *config.Network { return e.net }

// Graph returns the forward graph.
func (e *Engine) Graph() *reach.Graph { return e.fac.Graph() }

// Query selects the flows a request starts from.
type Query struct {
	// Sources assigns source IPs to locations. Empty means every enabled
	// interface with its connected subnets.
	Sources location.Assignment `json:"-"`
	// Headers further constrains the root headers.
	Headers config.HeaderSpace `json:"headers"`
	// Dispositions selects outcomes for Reachability, by name in JSON.
	Dispositions []state.Disposition `json:"dispositions,omitempty"`
}

// roots resolves q into root predicates over the engine's factory.
func (e *Engine) roots(q Query) (map[state.Expr]bdd.Node, error) {
	sources := q.Sources
	if len(sources) == 0 {
		sources = location.Default(e.net)
	}
	for _, entry := range sources {
		for _, loc := range entry.Locations {
			if err := e.checkLocation(loc); err != nil {
				return nil, err
			}
		}
	}
	constraint, err := acl.HeaderSpace(e.f, q.Headers)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "invalid header constraint")
	}
	return location.Roots(e.f, sources, constraint), nil
}

func (e *Engine) checkLocation(loc location.Location) error {
	var host, name string
	switch l := loc.(type) {
	case location.InterfaceLocation:
		host, name = l.Hostname, l.Iface
	case location.InterfaceLinkLocation:
		host, name = l.Hostname, l.Iface
	default:
		return errors.Errorf(errors.KindUnsupported, "unsupported location %T", loc)
	}
	dev, ok := e.net.Device(host)
	if !ok {
		return errors.Attr(errors.Errorf(errors.KindNotFound, "unknown device %q", host), "location", loc.String())
	}
	iface, ok := dev.Interface(name)
	if !ok || iface.Disabled {
		return errors.Attr(errors.Errorf(errors.KindNotFound, "no enabled interface %q on %s", name, host), "location", loc.String())
	}
	return nil
}

// byLocation rekeys a result by location, dropping non-location states.
func byLocation(m map[state.Expr]bdd.Node) map[location.Location]bdd.Node {
	out := make(map[location.Location]bdd.Node, len(m))
	for st, n := range m {
		if loc, ok := location.FromState(st); ok {
			out[loc] = n
		}
	}
	return out
}

// dispositions rekeys the global terminals of a result by disposition.
func dispositions(m map[state.Expr]bdd.Node) map[state.Disposition]bdd.Node {
	out := make(map[state.Disposition]bdd.Node)
	for st, n := range m {
		if d, ok := state.DispositionOf(st); ok {
			out[d] = n
		}
	}
	return out
}

// LocationSummary is a printable per-location result.
type LocationSummary struct {
	Location string `json:"location"`
	// Headers is the number of distinct headers, in decimal.
	Headers string `json:"headers"`
}

func (e *Engine) summarize(m map[location.Location]bdd.Node) []LocationSummary {
	out := make([]LocationSummary, 0, len(m))
	for loc, n := range m {
		out = append(out, LocationSummary{Location: loc.String(), Headers: e.f.SatCount(n).String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
