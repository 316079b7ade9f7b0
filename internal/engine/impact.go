// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/reachability/internal/bdd"
	"grimm.is/reachability/internal/config"
	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/forwarding"
	"grimm.is/reachability/internal/location"
	"grimm.is/reachability/internal/reach"
	"grimm.is/reachability/internal/state"
)

// Flow is a concrete packet entering the network at a location.
type Flow struct {
	Location location.Location `json:"-"`
	Packet   Packet            `json:"packet"`
}

// ImpactAnalysis describes how a candidate snapshot changes which root
// headers succeed.
type ImpactAnalysis struct {
	RequestID    string           `json:"request_id"`
	Locations    []LocationImpact `json:"locations"`
	TotalFlows   int              `json:"total_flows"`
	ChangedFlows []FlowImpact     `json:"changed_flows"`
	Summary      ImpactSummary    `json:"summary"`
	GeneratedAt  time.Time        `json:"generated_at"`
	// ConfigDiff is a unified diff of the two snapshots.
	ConfigDiff string `json:"config_diff"`

	// NewlyBlocked holds root headers that succeed today and fail on the
	// candidate; NewlyAllowed the reverse.
	NewlyBlocked map[location.Location]bdd.Node `json:"-"`
	NewlyAllowed map[location.Location]bdd.Node `json:"-"`
}

// LocationImpact counts changed headers at one location.
type LocationImpact struct {
	Location     string `json:"location"`
	NewlyBlocked string `json:"newly_blocked"`
	NewlyAllowed string `json:"newly_allowed"`
}

// FlowImpact shows how a specific flow is affected
type FlowImpact struct {
	Flow           Flow    `json:"flow"`
	Location       string  `json:"location"`
	PreviousAction Verdict `json:"previous_action"`
	NewAction      Verdict `json:"new_action"`
	ImpactType     string  `json:"impact_type"` // ALLOWED_TO_BLOCKED, BLOCKED_TO_ALLOWED
}

// ImpactSummary provides a high-level summary
type ImpactSummary struct {
	BlockedToAllowed int             `json:"blocked_to_allowed"`
	AllowedToBlocked int             `json:"allowed_to_blocked"`
	NoChange         int             `json:"no_change"`
	CriticalServices []ServiceImpact `json:"critical_services"`
}

// ServiceImpact tracks impact on critical services
type ServiceImpact struct {
	ServiceName string   `json:"service_name"`
	Protocol    string   `json:"protocol"`
	Port        uint16   `json:"port"`
	AffectedIPs []string `json:"affected_ips"`
	Impact      string   `json:"impact"`
}

const (
	impactBlocked = "ALLOWED_TO_BLOCKED"
	impactAllowed = "BLOCKED_TO_ALLOWED"
)

var criticalServices = map[uint16]string{
	22:    "SSH",
	53:    "DNS",
	80:    "HTTP",
	443:   "HTTPS",
	3306:  "MySQL",
	5432:  "PostgreSQL",
	6379:  "Redis",
	27017: "MongoDB",
}

// Impact compares the successful root headers of q on the engine's snapshot
// with those on candidate, and classifies flows against both. The candidate
// graph is built on the engine's BDD factory and its forwarding facts are
// derived from its own routes.
func (e *Engine) Impact(ctx context.Context, candidate *config.Network, q Query, flows []Flow) (*ImpactAnalysis, error) {
	if candidate == nil {
		return nil, errors.New(errors.KindValidation, "no candidate snapshot")
	}
	if errs := candidate.Validate(); errs.HasErrors() {
		return nil, errors.Wrap(errs, errors.KindValidation, "invalid candidate snapshot")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.newRequest("impact")
	var roots, before, after map[state.Expr]bdd.Node

	p := NewPipeline("impact", r.log)
	p.AddStage(rootsStage(e, q, &roots))
	p.AddStage(Stage{
		Name:        "baseline",
		Description: "Successful headers on the current snapshot",
		Run: func(context.Context) error {
			solver := reach.NewSolver(e.f, e.fac.Graph(), e.reachOptions("solver", r.log)...)
			before = reach.Restrict(e.f, solver.BackwardReachable(state.Successes()...), roots)
			return nil
		},
	})
	p.AddStage(Stage{
		Name:        "candidate",
		Description: "Build the candidate graph and its successful headers",
		Run: func(context.Context) error {
			fac, err := reach.NewFactory(e.f, candidate, forwarding.FromConfig(candidate), e.reachOptions("factory", r.log)...)
			if err != nil {
				return err
			}
			solver := reach.NewSolver(e.f, fac.Graph(), e.reachOptions("solver", r.log)...)
			after = reach.Restrict(e.f, solver.BackwardReachable(state.Successes()...), roots)
			return e.f.Err()
		},
	})
	if _, err := p.ExecuteWithTimeout(ctx, e.opts.timeout); err != nil {
		return nil, errors.Attr(err, "request_id", r.ans.RequestID)
	}

	analysis := &ImpactAnalysis{
		RequestID:    r.ans.RequestID,
		TotalFlows:   len(flows),
		ChangedFlows: make([]FlowImpact, 0),
		GeneratedAt:  time.Now(),
		NewlyBlocked: byLocation(diff(e.f, before, after)),
		NewlyAllowed: byLocation(diff(e.f, after, before)),
	}
	analysis.ConfigDiff = snapshotDiff(e.net, candidate)
	analysis.Locations = e.locationImpacts(analysis.NewlyBlocked, analysis.NewlyAllowed)

	beforeLoc, afterLoc := byLocation(before), byLocation(after)
	for _, flow := range flows {
		h, err := flow.Packet.Header()
		if err != nil {
			return nil, errors.Attr(err, "flow", flow.Packet.String())
		}
		was := verdictOf(e.f, beforeLoc[flow.Location], h)
		now := verdictOf(e.f, afterLoc[flow.Location], h)
		if was == now {
			continue
		}
		impact := FlowImpact{Flow: flow, PreviousAction: was, NewAction: now, ImpactType: impactAllowed}
		if flow.Location != nil {
			impact.Location = flow.Location.String()
		}
		if now == VerdictDrop {
			impact.ImpactType = impactBlocked
		}
		analysis.ChangedFlows = append(analysis.ChangedFlows, impact)
	}
	analysis.Summary = generateSummary(analysis.ChangedFlows, len(flows))

	r.log.Info("impact analysed",
		"newly_blocked", len(analysis.NewlyBlocked),
		"newly_allowed", len(analysis.NewlyAllowed),
		"changed_flows", len(analysis.ChangedFlows))
	return analysis, nil
}

// snapshotDiff renders both snapshots as indented JSON and diffs them.
func snapshotDiff(current, candidate *config.Network) string {
	currentJSON, _ := json.MarshalIndent(current, "", "  ")
	candidateJSON, _ := json.MarshalIndent(candidate, "", "  ")

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(currentJSON)),
		B:        difflib.SplitLines(string(candidateJSON)),
		FromFile: "Current",
		ToFile:   "Candidate",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	if text == "" {
		text = "No changes."
	}
	return text
}

func diff(f *bdd.Factory, a, b map[state.Expr]bdd.Node) map[state.Expr]bdd.Node {
	out := make(map[state.Expr]bdd.Node)
	for st, n := range a {
		if other, ok := b[st]; ok {
			n = f.Diff(n, other)
		}
		if !f.IsZero(n) {
			out[st] = n
		}
	}
	return out
}

func verdictOf(f *bdd.Factory, n bdd.Node, h bdd.Header) Verdict {
	if n != nil && f.Contains(n, h) {
		return VerdictAccept
	}
	return VerdictDrop
}

func (e *Engine) locationImpacts(blocked, allowed map[location.Location]bdd.Node) []LocationImpact {
	seen := make(map[location.Location]bool)
	for loc := range blocked {
		seen[loc] = true
	}
	for loc := range allowed {
		seen[loc] = true
	}
	count := func(m map[location.Location]bdd.Node, loc location.Location) string {
		if n, ok := m[loc]; ok {
			return e.f.SatCount(n).String()
		}
		return "0"
	}
	out := make([]LocationImpact, 0, len(seen))
	for loc := range seen {
		out = append(out, LocationImpact{
			Location:     loc.String(),
			NewlyBlocked: count(blocked, loc),
			NewlyAllowed: count(allowed, loc),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// generateSummary creates a summary of all impacts
func generateSummary(impacts []FlowImpact, total int) ImpactSummary {
	summary := ImpactSummary{
		NoChange:         total - len(impacts),
		CriticalServices: make([]ServiceImpact, 0),
	}

	serviceIdx := make(map[string]int)
	for _, impact := range impacts {
		switch impact.ImpactType {
		case impactBlocked:
			summary.AllowedToBlocked++
		case impactAllowed:
			summary.BlockedToAllowed++
		}

		port := uint16(impact.Flow.Packet.DstPort)
		name, critical := criticalServices[port]
		if !critical {
			continue
		}
		key := fmt.Sprintf("%s:%d", impact.Flow.Packet.Protocol, port)
		if i, ok := serviceIdx[key]; ok {
			svc := &summary.CriticalServices[i]
			svc.AffectedIPs = appendUnique(svc.AffectedIPs, impact.Flow.Packet.DstIP)
			svc.Impact = impact.ImpactType
			continue
		}
		serviceIdx[key] = len(summary.CriticalServices)
		summary.CriticalServices = append(summary.CriticalServices, ServiceImpact{
			ServiceName: name,
			Protocol:    impact.Flow.Packet.Protocol,
			Port:        port,
			AffectedIPs: []string{impact.Flow.Packet.DstIP},
			Impact:      impact.ImpactType,
		})
	}
	return summary
}

func appendUnique(ips []string, ip string) []string {
	for _, x := range ips {
		if x == ip {
			return ips
		}
	}
	return append(ips, ip)
}
