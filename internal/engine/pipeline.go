// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/logging"
)

// Pipeline runs the stages of one analysis request in order.
type Pipeline struct {
	name   string
	stages []Stage
	log    *logging.Logger
}

// Stage is a single step of a request pipeline.
type Stage struct {
	Name        string
	Description string
	Run         func(ctx context.Context) error
}

// PipelineResult contains the results of pipeline execution
type PipelineResult struct {
	StageResults   map[string]*StageResult
	Order          []string
	OverallSuccess bool
	Duration       time.Duration
	Timestamp      time.Time
	TotalErrors    int
}

// StageResult contains the result of a single pipeline stage
type StageResult struct {
	Success  bool
	Error    error
	Duration time.Duration
}

// NewPipeline creates an empty pipeline.
func NewPipeline(name string, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{name: name, log: log}
}

// AddStage appends a stage.
func (p *Pipeline) AddStage(stage Stage) {
	p.stages = append(p.stages, stage)
}

// Execute runs the pipeline. Cancellation is checked between stages only;
// a running fixed point is not interrupted.
func (p *Pipeline) Execute(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{
		StageResults: make(map[string]*StageResult),
		Timestamp:    time.Now(),
	}

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	for _, stage := range p.stages {
		select {
		case <-ctx.Done():
			return result, errors.Wrapf(ctx.Err(), errors.KindInternal, "%s cancelled before %s", p.name, stage.Name)
		default:
		}

		stageStart := time.Now()
		stageResult := &StageResult{Success: true}
		if err := stage.Run(ctx); err != nil {
			stageResult.Success = false
			stageResult.Error = err
			result.TotalErrors++
		}
		stageResult.Duration = time.Since(stageStart)
		result.StageResults[stage.Name] = stageResult
		result.Order = append(result.Order, stage.Name)

		p.log.Debug("stage finished",
			"pipeline", p.name,
			"stage", stage.Name,
			"success", stageResult.Success,
			"duration", stageResult.Duration)

		if !stageResult.Success {
			return result, errors.Attr(stageResult.Error, "stage", stage.Name)
		}
	}

	result.OverallSuccess = true
	return result, nil
}

// ExecuteWithTimeout runs the pipeline under ctx, giving up between stages
// once timeout has passed. A zero timeout means no limit.
func (p *Pipeline) ExecuteWithTimeout(ctx context.Context, timeout time.Duration) (*PipelineResult, error) {
	if timeout <= 0 {
		return p.Execute(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Execute(ctx)
}

// WriteSummary writes a human-readable summary of pipeline results
func (pr *PipelineResult) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Pipeline Execution Results (%.3fs):\n", pr.Duration.Seconds())
	fmt.Fprintf(w, "Overall Success: %t\n", pr.OverallSuccess)
	fmt.Fprintf(w, "Total Errors: %d\n", pr.TotalErrors)
	fmt.Fprintf(w, "Stage Results:\n")
	for _, name := range pr.Order {
		result := pr.StageResults[name]
		status := "ok"
		if !result.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "  [%s] %s: %.3fs", status, name, result.Duration.Seconds())
		if result.Error != nil {
			fmt.Fprintf(w, " - %s", result.Error.Error())
		}
		fmt.Fprintln(w)
	}
}
