// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/errors"
	"grimm.is/reachability/internal/logging"
)

func TestPipeline_Execute(t *testing.T) {
	var ran []string
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			ran = append(ran, name)
			return err
		}
	}

	t.Run("all stages run in order", func(t *testing.T) {
		ran = nil
		p := NewPipeline("test", logging.Discard())
		p.AddStage(Stage{Name: "one", Run: step("one", nil)})
		p.AddStage(Stage{Name: "two", Run: step("two", nil)})

		res, err := p.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, res.OverallSuccess)
		assert.Zero(t, res.TotalErrors)
		assert.Equal(t, []string{"one", "two"}, ran)
		assert.Equal(t, []string{"one", "two"}, res.Order)
	})

	t.Run("required failure stops", func(t *testing.T) {
		ran = nil
		p := NewPipeline("test", nil)
		p.AddStage(Stage{Name: "one", Run: step("one", errors.New(errors.KindIntegrity, "broken"))})
		p.AddStage(Stage{Name: "two", Run: step("two", nil)})

		res, err := p.Execute(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Integrity(err))
		assert.Equal(t, "one", errors.GetAttributes(err)["stage"])
		assert.False(t, res.OverallSuccess)
		assert.Equal(t, []string{"one"}, ran)
	})

	t.Run("cancelled", func(t *testing.T) {
		ran = nil
		p := NewPipeline("test", nil)
		p.AddStage(Stage{Name: "one", Run: step("one", nil)})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Execute(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, ran)
	})
}

func TestPipeline_Timeout(t *testing.T) {
	p := NewPipeline("slow", nil)
	p.AddStage(Stage{Name: "wait", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	p.AddStage(Stage{Name: "after", Run: func(context.Context) error { return nil }})

	res, err := p.ExecuteWithTimeout(context.Background(), 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, res.StageResults, "after")

	quick := NewPipeline("quick", nil)
	quick.AddStage(Stage{Name: "noop", Run: func(context.Context) error { return nil }})
	res, err = quick.ExecuteWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, res.OverallSuccess)
}

func TestPipelineResult_WriteSummary(t *testing.T) {
	p := NewPipeline("test", nil)
	p.AddStage(Stage{Name: "roots", Run: func(context.Context) error { return nil }})
	p.AddStage(Stage{Name: "lint", Run: func(context.Context) error {
		return errors.New(errors.KindValidation, "lint failed")
	}})
	res, err := p.Execute(context.Background())
	require.Error(t, err)

	var buf bytes.Buffer
	res.WriteSummary(&buf)
	out := buf.String()
	assert.Contains(t, out, "Overall Success: false")
	assert.Contains(t, out, "Total Errors: 1")
	assert.Contains(t, out, "[ok] roots")
	assert.Contains(t, out, "[failed] lint")
	assert.Contains(t, out, "lint failed")
}
