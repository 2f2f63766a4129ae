// File: internal/agent/replay.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
	"github.com/xkilldash9x/waypoint-cli/internal/controller"
	"github.com/xkilldash9x/waypoint-cli/internal/dom"
)

// Replayer re-executes a recorded run against a live session. Historical
// element references are fingerprints, not indices; each action is re-anchored
// by locating the structurally matching element in the current tree and
// rewriting the action's index before dispatch.
type Replayer struct {
	cfg        config.ReplayConfig
	logger     *zap.Logger
	driver     schemas.PageDriver
	builder    *dom.Builder
	dispatcher *controller.Dispatcher
}

// NewReplayer wires a replay engine onto a page driver.
func NewReplayer(cfg config.ReplayConfig, driver schemas.PageDriver, logger *zap.Logger) *Replayer {
	replayLogger := logger.Named("replay")
	return &Replayer{
		cfg:        cfg,
		logger:     replayLogger,
		driver:     driver,
		builder:    dom.NewBuilder(replayLogger),
		dispatcher: controller.NewDispatcher(driver, replayLogger),
	}
}

// Rerun walks the history step by step. Steps without a model output (e.g.
// synthetic terminal records) are skipped. Each step is retried up to the
// configured count with a fixed delay; an exhausted step either aborts the
// replay or, with SkipFailures, is recorded as failed and skipped. Results
// accumulated before a failure are always preserved in the output.
func (r *Replayer) Rerun(ctx context.Context, h *History) ([]schemas.ActionResult, error) {
	var results []schemas.ActionResult

	for i, step := range h.Steps {
		if step.ModelOutput == nil || len(step.ModelOutput.Actions) == 0 {
			r.logger.Info("Skipping step with no recorded actions", zap.Int("step", i+1))
			continue
		}

		stepResults, err := r.rerunStep(ctx, step, i+1)
		results = append(results, stepResults...)
		if err != nil {
			if r.cfg.SkipFailures {
				r.logger.Warn("Step failed during replay; skipping", zap.Int("step", i+1), zap.Error(err))
				results = append(results, schemas.ActionResult{
					Error:           fmt.Sprintf("replay of step %d failed: %v", i+1, err),
					IncludeInMemory: true,
				})
				continue
			}
			return results, fmt.Errorf("replay aborted at step %d: %w", i+1, err)
		}
	}
	return results, nil
}

// rerunStep retries one historical step until it succeeds or the retry
// budget is exhausted.
func (r *Replayer) rerunStep(ctx context.Context, step schemas.StepRecord, number int) ([]schemas.ActionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Info("Retrying step", zap.Int("step", number), zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.cfg.RetryDelay):
			}
		}

		results, err := r.executeStepActions(ctx, step)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return nil, fmt.Errorf("step failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

// executeStepActions re-resolves and dispatches every action of one step.
func (r *Replayer) executeStepActions(ctx context.Context, step schemas.StepRecord) ([]schemas.ActionResult, error) {
	raw, err := r.driver.CaptureSnapshot(ctx, schemas.CaptureOptions{
		Highlight:         false,
		FocusIndex:        -1,
		ViewportExpansion: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot capture: %w", err)
	}
	snap := r.builder.Build(raw)

	var results []schemas.ActionResult
	for i, action := range step.ModelOutput.Actions {
		if action.RequiresIndex() {
			fp := fingerprintAt(step.State.InteractedElements, i)
			if fp == nil {
				return results, fmt.Errorf("action %d (%s) has no recorded fingerprint", i+1, action.Kind())
			}
			el := dom.FindInTree(*fp, snap.Root)
			if el == nil || el.HighlightIndex == nil {
				return results, fmt.Errorf("action %d (%s): %w", i+1, action.Kind(), ErrElementUnresolvable)
			}
			if *el.HighlightIndex != action.Index() {
				r.logger.Info("Element moved since recording; rewriting index",
					zap.String("kind", action.Kind()),
					zap.Int("recorded_index", action.Index()),
					zap.Int("current_index", *el.HighlightIndex))
				action.SetIndex(*el.HighlightIndex)
			}
		}

		res, err := r.dispatcher.Execute(ctx, action, snap)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if res.Error != "" {
			return results, fmt.Errorf("action %d (%s) failed: %s", i+1, action.Kind(), res.Error)
		}
	}
	return results, nil
}

func fingerprintAt(fps []*schemas.Fingerprint, i int) *schemas.Fingerprint {
	if i < 0 || i >= len(fps) {
		return nil
	}
	return fps[i]
}
