// File: internal/agent/service.go
package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
	"github.com/xkilldash9x/waypoint-cli/internal/controller"
	"github.com/xkilldash9x/waypoint-cli/internal/dom"
	"github.com/xkilldash9x/waypoint-cli/internal/llmclient"
)

// Service is the step orchestrator: the single-threaded state machine that
// captures browser state, queries the model, dispatches actions, and records
// history. One Service owns its conversation state and history exclusively;
// parallel agents require separate Service instances on separate browser
// sessions.
type Service struct {
	cfg    config.AgentConfig
	logger *zap.Logger

	task    string
	runID   string
	driver  schemas.PageDriver
	model   schemas.ModelService
	planner schemas.ModelService // nil disables the planning cadence

	builder    *dom.Builder
	dispatcher *controller.Dispatcher
	recorder   *Recorder
	messages   *MessageManager
	history    *History

	// paused and stopped are the cooperative interruption flags, polled at
	// every suspension boundary. They may be flipped from other goroutines.
	paused  atomic.Bool
	stopped atomic.Bool

	consecutiveFailures int
	lastResults         []schemas.ActionResult
	viewportExpansion   int

	// lastSnapshot is the snapshot the most recent model output was grounded
	// on; kept for history recording after dispatch.
	lastSnapshot *dom.Snapshot
}

// NewService wires an orchestrator. planner may be nil.
func NewService(
	cfg config.AgentConfig,
	task string,
	driver schemas.PageDriver,
	model schemas.ModelService,
	planner schemas.ModelService,
	estimator TokenEstimator,
	logger *zap.Logger,
) *Service {
	runID := uuid.NewString()
	svcLogger := logger.Named("agent").With(zap.String("run_id", runID))

	return &Service{
		cfg:        cfg,
		logger:     svcLogger,
		task:       task,
		runID:      runID,
		driver:     driver,
		model:      model,
		planner:    planner,
		builder:    dom.NewBuilder(svcLogger),
		dispatcher: controller.NewDispatcher(driver, svcLogger),
		recorder:   NewRecorder(svcLogger),
		messages: NewMessageManager(
			SystemPrompt(controller.Kinds(), cfg.MaxActionsPerStep),
			task,
			estimator,
			cfg.MaxInputTokens,
			cfg.SensitiveData,
			svcLogger,
		),
		history:           &History{},
		viewportExpansion: 500,
	}
}

// SetViewportExpansion overrides the probe's viewport band (pixels; -1 means
// the whole page).
func (s *Service) SetViewportExpansion(px int) { s.viewportExpansion = px }

// RestoreConversation injects a previously persisted window so a prior run's
// context carries over.
func (s *Service) RestoreConversation(messages []schemas.Message) error {
	return s.messages.Restore(messages)
}

// Pause requests a cooperative pause; it takes effect at the next checkpoint.
func (s *Service) Pause() { s.paused.Store(true) }

// Resume clears a pause request.
func (s *Service) Resume() { s.paused.Store(false) }

// Stop requests termination; it takes effect at the next checkpoint and is
// not reversible.
func (s *Service) Stop() { s.stopped.Store(true) }

// History exposes the run record accumulated so far.
func (s *Service) History() *History { return s.history }

// interrupted reports whether a pause/stop request is pending.
func (s *Service) interrupted() bool {
	return s.paused.Load() || s.stopped.Load()
}

// Run executes the agent loop until a done action, the step budget, or the
// consecutive-failure ceiling terminates it. The returned history always ends
// in a well-formed terminal record.
func (s *Service) Run(ctx context.Context) (*History, error) {
	s.logger.Info("Starting agent run",
		zap.String("task", s.task),
		zap.Int("max_steps", s.cfg.MaxSteps),
		zap.String("model", s.model.Name()))

	for step := 0; step < s.cfg.MaxSteps; step++ {
		if s.consecutiveFailures >= s.cfg.MaxFailures {
			s.terminate(fmt.Sprintf("Stopping due to %d consecutive failures", s.cfg.MaxFailures))
			return s.history, ErrMaxFailures
		}

		isLast := step == s.cfg.MaxSteps-1
		outcome := s.step(ctx, step+1, isLast)

		switch outcome {
		case OutcomeDone:
			s.logger.Info("Task completed", zap.Int("steps", step+1))
			return s.history, nil
		case OutcomePaused:
			if err := s.waitWhilePaused(ctx); err != nil {
				s.terminate("Run stopped while paused")
				return s.history, err
			}
			// The paused step did not advance; repeat it.
			step--
		case OutcomeFailed, OutcomeContinue:
			// Failure accounting already happened inside step.
		}

		if err := ctx.Err(); err != nil {
			s.terminate("Run cancelled")
			return s.history, err
		}
	}

	s.terminate("Failed to complete task within maximum number of steps")
	return s.history, nil
}

// waitWhilePaused blocks until Resume or Stop, polling cooperatively.
func (s *Service) waitWhilePaused(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrInterrupted
	}
	s.logger.Info("Run paused; waiting for resume")
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.stopped.Load() {
				return ErrInterrupted
			}
			if !s.paused.Load() {
				s.logger.Info("Run resumed")
				return nil
			}
		}
	}
}

// terminate appends the synthetic terminal failed-done record so downstream
// consumers always observe a well-formed end state.
func (s *Service) terminate(reason string) {
	s.logger.Warn("Run terminated", zap.String("reason", reason))
	s.history.Steps = append(s.history.Steps, schemas.StepRecord{
		Results: []schemas.ActionResult{{
			IsDone:          true,
			Success:         false,
			Error:           reason,
			IncludeInMemory: true,
		}},
	})
}

// step runs one full iteration of the loop. Interruption is checked before
// and after the model call and before each dispatched action; a pending
// request aborts the step with a marker result without advancing history.
func (s *Service) step(ctx context.Context, stepNumber int, isLast bool) StepOutcome {
	s.logger.Info("Executing step", zap.Int("step", stepNumber))
	started := time.Now()

	if s.interrupted() {
		s.markPaused()
		return OutcomePaused
	}

	// -- CaptureState --
	snap, info, tabs, screenshot, err := s.captureState(ctx)
	if err != nil {
		s.logger.Error("State capture failed", zap.Error(err))
		s.consecutiveFailures++
		s.lastResults = []schemas.ActionResult{{
			Error:           fmt.Sprintf("Browser state capture failed: %v", err),
			IncludeInMemory: true,
		}}
		return OutcomeFailed
	}
	s.lastSnapshot = snap
	if snap.IndexCollisions > 0 {
		s.logger.Warn("Snapshot contained duplicate highlight indices", zap.Int("collisions", snap.IndexCollisions))
	}

	// -- Optional Plan, inserted before the state message --
	if s.planner != nil && s.cfg.PlannerInterval > 0 && (stepNumber-1)%s.cfg.PlannerInterval == 0 {
		s.runPlanner(ctx)
	}

	// -- AppendContext --
	stateText := StatePrompt(info, tabs, dom.ClickableElementsToString(snap.Root, s.cfg.IncludeAttrs), s.lastResults, stepNumber, s.cfg.MaxSteps)
	s.messages.AddStateMessage(stateText, screenshot, s.cfg.UseVision)
	if isLast {
		s.messages.AddHint(lastStepInstruction)
	}
	s.messages.CutToFit()

	if s.interrupted() {
		s.messages.RemoveLastStateMessage()
		s.markPaused()
		return OutcomePaused
	}

	// -- Query Model + Parse --
	output, outcome := s.queryModel(ctx, isLast)
	if outcome != OutcomeContinue {
		return outcome
	}

	if s.interrupted() {
		s.markPaused()
		return OutcomePaused
	}

	// -- Dispatch Actions --
	results, paused := s.multiAct(ctx, output.Actions, snap)
	if paused {
		s.markPaused()
		return OutcomePaused
	}

	// -- RecordHistory --
	meta := &schemas.StepMetadata{
		StepNumber:  stepNumber,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		InputTokens: s.messages.TotalTokens(),
	}
	record := s.recorder.Record(output, snap, info, tabs, results, screenshot, meta)
	s.history.Steps = append(s.history.Steps, record)

	s.consecutiveFailures = 0
	s.lastResults = results

	for _, res := range results {
		if res.IsDone {
			s.logger.Info("Model signalled done", zap.Bool("success", res.Success))
			return OutcomeDone
		}
	}
	return OutcomeContinue
}

// markPaused leaves the marker result so the next state message tells the
// model the previous action may repeat.
func (s *Service) markPaused() {
	s.logger.Info("Step interrupted by pause/stop request")
	s.lastResults = []schemas.ActionResult{{
		Error:           "The agent was paused; the last action might need to be repeated",
		IncludeInMemory: true,
	}}
}

// captureState produces the snapshot, page identity, tab list, and optional
// screenshot for this turn.
func (s *Service) captureState(ctx context.Context) (*dom.Snapshot, schemas.PageInfo, []schemas.TabInfo, string, error) {
	raw, err := s.driver.CaptureSnapshot(ctx, schemas.CaptureOptions{
		Highlight:         true,
		FocusIndex:        -1,
		ViewportExpansion: s.viewportExpansion,
	})
	if err != nil {
		return nil, schemas.PageInfo{}, nil, "", fmt.Errorf("snapshot capture: %w", err)
	}
	snap := s.builder.Build(raw)

	info, err := s.driver.Info(ctx)
	if err != nil {
		return nil, schemas.PageInfo{}, nil, "", fmt.Errorf("page info: %w", err)
	}
	tabs, err := s.driver.Tabs(ctx)
	if err != nil {
		s.logger.Warn("Tab enumeration failed", zap.Error(err))
	}

	var screenshot string
	if s.cfg.UseVision {
		if png, err := s.driver.Screenshot(ctx); err != nil {
			s.logger.Warn("Screenshot capture failed", zap.Error(err))
		} else {
			screenshot = base64.StdEncoding.EncodeToString(png)
		}
	}
	return snap, info, tabs, screenshot, nil
}

// runPlanner invokes the planner model over the current window and inserts
// its output immediately before the upcoming state message.
func (s *Service) runPlanner(ctx context.Context) {
	window := append([]schemas.Message{}, s.messages.Messages()...)
	window = append(window, schemas.NewTextMessage(schemas.RoleUser, plannerPrompt))

	resp, err := s.planner.Invoke(ctx, window, schemas.InvokeOptions{})
	if err != nil {
		s.logger.Warn("Planner invocation failed; continuing without plan", zap.Error(err))
		return
	}
	s.logger.Debug("Planner produced plan", zap.Int("length", len(resp.Text)))
	// Appending here, before AddStateMessage runs, places the plan directly
	// before the state message in the window.
	s.messages.AddPlan(resp.Text, -1)
}

// queryModel calls the model, classifies failures per the recovery table, and
// parses the output. A non-Continue outcome means the step ends here.
func (s *Service) queryModel(ctx context.Context, isLast bool) (*schemas.ModelOutput, StepOutcome) {
	resp, err := s.model.Invoke(ctx, s.messages.Messages(), schemas.InvokeOptions{
		Temperature: 0,
		ForceJSON:   true,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			s.messages.RemoveLastStateMessage()
			return nil, OutcomePaused
		case llmclient.IsTokenLimit(err):
			s.logger.Warn("Token limit hit; shrinking window", zap.Error(err))
			s.messages.RemoveLastStateMessage()
			s.messages.ShrinkCeiling(s.cfg.TokenCutDecrement)
			s.consecutiveFailures++
			return nil, OutcomeFailed
		case llmclient.IsRateLimited(err):
			s.logger.Warn("Model rate limited; backing off", zap.Duration("delay", s.cfg.RetryDelay), zap.Error(err))
			s.messages.RemoveLastStateMessage()
			s.consecutiveFailures++
			select {
			case <-ctx.Done():
				return nil, OutcomePaused
			case <-time.After(s.cfg.RetryDelay):
			}
			return nil, OutcomeFailed
		default:
			// Any other model error: strip the just-added state message so it
			// is not duplicated on retry, then fail the step.
			s.logger.Error("Model invocation failed", zap.Error(err))
			s.messages.RemoveLastStateMessage()
			s.consecutiveFailures++
			s.lastResults = []schemas.ActionResult{{
				Error:           fmt.Sprintf("Model call failed: %v", err),
				IncludeInMemory: true,
			}}
			return nil, OutcomeFailed
		}
	}

	output, err := ParseModelOutput(resp.Text, isLast)
	if err != nil {
		s.logger.Warn("Model output failed validation", zap.Error(err))
		s.consecutiveFailures++
		s.messages.AddHint(fmt.Sprintf("Your last response was invalid: %v. Respond with valid JSON in the required format.", err))
		s.lastResults = []schemas.ActionResult{{
			Error:           fmt.Sprintf("Invalid model output: %v", err),
			IncludeInMemory: false,
		}}
		return nil, OutcomeFailed
	}

	// The full page description is stripped from persisted history once it
	// has informed this decision; long-term history stays lean.
	s.messages.RemoveLastStateMessage()
	s.messages.AddModelOutput(serializeOutput(output))

	s.logger.Info("Model decided next actions",
		zap.String("next_goal", output.CurrentState.NextGoal),
		zap.Int("actions", len(output.Actions)))
	return output, OutcomeContinue
}

// multiAct executes the step's action batch sequentially. Before every action
// past the first it re-captures the selector map and stops early if elements
// appeared that were not present when the batch was planned, rather than risk
// acting on a stale index. Returns paused=true if an interrupt fired between
// actions.
func (s *Service) multiAct(ctx context.Context, actions []schemas.Action, snap *dom.Snapshot) ([]schemas.ActionResult, bool) {
	results := make([]schemas.ActionResult, 0, len(actions))
	cached := snap.Fingerprints()

	for i, action := range actions {
		if s.interrupted() {
			results = append(results, schemas.ActionResult{
				Error:           "Action sequence was paused; remaining actions were not executed",
				IncludeInMemory: true,
			})
			s.lastResults = results
			return results, true
		}

		if i > 0 {
			if action.RequiresIndex() && s.newElementsAppeared(ctx, cached) {
				msg := fmt.Sprintf("Something new appeared on the page after action %d/%d; stopping the sequence to re-observe", i, len(actions))
				s.logger.Info("Stopping action batch early", zap.Int("completed", i))
				results = append(results, schemas.ActionResult{
					ExtractedContent: msg,
					IncludeInMemory:  true,
				})
				break
			}

			select {
			case <-ctx.Done():
				return results, true
			case <-time.After(s.cfg.ActionDelay):
			}
		}

		res, err := s.dispatcher.Execute(ctx, action, snap)
		if err != nil {
			// Only cancellation propagates as an error from dispatch.
			return results, true
		}
		results = append(results, res)

		if res.IsDone || res.Error != "" {
			break
		}
	}
	return results, false
}

// newElementsAppeared re-probes the page and reports whether the fresh
// fingerprint set contains elements absent from the batch-start set.
func (s *Service) newElementsAppeared(ctx context.Context, cached map[schemas.Fingerprint]struct{}) bool {
	raw, err := s.driver.CaptureSnapshot(ctx, schemas.CaptureOptions{
		Highlight:         false,
		FocusIndex:        -1,
		ViewportExpansion: s.viewportExpansion,
	})
	if err != nil {
		s.logger.Warn("Mid-batch re-probe failed; stopping batch defensively", zap.Error(err))
		return true
	}
	fresh := s.builder.Build(raw).Fingerprints()
	for fp := range fresh {
		if _, ok := cached[fp]; !ok {
			return true
		}
	}
	return false
}

// serializeOutput renders the model output back to compact JSON for the
// assistant history message.
func serializeOutput(output *schemas.ModelOutput) string {
	data, err := jsonFast.Marshal(output)
	if err != nil {
		return fmt.Sprintf(`{"current_state":{"next_goal":%q}}`, output.CurrentState.NextGoal)
	}
	return string(data)
}

// ParseModelOutput validates and decodes the model's response text. Fenced
// code blocks and stray prose around the JSON object are tolerated. When
// isLast is set the vocabulary is coerced to the single terminal action.
func ParseModelOutput(text string, isLast bool) (*schemas.ModelOutput, error) {
	cleaned := extractJSON(text)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	var output schemas.ModelOutput
	if err := jsonFast.Unmarshal([]byte(cleaned), &output); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if len(output.RawActions) == 0 {
		return nil, fmt.Errorf("response contains no actions")
	}

	actions, err := controller.ParseActions(output.RawActions)
	if err != nil {
		return nil, err
	}
	output.Actions = actions

	if isLast {
		done, ok := firstDone(actions)
		if !ok {
			return nil, fmt.Errorf("final step requires the single %q action", controller.KindDone)
		}
		raw, err := controller.EncodeAction(done)
		if err != nil {
			return nil, err
		}
		output.Actions = []schemas.Action{done}
		output.RawActions = []json.RawMessage{raw}
	}
	return &output, nil
}

func firstDone(actions []schemas.Action) (schemas.Action, bool) {
	for _, a := range actions {
		if a.Kind() == controller.KindDone {
			return a, true
		}
	}
	return nil, false
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
