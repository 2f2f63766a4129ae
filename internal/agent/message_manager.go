// File: internal/agent/message_manager.go
package agent

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// MessageManager owns the bounded conversation window sent to the model. The
// window always starts with exactly one system message followed by exactly
// one task message; those two are never evicted. All mutation goes through
// this type; it is not safe for concurrent use and does not need to be (the
// orchestrator is the only writer).
type MessageManager struct {
	logger    *zap.Logger
	estimator TokenEstimator

	messages  []schemas.Message
	total     int
	maxTokens int

	// sensitiveData maps label -> literal value; literals are replaced with
	// [REDACTED:label] in newly added state text, never retroactively.
	sensitiveData map[string]string
}

// NewMessageManager seeds the window with the protected system and task
// messages.
func NewMessageManager(
	systemPrompt string,
	task string,
	estimator TokenEstimator,
	maxTokens int,
	sensitiveData map[string]string,
	logger *zap.Logger,
) *MessageManager {
	m := &MessageManager{
		logger:        logger.Named("message_manager"),
		estimator:     estimator,
		maxTokens:     maxTokens,
		sensitiveData: sensitiveData,
	}
	m.append(schemas.NewTextMessage(schemas.RoleSystem, systemPrompt))
	m.append(schemas.NewTextMessage(schemas.RoleUser, "Your ultimate task is: "+task))
	return m
}

// Restore replaces the window with a previously persisted one, re-estimating
// token costs with the current estimator. Used to resume a prior run.
func (m *MessageManager) Restore(messages []schemas.Message) error {
	if len(messages) < 2 {
		return fmt.Errorf("restored window must contain at least the system and task messages, got %d", len(messages))
	}
	if messages[0].Role != schemas.RoleSystem {
		return fmt.Errorf("restored window must start with a system message, got %q", messages[0].Role)
	}
	m.messages = nil
	m.total = 0
	for _, msg := range messages {
		m.append(msg)
	}
	return nil
}

// append estimates and accounts a message, then stores it.
func (m *MessageManager) append(msg schemas.Message) {
	msg.Tokens = m.estimator.Estimate(msg)
	m.messages = append(m.messages, msg)
	m.total += msg.Tokens
}

// AddStateMessage appends the per-turn page description as a user message,
// with optional screenshot segment and mandatory redaction of sensitive
// literals.
func (m *MessageManager) AddStateMessage(stateText string, screenshot string, useVision bool) {
	parts := []schemas.ContentPart{{Type: schemas.ContentText, Text: m.redact(stateText)}}
	if useVision && screenshot != "" {
		parts = append(parts, schemas.ContentPart{Type: schemas.ContentImage, ImageData: screenshot})
	}
	m.append(schemas.Message{Role: schemas.RoleUser, Parts: parts})
}

// AddModelOutput records the model's parsed response as an assistant message
// so subsequent turns see the agent's own prior reasoning.
func (m *MessageManager) AddModelOutput(serialized string) {
	m.append(schemas.NewTextMessage(schemas.RoleAssistant, serialized))
}

// AddHint appends a short corrective user message (e.g. after a parse
// failure) so the next attempt can self-correct.
func (m *MessageManager) AddHint(hint string) {
	m.append(schemas.NewTextMessage(schemas.RoleUser, hint))
}

// AddPlan inserts the planner's output at the given position (before the
// state message, per the planning cadence contract). A negative position
// appends.
func (m *MessageManager) AddPlan(plan string, position int) {
	if plan == "" {
		return
	}
	msg := schemas.NewTextMessage(schemas.RoleAssistant, plan)
	msg.Tokens = m.estimator.Estimate(msg)
	m.total += msg.Tokens

	if position < 0 || position >= len(m.messages) {
		m.messages = append(m.messages, msg)
		return
	}
	m.messages = append(m.messages[:position], append([]schemas.Message{msg}, m.messages[position:]...)...)
}

// RemoveLastStateMessage strips the most recent message if it is a user
// (state) message. Guarded so a just-added assistant message is never
// removed.
func (m *MessageManager) RemoveLastStateMessage() {
	if len(m.messages) <= 2 {
		return
	}
	last := m.messages[len(m.messages)-1]
	if last.Role != schemas.RoleUser {
		return
	}
	m.messages = m.messages[:len(m.messages)-1]
	m.total -= last.Tokens
}

// CutToFit rebuilds the window so the running total fits the ceiling. The
// system and task messages are retained unconditionally; history is scanned
// newest to oldest and each message is kept only if it fits the remaining
// budget. Skipped messages are dropped permanently. Calling it again without
// new messages is a no-op.
func (m *MessageManager) CutToFit() {
	if m.total <= m.maxTokens || len(m.messages) <= 2 {
		return
	}

	base := m.messages[0].Tokens + m.messages[1].Tokens
	kept := make([]schemas.Message, 0, len(m.messages))
	budget := m.maxTokens - base

	// Newest first; prepend keeps chronological order in the result.
	for i := len(m.messages) - 1; i >= 2; i-- {
		msg := m.messages[i]
		if msg.Tokens <= budget {
			kept = append([]schemas.Message{msg}, kept...)
			budget -= msg.Tokens
		}
	}

	dropped := len(m.messages) - 2 - len(kept)
	m.messages = append(m.messages[:2:2], kept...)
	m.total = base
	for _, msg := range kept {
		m.total += msg.Tokens
	}

	m.logger.Info("Trimmed conversation window",
		zap.Int("dropped_messages", dropped),
		zap.Int("total_tokens", m.total),
		zap.Int("max_tokens", m.maxTokens))
}

// ShrinkCeiling lowers the token ceiling by the given decrement and re-trims.
// Used on token-limit errors from the model.
func (m *MessageManager) ShrinkCeiling(decrement int) {
	m.maxTokens -= decrement
	if m.maxTokens < 1 {
		m.maxTokens = 1
	}
	m.logger.Warn("Shrinking token ceiling after token-limit error", zap.Int("new_ceiling", m.maxTokens))
	m.CutToFit()
}

// Messages returns the window in order. Callers must not mutate the result.
func (m *MessageManager) Messages() []schemas.Message {
	return m.messages
}

// TotalTokens returns the current estimated running total.
func (m *MessageManager) TotalTokens() int { return m.total }

// MaxTokens returns the current ceiling.
func (m *MessageManager) MaxTokens() int { return m.maxTokens }

// redact replaces every occurrence of each sensitive literal with its
// placeholder.
func (m *MessageManager) redact(text string) string {
	for label, literal := range m.sensitiveData {
		if literal == "" {
			continue
		}
		text = strings.ReplaceAll(text, literal, "[REDACTED:"+label+"]")
	}
	return text
}
