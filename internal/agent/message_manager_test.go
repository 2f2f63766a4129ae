// File: internal/agent/message_manager_test.go
package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// fixedEstimator bills a fixed cost per message, making window math exact in
// tests.
type fixedEstimator struct {
	costs map[string]int
	def   int
}

func (f *fixedEstimator) Estimate(msg schemas.Message) int {
	if c, ok := f.costs[msg.Text()]; ok {
		return c
	}
	return f.def
}

func newWindow(maxTokens int, est TokenEstimator, sensitive map[string]string) *MessageManager {
	return NewMessageManager("system prompt", "book a flight", est, maxTokens, sensitive, zap.NewNop())
}

func TestWindowSeedsSystemAndTask(t *testing.T) {
	m := newWindow(1000, &fixedEstimator{def: 10}, nil)

	msgs := m.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schemas.RoleSystem, msgs[0].Role)
	assert.Equal(t, schemas.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Text(), "Your ultimate task is: book a flight")
	assert.Equal(t, 20, m.TotalTokens())
}

func TestCutToFitKeepsProtectedAndNewestStates(t *testing.T) {
	est := &fixedEstimator{costs: map[string]int{
		"system prompt": 200,
		"Your ultimate task is: book a flight": 100,
	}, def: 300}
	m := newWindow(1000, est, nil)

	for _, s := range []string{"state 1", "state 2", "state 3", "state 4", "state 5"} {
		m.AddStateMessage(s, "", false)
	}
	require.Equal(t, 200+100+5*300, m.TotalTokens())

	m.CutToFit()

	// Budget after protected pair is 700: only the two newest 300-token states
	// fit.
	msgs := m.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "system prompt", msgs[0].Text())
	assert.Equal(t, "state 4", msgs[2].Text())
	assert.Equal(t, "state 5", msgs[3].Text())
	assert.Equal(t, 900, m.TotalTokens())
	assert.LessOrEqual(t, m.TotalTokens(), m.MaxTokens())
}

func TestCutToFitIsIdempotent(t *testing.T) {
	est := &fixedEstimator{def: 300}
	m := newWindow(1500, est, nil)
	for i := 0; i < 5; i++ {
		m.AddStateMessage("s", "", false)
	}

	m.CutToFit()
	after := len(m.Messages())
	total := m.TotalTokens()

	m.CutToFit()
	assert.Len(t, m.Messages(), after)
	assert.Equal(t, total, m.TotalTokens())
}

func TestCutToFitNoOpWithinCeiling(t *testing.T) {
	m := newWindow(10000, &fixedEstimator{def: 10}, nil)
	m.AddStateMessage("state", "", false)
	m.AddModelOutput("output")

	m.CutToFit()
	assert.Len(t, m.Messages(), 4)
}

func TestShrinkCeilingRetrims(t *testing.T) {
	est := &fixedEstimator{def: 100}
	m := newWindow(1000, est, nil)
	for i := 0; i < 6; i++ {
		m.AddStateMessage("s", "", false)
	}
	require.Equal(t, 800, m.TotalTokens())

	m.ShrinkCeiling(500)
	assert.Equal(t, 500, m.MaxTokens())
	assert.LessOrEqual(t, m.TotalTokens(), 500)
	// Protected pair survives.
	assert.Equal(t, schemas.RoleSystem, m.Messages()[0].Role)
}

func TestRemoveLastStateMessageGuards(t *testing.T) {
	m := newWindow(1000, &fixedEstimator{def: 10}, nil)

	// Never removes the protected task message.
	m.RemoveLastStateMessage()
	assert.Len(t, m.Messages(), 2)

	// Removes a trailing user state message.
	m.AddStateMessage("state", "", false)
	m.RemoveLastStateMessage()
	assert.Len(t, m.Messages(), 2)
	assert.Equal(t, 20, m.TotalTokens())

	// Never removes a trailing assistant message.
	m.AddStateMessage("state", "", false)
	m.AddModelOutput("model says")
	m.RemoveLastStateMessage()
	require.Len(t, m.Messages(), 4)
	assert.Equal(t, schemas.RoleAssistant, m.Messages()[3].Role)
}

func TestAddStateMessageRedactsSensitiveData(t *testing.T) {
	m := newWindow(1000, &fixedEstimator{def: 10}, map[string]string{
		"password": "hunter2",
		"email":    "alice@example.com",
	})

	m.AddStateMessage("login with alice@example.com and hunter2 now", "", false)

	text := m.Messages()[2].Text()
	assert.NotContains(t, text, "hunter2")
	assert.NotContains(t, text, "alice@example.com")
	assert.Contains(t, text, "[REDACTED:password]")
	assert.Contains(t, text, "[REDACTED:email]")
}

func TestAddStateMessageVision(t *testing.T) {
	m := newWindow(1000, &fixedEstimator{def: 10}, nil)

	m.AddStateMessage("state", "base64-image-bytes", true)
	assert.True(t, m.Messages()[2].HasImage())

	m.AddStateMessage("state", "base64-image-bytes", false)
	assert.False(t, m.Messages()[3].HasImage())
}

func TestAddPlanInsertsBeforeGivenPosition(t *testing.T) {
	m := newWindow(1000, &fixedEstimator{def: 10}, nil)
	m.AddStateMessage("state", "", false)

	m.AddPlan("1. Open the search page", 2)

	msgs := m.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, schemas.RoleAssistant, msgs[2].Role)
	assert.Contains(t, msgs[2].Text(), "Open the search page")
	assert.Equal(t, "state", msgs[3].Text())

	// Empty plans are ignored.
	m.AddPlan("", -1)
	assert.Len(t, m.Messages(), 4)
}

func TestRestoreReplacesWindow(t *testing.T) {
	m := newWindow(1000, &fixedEstimator{def: 10}, nil)

	restored := []schemas.Message{
		schemas.NewTextMessage(schemas.RoleSystem, "older system"),
		schemas.NewTextMessage(schemas.RoleUser, "older task"),
		schemas.NewTextMessage(schemas.RoleAssistant, "older output"),
	}
	require.NoError(t, m.Restore(restored))
	assert.Len(t, m.Messages(), 3)
	assert.Equal(t, 30, m.TotalTokens())

	assert.Error(t, m.Restore(nil))
	assert.Error(t, m.Restore([]schemas.Message{
		schemas.NewTextMessage(schemas.RoleUser, "not system first"),
		schemas.NewTextMessage(schemas.RoleUser, "task"),
	}))
}

func TestHeuristicEstimator(t *testing.T) {
	est := NewHeuristicEstimator(4, 800)

	assert.Equal(t, 4, est.CharsPerToken)
	assert.Equal(t, 800, NewHeuristicEstimator(0, 0).ImageTokens)

	long := schemas.NewTextMessage(schemas.RoleUser, strings.Repeat("a", 400))
	assert.Equal(t, 100, est.Estimate(long))

	withImage := schemas.Message{Role: schemas.RoleUser, Parts: []schemas.ContentPart{
		{Type: schemas.ContentText, Text: strings.Repeat("a", 400)},
		{Type: schemas.ContentImage, ImageData: "xxxx"},
	}}
	assert.Equal(t, 900, est.Estimate(withImage))
}
