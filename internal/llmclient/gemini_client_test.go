// File: internal/llmclient/gemini_client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

func testModelConfig(endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:   config.ProviderGemini,
		Model:      "gemini-test",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		APITimeout: 5 * time.Second,
		MaxTokens:  1024,
	}
}

func geminiOK(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` +
		string(mustJSON(text)) + `}]},"finishReason":"STOP"}],` +
		`"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}}`
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func TestGeminiInvokeSuccess(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(geminiOK(`{"current_state":{},"action":[]}`)))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	messages := []schemas.Message{
		schemas.NewTextMessage(schemas.RoleSystem, "you are an agent"),
		schemas.NewTextMessage(schemas.RoleUser, "the task"),
		schemas.NewTextMessage(schemas.RoleAssistant, "prior output"),
	}
	resp, err := client.Invoke(context.Background(), messages, schemas.InvokeOptions{ForceJSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"current_state":{},"action":[]}`, resp.Text)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 5, resp.CompletionTokens)

	// The wire payload routes the system message to system_instruction and
	// maps assistant to the "model" role.
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Contains(t, string(payload["system_instruction"]), "you are an agent")
	var contents []struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(payload["contents"], &contents))
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Contains(t, string(payload["generationConfig"]), "application/json")
}

func TestGeminiInvokeRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"overloaded"}`))
			return
		}
		w.Write([]byte(geminiOK("recovered")))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Invoke(context.Background(),
		[]schemas.Message{schemas.NewTextMessage(schemas.RoleUser, "hi")}, schemas.InvokeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestGeminiInvokePermanentErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"key revoked"}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(),
		[]schemas.Message{schemas.NewTextMessage(schemas.RoleUser, "hi")}, schemas.InvokeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiInvokeBlockedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testModelConfig(server.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(),
		[]schemas.Message{schemas.NewTextMessage(schemas.RoleUser, "hi")}, schemas.InvokeOptions{})
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	cfg := testModelConfig("")
	cfg.APIKey = ""
	_, err := NewGeminiClient(cfg, zap.NewNop())
	assert.Error(t, err)
}
