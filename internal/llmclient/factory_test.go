// File: internal/llmclient/factory_test.go
package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

func TestNewClientSelectsProvider(t *testing.T) {
	cfg := testModelConfig("")
	svc, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", svc.Name())
	assert.IsType(t, &GeminiClient{}, svc)
}

func TestNewClientUnknownProvider(t *testing.T) {
	cfg := testModelConfig("")
	cfg.Provider = config.LLMProvider("llama-on-a-floppy")
	_, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llama-on-a-floppy")
}

func TestNewClientWrapsWithRateLimiter(t *testing.T) {
	cfg := testModelConfig("")
	cfg.RateLimit = 10
	svc, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &rateLimitedService{}, svc)
	assert.Equal(t, "gemini-test", svc.Name())
}

func TestRateLimitedServiceHonorsContext(t *testing.T) {
	cfg := testModelConfig("")
	cfg.RateLimit = 0.001 // effectively frozen after the first token
	svc, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	limited := svc.(*rateLimitedService)
	// Drain the single burst token.
	require.True(t, limited.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Invoke(ctx, nil, schemas.InvokeOptions{})
	assert.Error(t, err)
}
