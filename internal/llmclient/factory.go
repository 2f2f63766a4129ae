// File: internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// NewClient is a factory that creates a ModelService from configuration,
// optionally wrapped in a rate limiter.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.ModelService, error) {
	var (
		svc schemas.ModelService
		err error
	)

	switch cfg.Provider {
	case config.ProviderGemini:
		svc, err = NewGeminiClient(cfg, logger)
	case config.ProviderGeminiSDK:
		svc, err = NewGenAIClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider %q. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderGeminiSDK)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		svc = &rateLimitedService{
			inner:   svc,
			limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		}
	}
	return svc, nil
}

// rateLimitedService paces calls to the wrapped service. Waiting honors the
// caller's context, so a paused or stopped run never blocks on the limiter.
type rateLimitedService struct {
	inner   schemas.ModelService
	limiter *rate.Limiter
}

var _ schemas.ModelService = (*rateLimitedService)(nil)

func (r *rateLimitedService) Name() string { return r.inner.Name() }

func (r *rateLimitedService) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.InvokeOptions) (*schemas.ModelResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	return r.inner.Invoke(ctx, messages, opts)
}
