// File: internal/llmclient/genai_client.go
package llmclient

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// GenAIClient implements schemas.ModelService using the official genai SDK.
// Compared to the REST client it delegates transport-level retries to the
// SDK and supports exact token accounting from usage metadata.
type GenAIClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
	cfg    config.LLMModelConfig
}

var _ schemas.ModelService = (*GenAIClient)(nil)

// NewGenAIClient initializes the SDK-backed client.
func NewGenAIClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIClient{
		client: client,
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.genai"),
	}, nil
}

// Name identifies the backing model.
func (c *GenAIClient) Name() string { return c.model }

// Invoke sends the conversation through the SDK.
func (c *GenAIClient) Invoke(ctx context.Context, messages []schemas.Message, opts schemas.InvokeOptions) (*schemas.ModelResponse, error) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for i, msg := range messages {
		parts := make([]*genai.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch p.Type {
			case schemas.ContentText:
				parts = append(parts, genai.NewPartFromText(p.Text))
			case schemas.ContentImage:
				data, err := base64.StdEncoding.DecodeString(p.ImageData)
				if err != nil {
					return nil, fmt.Errorf("invalid image payload in message %d: %w", i, err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, "image/png"))
			}
		}

		if i == 0 && msg.Role == schemas.RoleSystem {
			system = &genai.Content{Parts: parts}
			continue
		}

		role := genai.RoleUser
		if msg.Role == schemas.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(opts.Temperature)),
		SystemInstruction: system,
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(opts.MaxTokens)
	} else if c.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if opts.ForceJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("genai generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("genai returned an empty response")
	}

	out := &schemas.ModelResponse{Text: text}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	c.logger.Info("LLM generation complete",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
	)
	return out, nil
}
