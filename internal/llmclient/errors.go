// File: internal/llmclient/errors.go
package llmclient

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error categories the orchestrator branches on. Wrapped errors keep
// the underlying cause; classification helpers unwrap them.
var (
	// ErrRateLimited marks resource-exhaustion responses (HTTP 429 and
	// friends). The loop backs off and retries the step.
	ErrRateLimited = errors.New("model rate limited")
	// ErrTokenLimit marks responses rejected for exceeding the context
	// window. The loop shrinks the conversation ceiling and re-trims.
	ErrTokenLimit = errors.New("model token limit exceeded")
	// ErrBlocked marks permanently refused requests (safety filters).
	ErrBlocked = errors.New("model blocked request")
)

// IsRateLimited reports whether err is a rate-limit/resource-exhaustion
// failure.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(errText(err))
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource has been exhausted")
}

// IsTokenLimit reports whether err indicates the prompt exceeded the model's
// context window.
func IsTokenLimit(err error) bool {
	if errors.Is(err, ErrTokenLimit) {
		return true
	}
	msg := strings.ToLower(errText(err))
	return strings.Contains(msg, "token count exceeds") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "input token limit")
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// wrapStatus maps an HTTP status to the matching sentinel, keeping the body
// for diagnostics.
func wrapStatus(status int, body string) error {
	base := fmt.Errorf("gemini API error: status %d, body: %s", status, body)
	switch status {
	case 429:
		return fmt.Errorf("%w: %v", ErrRateLimited, base)
	case 400:
		if strings.Contains(strings.ToLower(body), "token") {
			return fmt.Errorf("%w: %v", ErrTokenLimit, base)
		}
		return base
	default:
		return base
	}
}
