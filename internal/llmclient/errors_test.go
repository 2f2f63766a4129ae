// File: internal/llmclient/errors_test.go
package llmclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrRateLimited, true},
		{"wrapped sentinel", fmt.Errorf("invoke: %w", ErrRateLimited), true},
		{"status text", errors.New("gemini API error: status 429, body: slow down"), true},
		{"resource exhausted", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"quota prose", errors.New("the resource has been exhausted"), true},
		{"unrelated", errors.New("connection refused"), false},
		{"token limit", ErrTokenLimit, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRateLimited(tc.err))
		})
	}
}

func TestIsTokenLimit(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrTokenLimit, true},
		{"wrapped sentinel", fmt.Errorf("invoke: %w", ErrTokenLimit), true},
		{"provider prose", errors.New("request token count exceeds the limit"), true},
		{"context length", errors.New("this model's maximum context length is 128000 tokens"), true},
		{"input limit", errors.New("exceeds the input token limit"), true},
		{"unrelated", errors.New("connection refused"), false},
		{"rate limit", ErrRateLimited, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTokenLimit(tc.err))
		})
	}
}

func TestWrapStatus(t *testing.T) {
	assert.ErrorIs(t, wrapStatus(429, "quota"), ErrRateLimited)
	assert.ErrorIs(t, wrapStatus(400, "token count exceeds maximum"), ErrTokenLimit)

	plain400 := wrapStatus(400, "malformed request")
	assert.NotErrorIs(t, plain400, ErrTokenLimit)
	assert.NotErrorIs(t, plain400, ErrRateLimited)

	err500 := wrapStatus(500, "internal")
	assert.Contains(t, err500.Error(), "status 500")
}
