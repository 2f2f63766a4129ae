// File: internal/agent/token.go
package agent

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// TokenEstimator assigns a token cost to a conversation message. Estimates
// only need to be deterministic and monotonic in content size; the window
// manager never assumes tokenizer-exact counts.
type TokenEstimator interface {
	Estimate(msg schemas.Message) int
}

// HeuristicEstimator is the cheap default: character count divided by a
// configured ratio for text, plus a fixed surcharge per image segment.
type HeuristicEstimator struct {
	CharsPerToken int
	ImageTokens   int
}

// NewHeuristicEstimator applies sane floors to the configured parameters.
func NewHeuristicEstimator(charsPerToken, imageTokens int) *HeuristicEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 3
	}
	if imageTokens <= 0 {
		imageTokens = 800
	}
	return &HeuristicEstimator{CharsPerToken: charsPerToken, ImageTokens: imageTokens}
}

func (e *HeuristicEstimator) Estimate(msg schemas.Message) int {
	total := 0
	for _, p := range msg.Parts {
		switch p.Type {
		case schemas.ContentText:
			total += len(p.Text) / e.CharsPerToken
		case schemas.ContentImage:
			total += e.ImageTokens
		}
	}
	return total
}

// TiktokenEstimator counts text tokens with a real BPE tokenizer. Images
// still carry the fixed surcharge since their cost is model-defined, not
// textual.
type TiktokenEstimator struct {
	encoding    *tiktoken.Tiktoken
	imageTokens int
}

// NewTiktokenEstimator loads the named encoding (e.g. "cl100k_base").
func NewTiktokenEstimator(encodingName string, imageTokens int) (*TiktokenEstimator, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	if imageTokens <= 0 {
		imageTokens = 800
	}
	return &TiktokenEstimator{encoding: enc, imageTokens: imageTokens}, nil
}

func (e *TiktokenEstimator) Estimate(msg schemas.Message) int {
	total := 0
	for _, p := range msg.Parts {
		switch p.Type {
		case schemas.ContentText:
			total += len(e.encoding.Encode(p.Text, nil, nil))
		case schemas.ContentImage:
			total += e.imageTokens
		}
	}
	return total
}
