// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides token counting for prompt budgeting.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a token counter. All supported oracle models are
// approximated with the GPT-4 encoding, which is close enough for budgeting.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		// Counter degrades to character-based estimation
		return &TokenCounter{codec: nil}
	}
	return &TokenCounter{codec: codec}
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateTranscript drops the oldest lines of a newline-joined transcript
// until it fits within maxTokens. The newest exchanges carry the context the
// oracle needs, so truncation always removes from the head.
func (tc *TokenCounter) TruncateTranscript(transcript string, maxTokens int) string {
	if maxTokens <= 0 || tc.CountTokens(transcript) <= maxTokens {
		return transcript
	}

	lines := strings.Split(transcript, "\n")
	for len(lines) > 1 {
		lines = lines[1:]
		candidate := strings.Join(lines, "\n")
		if tc.CountTokens(candidate) <= maxTokens {
			return candidate
		}
	}
	return lines[0]
}
