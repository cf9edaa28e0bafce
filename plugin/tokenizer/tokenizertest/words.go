// Package tokenizertest provides a deterministic tokenizer for tests.
package tokenizertest

import "strings"

// Words counts one token per whitespace-separated field.
// Counting is additive across whitespace-joined strings, which keeps budget tests exact.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}

func (Words) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text
	}
	return strings.Join(fields[:maxTokens], " ")
}
