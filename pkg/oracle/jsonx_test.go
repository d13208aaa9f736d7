package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"fenced with tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"fenced without tag", "```\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"prose around object", `Sure! Here you go: {"a": 1} Hope that helps.`, `{"a": 1}`, true},
		{"nested objects", `{"a": {"b": {"c": 2}}}`, `{"a": {"b": {"c": 2}}}`, true},
		{"braces inside strings", `{"a": "has } and { inside"}`, `{"a": "has } and { inside"}`, true},
		{"escaped quote", `{"a": "quote \" brace }"}`, `{"a": "quote \" brace }"}`, true},
		{"no object", "there is no json here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
		{"invalid inside braces", `{not json}`, "", false},
		{"empty input", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
