package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "only blanks", input: []string{"", "  "}, expected: []string{}},
		{name: "single scope", input: []string{"report:read"}, expected: []string{"report:read"}},
		{
			name:     "case and whitespace duplicates collapse",
			input:    []string{" Report:Read ", "report:read", "REPORT:READ"},
			expected: []string{"report:read"},
		},
		{
			name:     "first seen order is kept",
			input:    []string{"b", "a", "b", "c"},
			expected: []string{"b", "a", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokens(tt.input))
		})
	}
}
