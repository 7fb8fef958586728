package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "AAPL:Technology",
			expected: []string{"AAPL:Technology"},
		},
		{
			name:     "two values",
			input:    "AAPL:Technology, XOM:Energy",
			expected: []string{"AAPL:Technology", "XOM:Energy"},
		},
		{
			name:     "varied spacing",
			input:    "AAPL,  MSFT , GOOG",
			expected: []string{"AAPL", "MSFT", "GOOG"},
		},
		{
			name:     "trailing comma",
			input:    "AAPL,",
			expected: []string{"AAPL"},
		},
		{
			name:     "leading comma",
			input:    ",MSFT",
			expected: []string{"MSFT"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,AAPL,,MSFT,,",
			expected: []string{"AAPL", "MSFT"},
		},
		{
			name:     "value with internal spaces preserved",
			input:    "BRK.B:Consumer Goods, PLD:Real Estate",
			expected: []string{"BRK.B:Consumer Goods", "PLD:Real Estate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
