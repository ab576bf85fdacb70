package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

func TestNewWithoutAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{APIKey: "  "}, nil)
	assert.True(t, errors.Is(err, ai.ErrMissingCredentials))
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"prose around", "Here you go:\n[{\"a\":1}]\nHope it helps", `[{"a":1}]`},
		{"whitespace", "  \n[1]\n ", `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestParseSuggestions(t *testing.T) {
	raw := "```json\n" + `[
  {"category": "Savings", "subcategory": "SIPs", "type": "expense", "confidence": 0.95},
  {"category": "Salary", "subcategory": "Monthly Salary", "type": "income", "confidence": 0.9}
]` + "\n```"

	got, err := ParseSuggestions(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ai.Suggestion{Category: "Savings", Subcategory: "SIPs", Type: core.Expense, Confidence: 0.95}, got[0])
	assert.Equal(t, core.Income, got[1].Type)
}

func TestParseSuggestionsRejectsGarbage(t *testing.T) {
	_, err := ParseSuggestions("I cannot help with that")
	assert.Error(t, err)

	_, err = ParseSuggestions(`{"category": "Savings"}`)
	assert.Error(t, err, "an object instead of an array is malformed")
}

func TestPromptListsTaxonomy(t *testing.T) {
	p := buildTaxonomyPrompt(taxonomy.Default())

	for _, c := range taxonomy.Default().AllCategories() {
		assert.Contains(t, p, "- "+c.Name+": ")
	}
	assert.True(t, strings.Index(p, "Expense categories") < strings.Index(p, "Income categories"))
	assert.Contains(t, p, "Other / Miscellaneous")
}
