package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fintrack/internal/classify"
	"fintrack/internal/core"
)

func TestIsWealthBuilding(t *testing.T) {
	tests := []struct {
		name string
		tx   core.Transaction
		want bool
	}{
		{"savings category", core.Transaction{Type: core.Expense, Category: "Savings", Subcategory: "SIPs"}, true},
		{"savings category without keyword", core.Transaction{Type: core.Expense, Category: "Savings", Subcategory: "Emergency"}, true},
		{"keyword in subcategory", core.Transaction{Type: core.Expense, Category: "Other", Subcategory: "Mutual Funds"}, true},
		{"keyword in description", core.Transaction{Type: core.Expense, Category: "Other", Description: "PPF deposit"}, true},
		{"plain expense", core.Transaction{Type: core.Expense, Category: "Living Expenses", Subcategory: "Grocery", Description: "veggies"}, false},
		{"income is never wealth building", core.Transaction{Type: core.Income, Category: "Savings", Description: "stock sale"}, false},
		{"word boundary", core.Transaction{Type: core.Expense, Category: "Entertainment", Description: "gossip mag"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.IsWealthBuilding(tt.tx))
		})
	}
}

func TestClassifierSavingsOutputIsWealthBuilding(t *testing.T) {
	c := classify.Default()
	for _, d := range []string{"Monthly SIP contribution", "FD renewal", "stocks", "AIF drawdown", "savings transfer"} {
		tx := core.Transaction{Description: d}
		c.Apply(&tx)
		assert.True(t, classify.IsWealthBuilding(tx), d)
	}
}

func TestEveryInvestmentKeywordClassifiesAsSavings(t *testing.T) {
	c := classify.Default()
	words := classify.InvestmentKeywords()
	for _, w := range []string{"ppf", "nps", "elss", "etf", "bonds", "invest", "saving", "savings"} {
		assert.Contains(t, words, w)
	}

	for _, w := range words {
		got := c.Classify(w, "")
		assert.Equal(t, "Savings", got.Category, w)
		assert.Equal(t, core.Expense, got.Type, w)

		tx := core.Transaction{Type: core.Expense, Category: "Other", Subcategory: "Miscellaneous", Description: w}
		assert.True(t, classify.IsWealthBuilding(tx), w)
	}
}
