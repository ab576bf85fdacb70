package classify

import (
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

// investmentKeywords are the embedded rule keywords that land in the savings
// category. The detector and the classifier read the same rules file, so a
// description the classifier files under Savings is also wealth building.
var investmentKeywords = sync.OnceValue(func() keywordSet {
	return newKeywordSet(savingsKeywords(DefaultRules())...)
})

func savingsKeywords(rules []Rule) []string {
	var words []string
	for _, r := range rules {
		if r.Category == taxonomy.SavingsCategory {
			words = append(words, r.Keywords...)
		}
		for _, ref := range r.Refine {
			cat := ref.Category
			if cat == "" {
				cat = r.Category
			}
			if cat == taxonomy.SavingsCategory {
				words = append(words, ref.Keywords...)
			}
		}
	}
	return words
}

// InvestmentKeywords lists the terms that mark an expense as wealth building.
func InvestmentKeywords() []string {
	kw := investmentKeywords()
	out := make([]string, len(kw))
	for i, w := range kw {
		out[i] = strings.TrimSpace(w)
	}
	return out
}

// IsWealthBuilding reports whether tx is savings or investment outflow
// rather than consumption. Net worth, savings rate and non-savings expense
// totals all go through it.
func IsWealthBuilding(tx core.Transaction) bool {
	if tx.Type != core.Expense {
		return false
	}
	if tx.Category == taxonomy.SavingsCategory {
		return true
	}
	kw := investmentKeywords()
	return kw.matches(normalize(tx.Subcategory)) || kw.matches(normalize(tx.Description))
}
