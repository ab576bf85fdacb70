// Package classify maps free-text descriptions to taxonomy categories with an
// ordered keyword rule set, and decides which transactions build wealth.
package classify

import (
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

// FallbackRule names the result returned when no rule matched.
const FallbackRule = "fallback"

// Result is the outcome of classifying one description.
type Result struct {
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Type        core.TxType `json:"type"`
	Confidence  float64     `json:"confidence"`
	Rule        string      `json:"rule"`
}

// Classifier evaluates rules in order; the first match wins.
// It is safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

var defaultClassifier = sync.OnceValue(func() *Classifier {
	c, err := New(taxonomy.Default(), DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the classifier built from the embedded rules and the
// default taxonomy.
func Default() *Classifier { return defaultClassifier() }

// New validates rules against tax and compiles them.
func New(tax *taxonomy.Taxonomy, rules []Rule) (*Classifier, error) {
	compiled, err := compile(tax, rules)
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: compiled}, nil
}

// Classify never fails. Description and existing subcategory are matched
// independently; a rule applies if either contains one of its keywords.
func (c *Classifier) Classify(description, existingSubcategory string) Result {
	desc := normalize(description)
	sub := normalize(existingSubcategory)

	for _, r := range c.rules {
		if !r.keywords.matches(desc) && !r.keywords.matches(sub) {
			continue
		}
		res := Result{
			Category:    r.category,
			Subcategory: r.subcategory,
			Type:        r.txType,
			Confidence:  r.confidence,
			Rule:        r.name,
		}
		for _, ref := range r.refine {
			if ref.keywords.matches(desc) || ref.keywords.matches(sub) {
				res.Category = ref.category
				res.Subcategory = ref.subcategory
				break
			}
		}
		return res
	}

	return Fallback()
}

// Fallback is the result for input no rule recognises.
func Fallback() Result {
	return Result{
		Category:    taxonomy.OtherCategory,
		Subcategory: taxonomy.OtherSubcategory,
		Type:        core.Expense,
		Confidence:  ConfidenceFallback,
		Rule:        FallbackRule,
	}
}

// Apply classifies tx in place and marks it as rule-classified.
func (c *Classifier) Apply(tx *core.Transaction) {
	res := c.Classify(tx.Description, tx.Subcategory)
	tx.Category = res.Category
	tx.Subcategory = res.Subcategory
	tx.Type = res.Type
	tx.Confidence = res.Confidence
	tx.Status = core.StatusRule
}
