package classify

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

// Tier sets the confidence reported for every match of a rule.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
)

const (
	ConfidencePrimary   = 0.9
	ConfidenceSecondary = 0.75
	ConfidenceFallback  = 0.3
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule is one keyword group as written in a rules file.
type Rule struct {
	Name        string       `yaml:"name"`
	Tier        Tier         `yaml:"tier"`
	Type        core.TxType  `yaml:"type"`
	Category    string       `yaml:"category"`
	Subcategory string       `yaml:"subcategory"`
	Keywords    []string     `yaml:"keywords"`
	Refine      []Refinement `yaml:"refine"`
}

// Refinement narrows a matched rule. An empty Category keeps the rule's.
type Refinement struct {
	Category    string   `yaml:"category"`
	Subcategory string   `yaml:"subcategory"`
	Keywords    []string `yaml:"keywords"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

func (t Tier) confidence() (float64, bool) {
	switch t {
	case TierPrimary:
		return ConfidencePrimary, true
	case TierSecondary:
		return ConfidenceSecondary, true
	}
	return 0, false
}

// LoadRules decodes a rules file. Order in the file is evaluation order.
func LoadRules(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("decode rules: no rules defined")
	}
	return f.Rules, nil
}

// LoadRulesFile reads rules from path.
func LoadRulesFile(path string) ([]Rule, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer fh.Close()
	return LoadRules(fh)
}

// DefaultRules returns the embedded rule set.
func DefaultRules() []Rule {
	rules, err := LoadRules(bytes.NewReader(defaultRulesYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded rules: %v", err))
	}
	return rules
}

type compiledRefinement struct {
	category    string
	subcategory string
	keywords    keywordSet
}

type compiledRule struct {
	name        string
	txType      core.TxType
	category    string
	subcategory string
	confidence  float64
	keywords    keywordSet
	refine      []compiledRefinement
}

func compile(tax *taxonomy.Taxonomy, rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
		}
		conf, ok := r.Tier.confidence()
		if !ok {
			return nil, fmt.Errorf("%s: unknown tier %q", name, r.Tier)
		}
		if err := checkTarget(tax, r.Type, r.Category, r.Subcategory); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		cr := compiledRule{
			name:        name,
			txType:      r.Type,
			category:    r.Category,
			subcategory: r.Subcategory,
			confidence:  conf,
		}
		words := append([]string{}, r.Keywords...)
		for j, ref := range r.Refine {
			cat := ref.Category
			if cat == "" {
				cat = r.Category
			}
			if err := checkTarget(tax, r.Type, cat, ref.Subcategory); err != nil {
				return nil, fmt.Errorf("%s refine[%d]: %w", name, j, err)
			}
			kw := newKeywordSet(ref.Keywords...)
			if len(kw) == 0 {
				return nil, fmt.Errorf("%s refine[%d]: no keywords", name, j)
			}
			cr.refine = append(cr.refine, compiledRefinement{category: cat, subcategory: ref.Subcategory, keywords: kw})
			words = append(words, ref.Keywords...)
		}
		cr.keywords = newKeywordSet(words...)
		if len(cr.keywords) == 0 {
			return nil, fmt.Errorf("%s: no keywords", name)
		}
		out = append(out, cr)
	}
	return out, nil
}

func checkTarget(tax *taxonomy.Taxonomy, tt core.TxType, category, sub string) error {
	if !tt.Valid() {
		return fmt.Errorf("invalid type %q", tt)
	}
	got, ok := tax.TypeOf(category)
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	if got != tt {
		return fmt.Errorf("category %q is %s, rule says %s", category, got, tt)
	}
	if !tax.HasSubcategory(category, sub) {
		return fmt.Errorf("unknown subcategory %q in %q", sub, category)
	}
	return nil
}
