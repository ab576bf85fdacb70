// Package taxonomy holds the static two-level category tree used to validate
// classifications, drive pickers and split budgets into income and expense.
package taxonomy

import (
	"fmt"
	"slices"

	"fintrack/internal/core"
)

const (
	OtherCategory    = "Other"
	OtherSubcategory = "Miscellaneous"
	SavingsCategory  = "Savings"
	DebtCategory     = "Debt"

	// FallbackColor is returned for categories outside the taxonomy.
	FallbackColor = "#9ca3af"
)

// Category is one node of the tree with its ordered leaves.
type Category struct {
	Name          string      `json:"name"`
	Type          core.TxType `json:"type"`
	Color         string      `json:"color"`
	Subcategories []string    `json:"subcategories"`
}

// Taxonomy is immutable after construction. Accessors return copies.
type Taxonomy struct {
	expense []Category
	income  []Category
	byName  map[string]Category
}

var defaultExpense = []Category{
	{Name: "Living Expenses", Color: "#f59e0b", Subcategories: []string{"Grocery", "Household Supplies", "Clothing", "Personal Care", "Mobile & Internet"}},
	{Name: "Rental", Color: "#ef4444", Subcategories: []string{"House Rent", "Maintenance", "Property Tax"}},
	{Name: "Debt", Color: "#dc2626", Subcategories: []string{"Home Loan", "Car Loan", "Personal Loan", "Credit Card", "Education Loan"}},
	{Name: "Education", Color: "#6366f1", Subcategories: []string{"School Fees", "Tuition", "Books & Supplies", "Online Courses"}},
	{Name: "Transportation", Color: "#0ea5e9", Subcategories: []string{"Fuel", "Public Transport", "Taxi & Rideshare", "Vehicle Maintenance", "Parking & Tolls"}},
	{Name: "Entertainment", Color: "#ec4899", Subcategories: []string{"Dining Out", "Movies & Events", "Subscriptions", "Travel", "Hobbies"}},
	{Name: "Healthcare", Color: "#14b8a6", Subcategories: []string{"Doctor", "Pharmacy", "Insurance", "Fitness"}},
	{Name: "Utilities", Color: "#a855f7", Subcategories: []string{"Electricity", "Water", "Gas", "Waste"}},
	{Name: SavingsCategory, Color: "#22c55e", Subcategories: []string{"SIPs", "Mutual Funds", "Stocks", "Fixed Deposits", "Recurring Deposits", "AIF", "Investment Savings"}},
	{Name: OtherCategory, Color: FallbackColor, Subcategories: []string{OtherSubcategory}},
}

var defaultIncome = []Category{
	{Name: "Salary", Color: "#16a34a", Subcategories: []string{"Monthly Salary", "Bonus", "Freelance", "Commission", "Pension"}},
	{Name: "Dividend", Color: "#15803d", Subcategories: []string{"Stock Dividend", "Interest"}},
	{Name: "Rental Income", Color: "#166534", Subcategories: []string{"Residential", "Commercial"}},
	{Name: "Other Income", Color: "#4ade80", Subcategories: []string{"Refund", "Cashback", "Gift"}},
}

var std = MustNew(defaultExpense, defaultIncome)

// Default returns the built-in taxonomy.
func Default() *Taxonomy { return std }

// New builds a taxonomy from the two trees. Category names must be unique
// within a tree and must not appear in both.
func New(expense, income []Category) (*Taxonomy, error) {
	t := &Taxonomy{
		expense: cloneTree(expense, core.Expense),
		income:  cloneTree(income, core.Income),
		byName:  make(map[string]Category, len(expense)+len(income)),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for _, c := range t.expense {
		t.byName[c.Name] = c
	}
	for _, c := range t.income {
		t.byName[c.Name] = c
	}
	return t, nil
}

func MustNew(expense, income []Category) *Taxonomy {
	t, err := New(expense, income)
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks that each tree has unique names and that the trees are disjoint.
func (t *Taxonomy) Validate() error {
	seen := map[string]core.TxType{}
	for _, tree := range [][]Category{t.expense, t.income} {
		for _, c := range tree {
			if c.Name == "" {
				return fmt.Errorf("taxonomy: empty category name")
			}
			if prev, ok := seen[c.Name]; ok {
				if prev == c.Type {
					return fmt.Errorf("taxonomy: duplicate %s category %q", c.Type, c.Name)
				}
				return fmt.Errorf("taxonomy: category %q in both income and expense trees", c.Name)
			}
			seen[c.Name] = c.Type
		}
	}
	return nil
}

// CategoriesForType returns the tree for t in definition order.
func (t *Taxonomy) CategoriesForType(tt core.TxType) []Category {
	if tt == core.Income {
		return cloneTree(t.income, core.Income)
	}
	return cloneTree(t.expense, core.Expense)
}

// AllCategories returns expense categories followed by income categories.
// On a name collision the income entry replaces the expense one in place.
func (t *Taxonomy) AllCategories() []Category {
	all := cloneTree(t.expense, core.Expense)
	index := make(map[string]int, len(all))
	for i, c := range all {
		index[c.Name] = i
	}
	for _, c := range cloneTree(t.income, core.Income) {
		if i, ok := index[c.Name]; ok {
			all[i] = c
			continue
		}
		index[c.Name] = len(all)
		all = append(all, c)
	}
	return all
}

// Lookup returns the category and whether it exists.
func (t *Taxonomy) Lookup(name string) (Category, bool) {
	c, ok := t.byName[name]
	if !ok {
		return Category{}, false
	}
	c.Subcategories = slices.Clone(c.Subcategories)
	return c, true
}

// ColorFor never fails; unknown categories get FallbackColor.
func (t *Taxonomy) ColorFor(name string) string {
	if c, ok := t.byName[name]; ok && c.Color != "" {
		return c.Color
	}
	return FallbackColor
}

// TypeOf reports the tree a category belongs to.
func (t *Taxonomy) TypeOf(name string) (core.TxType, bool) {
	c, ok := t.byName[name]
	return c.Type, ok
}

func (t *Taxonomy) IsIncomeCategory(name string) bool {
	tt, ok := t.TypeOf(name)
	return ok && tt == core.Income
}

func (t *Taxonomy) IsExpenseCategory(name string) bool {
	tt, ok := t.TypeOf(name)
	return ok && tt == core.Expense
}

// HasSubcategory reports whether sub is a leaf of category.
func (t *Taxonomy) HasSubcategory(category, sub string) bool {
	c, ok := t.byName[category]
	return ok && slices.Contains(c.Subcategories, sub)
}

// Order returns the display position of a category, or -1 when unknown.
func (t *Taxonomy) Order(name string) int {
	for i, c := range t.AllCategories() {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func cloneTree(tree []Category, tt core.TxType) []Category {
	out := make([]Category, len(tree))
	for i, c := range tree {
		c.Type = tt
		c.Subcategories = slices.Clone(c.Subcategories)
		out[i] = c
	}
	return out
}
