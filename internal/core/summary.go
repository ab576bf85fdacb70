package core

// MonthlyTotals summarises one calendar month.
type MonthlyTotals struct {
	Month            Month `json:"month"`
	Income           Money `json:"income"`
	Expenses         Money `json:"expenses"`
	BudgetedIncome   Money `json:"budgeted_income"`
	BudgetedExpenses Money `json:"budgeted_expenses"`
}

// Net is income minus expenses.
func (t MonthlyTotals) Net() Money { return t.Income.Sub(t.Expenses) }

// CategoryTotals maps a category name to its summed amount. Categories
// without transactions have no entry.
type CategoryTotals map[string]Money

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Amount Money  `json:"amount"`
}

// Variance compares an actual amount against a planned one.
type Variance struct {
	Amount     Money   `json:"amount"`
	Percentage float64 `json:"percentage"`
	IsOver     bool    `json:"is_over"`
}

type CategoryVariance struct {
	Category string   `json:"category"`
	Actual   Money    `json:"actual"`
	Budget   Money    `json:"budget"`
	Variance Variance `json:"variance"`
}

// KPIs are the headline figures of the dashboard.
type KPIs struct {
	NetWorth          Money   `json:"net_worth"`
	AvgMonthlyIncome  Money   `json:"avg_monthly_income"`
	AvgMonthlyExpense Money   `json:"avg_monthly_expense"`
	SavingsRatio      float64 `json:"savings_ratio"`
	DebtToIncomeRatio float64 `json:"debt_to_income_ratio"`
}

// Dashboard is everything shown for one month.
type Dashboard struct {
	Month      Month              `json:"month"`
	Totals     MonthlyTotals      `json:"totals"`
	Savings    Money              `json:"savings"`
	Spending   Money              `json:"spending"`
	ByCategory []CategoryAmount   `json:"by_category"`
	Variances  []CategoryVariance `json:"variances"`
	KPIs       KPIs               `json:"kpis"`
	Trend      []MonthlyTotals    `json:"trend"`
}
