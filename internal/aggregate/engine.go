// Package aggregate computes the derived views of a transaction snapshot:
// monthly totals, category rollups, budget variance, savings and debt ratios,
// trend series and the dashboard that combines them.
//
// Every function is pure. Nothing is cached or mutated here; callers pass the
// full snapshot on each call.
package aggregate

import (
	"slices"
	"sort"

	"fintrack/internal/classify"
	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

// DetectorFunc decides whether a transaction is savings or investment outflow.
type DetectorFunc func(core.Transaction) bool

// Engine is stateless apart from its reference data and may be shared.
type Engine struct {
	tax      *taxonomy.Taxonomy
	isWealth DetectorFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithDetector replaces the wealth-building predicate.
func WithDetector(fn DetectorFunc) Option {
	return func(e *Engine) { e.isWealth = fn }
}

// NewEngine returns an engine over tax. A nil tax uses the default taxonomy.
func NewEngine(tax *taxonomy.Taxonomy, opts ...Option) *Engine {
	if tax == nil {
		tax = taxonomy.Default()
	}
	e := &Engine{tax: tax, isWealth: classify.IsWealthBuilding}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Period is an inclusive date range. A zero bound is open.
type Period struct {
	From core.Date
	To   core.Date
}

// MonthPeriod covers every day of m.
func MonthPeriod(m core.Month) Period {
	return Period{From: m.Start(), To: m.End()}
}

// Through covers everything up to and including d.
func Through(d core.Date) Period {
	return Period{To: d}
}

func (p Period) Contains(d core.Date) bool {
	if !p.From.IsZero() && d.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && d.After(p.To) {
		return false
	}
	return true
}

// MonthlyTotals sums the month's income and expenses and splits its budgets
// by taxonomy tree. Transactions in unknown categories still count by type;
// budgets in unknown categories count toward neither budgeted bucket.
func (e *Engine) MonthlyTotals(txs []core.Transaction, budgets []core.Budget, month core.Month) core.MonthlyTotals {
	out := core.MonthlyTotals{Month: month}
	for _, tx := range txs {
		if !month.Contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case core.Income:
			out.Income = out.Income.Add(tx.Amount)
		case core.Expense:
			out.Expenses = out.Expenses.Add(tx.Amount)
		}
	}
	for _, b := range budgets {
		if b.Month != month {
			continue
		}
		switch {
		case e.tax.IsIncomeCategory(b.Category):
			out.BudgetedIncome = out.BudgetedIncome.Add(b.Amount)
		case e.tax.IsExpenseCategory(b.Category):
			out.BudgetedExpenses = out.BudgetedExpenses.Add(b.Amount)
		}
	}
	return out
}

// CategoryTotals groups transactions in p by category. Categories with no
// transactions are absent.
func (e *Engine) CategoryTotals(txs []core.Transaction, p Period) core.CategoryTotals {
	out := core.CategoryTotals{}
	for _, tx := range txs {
		if !p.Contains(tx.Date) {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// BudgetVariance compares actual to budget. The percentage is 0 when the
// budget is not positive.
func BudgetVariance(actual, budget core.Money) core.Variance {
	diff := actual.Sub(budget)
	return core.Variance{
		Amount:     diff,
		Percentage: diff.Percent(budget),
		IsOver:     diff.IsPositive(),
	}
}

// CategoryVariances returns one entry per category budgeted in month, in
// taxonomy order with unknown categories last.
func (e *Engine) CategoryVariances(txs []core.Transaction, budgets []core.Budget, month core.Month) []core.CategoryVariance {
	planned := map[string]core.Money{}
	for _, b := range budgets {
		if b.Month == month {
			planned[b.Category] = planned[b.Category].Add(b.Amount)
		}
	}
	if len(planned) == 0 {
		return nil
	}

	actual := e.CategoryTotals(txs, MonthPeriod(month))
	cats := make([]string, 0, len(planned))
	for c := range planned {
		cats = append(cats, c)
	}
	e.sortCategories(cats)

	out := make([]core.CategoryVariance, 0, len(cats))
	for _, c := range cats {
		out = append(out, core.CategoryVariance{
			Category: c,
			Actual:   actual[c],
			Budget:   planned[c],
			Variance: BudgetVariance(actual[c], planned[c]),
		})
	}
	return out
}

// SavingsRate is savings as a percentage of income, or 0 without income.
func SavingsRate(income, savings core.Money) float64 {
	return savings.Percent(income)
}

// DebtToIncomeRatio is the percentage of income spent on the Debt category.
func (e *Engine) DebtToIncomeRatio(txs []core.Transaction, income core.Money) float64 {
	var debt core.Money
	for _, tx := range txs {
		if tx.Type == core.Expense && tx.Category == taxonomy.DebtCategory {
			debt = debt.Add(tx.Amount)
		}
	}
	return debt.Percent(income)
}

// NetWorth is the cumulative wealth-building outflow dated on or before asOf.
func (e *Engine) NetWorth(txs []core.Transaction, asOf core.Date) core.Money {
	return e.SavingsOutflow(txs, Through(asOf))
}

// SavingsOutflow sums wealth-building transactions in p.
func (e *Engine) SavingsOutflow(txs []core.Transaction, p Period) core.Money {
	var total core.Money
	for _, tx := range txs {
		if p.Contains(tx.Date) && e.isWealth(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// SpendingOutflow sums expenses in p that are not wealth building.
func (e *Engine) SpendingOutflow(txs []core.Transaction, p Period) core.Money {
	var total core.Money
	for _, tx := range txs {
		if tx.Type == core.Expense && p.Contains(tx.Date) && !e.isWealth(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// KPIs computes the headline figures over everything dated on or before asOf.
// Averages divide by the number of months that contain data.
func (e *Engine) KPIs(txs []core.Transaction, asOf core.Date) core.KPIs {
	window := filter(txs, Through(asOf))

	var income, expense core.Money
	for _, tx := range window {
		switch tx.Type {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	months := len(monthsWithData(window))
	netWorth := e.NetWorth(window, asOf)

	return core.KPIs{
		NetWorth:          netWorth,
		AvgMonthlyIncome:  income.DivInt(months),
		AvgMonthlyExpense: expense.DivInt(months),
		SavingsRatio:      SavingsRate(income, netWorth),
		DebtToIncomeRatio: e.DebtToIncomeRatio(window, income),
	}
}

// Dashboard assembles every view for month. The trend covers at most
// trendMonths months with data, ending at month.
func (e *Engine) Dashboard(txs []core.Transaction, budgets []core.Budget, month core.Month, trendMonths int) core.Dashboard {
	period := MonthPeriod(month)

	var expenses []core.Transaction
	for _, tx := range txs {
		if tx.Type == core.Expense && period.Contains(tx.Date) {
			expenses = append(expenses, tx)
		}
	}
	totals := e.CategoryTotals(expenses, period)
	cats := make([]string, 0, len(totals))
	for c := range totals {
		cats = append(cats, c)
	}
	e.sortCategories(cats)
	byCategory := make([]core.CategoryAmount, 0, len(cats))
	for _, c := range cats {
		byCategory = append(byCategory, core.CategoryAmount{Name: c, Color: e.tax.ColorFor(c), Amount: totals[c]})
	}

	return core.Dashboard{
		Month:      month,
		Totals:     e.MonthlyTotals(txs, budgets, month),
		Savings:    e.SavingsOutflow(txs, period),
		Spending:   e.SpendingOutflow(txs, period),
		ByCategory: byCategory,
		Variances:  e.CategoryVariances(txs, budgets, month),
		KPIs:       e.KPIs(txs, month.End()),
		Trend:      slices.Collect(e.MonthlyTrendThrough(txs, budgets, trendMonths, month)),
	}
}

// sortCategories orders names by taxonomy position, unknown names last and
// alphabetically.
func (e *Engine) sortCategories(names []string) {
	order := map[string]int{}
	for i, c := range e.tax.AllCategories() {
		order[c.Name] = i
	}
	sort.SliceStable(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
}

func filter(txs []core.Transaction, p Period) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if p.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}
