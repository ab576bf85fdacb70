package aggregate

import (
	"iter"
	"slices"

	"fintrack/internal/core"
)

// MonthlyTrend yields totals for the most recent n months that contain at
// least one transaction, oldest first. Months without activity are skipped
// rather than reported as zero.
//
// The sequence is lazy and can be ranged over any number of times; each pass
// reads the snapshot captured when MonthlyTrend was called.
func (e *Engine) MonthlyTrend(txs []core.Transaction, budgets []core.Budget, n int) iter.Seq[core.MonthlyTotals] {
	return e.trend(txs, budgets, n, nil)
}

// MonthlyTrendThrough is MonthlyTrend restricted to months up to and
// including last.
func (e *Engine) MonthlyTrendThrough(txs []core.Transaction, budgets []core.Budget, n int, last core.Month) iter.Seq[core.MonthlyTotals] {
	return e.trend(txs, budgets, n, &last)
}

func (e *Engine) trend(txs []core.Transaction, budgets []core.Budget, n int, last *core.Month) iter.Seq[core.MonthlyTotals] {
	snapshot := slices.Clone(txs)
	plans := slices.Clone(budgets)

	return func(yield func(core.MonthlyTotals) bool) {
		if n <= 0 {
			return
		}
		months := monthsWithData(snapshot)
		if last != nil {
			cut := 0
			for cut < len(months) && !last.Before(months[cut]) {
				cut++
			}
			months = months[:cut]
		}
		if len(months) > n {
			months = months[len(months)-n:]
		}
		for _, m := range months {
			if !yield(e.MonthlyTotals(snapshot, plans, m)) {
				return
			}
		}
	}
}

// monthsWithData returns the distinct months of txs in ascending order.
func monthsWithData(txs []core.Transaction) []core.Month {
	seen := map[core.Month]struct{}{}
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		seen[tx.Date.Month()] = struct{}{}
	}
	months := make([]core.Month, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	slices.SortFunc(months, func(a, b core.Month) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return months
}
