package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateBudget = errors.New("duplicate budget for category and month")
)

// Repository persists transactions and budgets. Implementations are safe for
// concurrent use.
type Repository interface {
	// ListTransactions returns the owner's transactions ordered by date, then id.
	ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	// ListUncategorized returns up to limit transactions across owners that
	// still wait for classification, oldest first.
	ListUncategorized(ctx context.Context, limit int) ([]core.Transaction, error)
	UpsertTransaction(ctx context.Context, tx core.Transaction) error
	UpsertTransactions(ctx context.Context, txs []core.Transaction) error
	// UpdateTransaction overwrites an existing row of the same owner. It never
	// inserts: a deleted row yields ErrNotFound.
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	// ApplyClassifications writes the category, subcategory, type, status and
	// confidence of each transaction onto its stored row, skipping rows that
	// were deleted or edited by the user since they were read. It returns how
	// many rows were written.
	ApplyClassifications(ctx context.Context, txs []core.Transaction) (int, error)
	DeleteTransaction(ctx context.Context, id string) error
	DeleteTransactionsInMonth(ctx context.Context, ownerID string, month core.Month) (int64, error)
	DeleteAllTransactions(ctx context.Context, ownerID string) (int64, error)

	ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
	// ReplaceBudgetsForMonths atomically replaces every budget of the owner in
	// each month that appears in budgets.
	ReplaceBudgetsForMonths(ctx context.Context, ownerID string, budgets []core.Budget) error

	Ping(ctx context.Context) error
	Close() error
}

// CheckBudgets rejects budgets that belong to another owner, fail validation
// or repeat a (category, month) pair. It returns the distinct months in
// input order.
func CheckBudgets(ownerID string, budgets []core.Budget) ([]core.Month, error) {
	type key struct {
		category string
		month    core.Month
	}
	seen := make(map[key]struct{}, len(budgets))
	var months []core.Month
	monthSeen := make(map[core.Month]struct{})
	for _, b := range budgets {
		if b.OwnerID != ownerID {
			return nil, core.ErrMissingOwner
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		k := key{b.Category, b.Month}
		if _, dup := seen[k]; dup {
			return nil, ErrDuplicateBudget
		}
		seen[k] = struct{}{}
		if _, ok := monthSeen[b.Month]; !ok {
			monthSeen[b.Month] = struct{}{}
			months = append(months, b.Month)
		}
	}
	return months, nil
}
