// Package memory is a process-local storage.Repository used for tests and
// DATA_BACKEND=memory.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type budgetKey struct {
	owner    string
	category string
	month    core.Month
}

type row struct {
	tx  core.Transaction
	seq int64
}

type Store struct {
	mu      sync.Mutex
	locks   storage.OwnerLocks
	seq     int64
	txs     map[string]row
	budgets map[budgetKey]core.Budget
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:     make(map[string]row),
		budgets: make(map[budgetKey]core.Budget),
	}
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, r := range s.txs {
		if r.tx.OwnerID == ownerID {
			out = append(out, r.tx)
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return r.tx, nil
}

// ListUncategorized returns the oldest inserts first.
func (s *Store) ListUncategorized(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []row
	for _, r := range s.txs {
		if r.tx.Status == core.StatusUncategorized {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(a.seq, b.seq) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.tx
	}
	return out, nil
}

func (s *Store) put(tx core.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("upsert transaction: missing id")
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	r, ok := s.txs[tx.ID]
	if !ok {
		s.seq++
		r.seq = s.seq
	}
	r.tx = tx
	s.txs[tx.ID] = r
	return nil
}

func (s *Store) UpsertTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(tx)
}

// UpsertTransactions is all or nothing, like the SQL implementation.
func (s *Store) UpsertTransactions(_ context.Context, txs []core.Transaction) error {
	for _, tx := range txs {
		if tx.ID == "" {
			return fmt.Errorf("upsert transaction: missing id")
		}
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		_ = s.put(tx)
	}
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.txs[tx.ID]
	if !ok || r.tx.OwnerID != tx.OwnerID {
		return storage.ErrNotFound
	}
	r.tx = tx
	s.txs[tx.ID] = r
	return nil
}

func (s *Store) ApplyClassifications(_ context.Context, txs []core.Transaction) (int, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("apply classification %s: %w", tx.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, tx := range txs {
		r, ok := s.txs[tx.ID]
		if !ok || r.tx.OwnerID != tx.OwnerID || r.tx.Status == core.StatusUser {
			continue
		}
		r.tx.Category = tx.Category
		r.tx.Subcategory = tx.Subcategory
		r.tx.Type = tx.Type
		r.tx.Status = tx.Status
		r.tx.Confidence = tx.Confidence
		s.txs[tx.ID] = r
		applied++
	}
	return applied, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) deleteWhere(match func(core.Transaction) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.txs {
		if match(r.tx) {
			delete(s.txs, id)
			n++
		}
	}
	return n
}

func (s *Store) DeleteTransactionsInMonth(_ context.Context, ownerID string, month core.Month) (int64, error) {
	return s.deleteWhere(func(tx core.Transaction) bool {
		return tx.OwnerID == ownerID && month.Contains(tx.Date)
	}), nil
}

func (s *Store) DeleteAllTransactions(_ context.Context, ownerID string) (int64, error) {
	return s.deleteWhere(func(tx core.Transaction) bool { return tx.OwnerID == ownerID }), nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for k, b := range s.budgets {
		if k.owner == ownerID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b core.Budget) int {
		if a.Month != b.Month {
			if a.Month.Before(b.Month) {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out, nil
}

func (s *Store) ReplaceBudgetsForMonths(_ context.Context, ownerID string, budgets []core.Budget) error {
	months, err := storage.CheckBudgets(ownerID, budgets)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.budgets {
		if k.owner == ownerID && slices.Contains(months, k.month) {
			delete(s.budgets, k)
		}
	}
	for _, b := range budgets {
		s.budgets[budgetKey{ownerID, b.Category, b.Month}] = b
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
