package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// sampleNamespace seeds the name-based ids of generated rows, so generating
// the same month twice overwrites instead of duplicating.
var sampleNamespace = uuid.MustParse("5d0c3b5e-7f2a-4c61-9a0e-3f1f0d6c8b21")

type sampleEntry struct {
	day         int
	description string
	amount      int64
	// step is added once per month of distance from the oldest month.
	step int64
	typ  core.TxType
}

var sampleEntries = []sampleEntry{
	{day: 1, description: "Salary credited", amount: 5000, typ: core.Income},
	{day: 3, description: "House rent", amount: 1500, typ: core.Expense},
	{day: 5, description: "Monthly SIP contribution", amount: 500, typ: core.Expense},
	{day: 7, description: "Grocery shopping at supermarket", amount: 380, step: 10, typ: core.Expense},
	{day: 10, description: "Electricity bill", amount: 80, step: 2, typ: core.Expense},
	{day: 12, description: "Car loan EMI", amount: 300, typ: core.Expense},
	{day: 15, description: "Dinner at restaurant", amount: 90, step: 5, typ: core.Expense},
	{day: 18, description: "Uber ride to office", amount: 40, step: 3, typ: core.Expense},
	{day: 20, description: "Netflix subscription", amount: 15, typ: core.Expense},
	{day: 25, description: "Pharmacy medicines", amount: 30, step: 1, typ: core.Expense},
}

var sampleBudgets = []struct {
	category string
	amount   int64
}{
	{"Living Expenses", 450},
	{"Rental", 1500},
	{"Debt", 300},
	{"Entertainment", 150},
	{"Transportation", 100},
	{"Utilities", 100},
	{"Healthcare", 50},
	{"Savings", 500},
}

// quarterly dividend on the last month of each quarter
const sampleDividend = 120

// GenerateSampleData writes the same transactions and budgets for the
// months months ending with now's month every time it is called. It returns
// the number of transactions written.
func (s *TransactionService) GenerateSampleData(ctx context.Context, ownerID string, months int, now time.Time) (int, error) {
	if months < 1 || months > 24 {
		return 0, fmt.Errorf("%w: months must be between 1 and 24", core.ErrInvalidMonth)
	}
	if ownerID == "" {
		return 0, core.ErrMissingOwner
	}

	last := core.DateOf(now).Month()
	first := last
	for range months - 1 {
		first = first.Prev()
	}

	var (
		txs     []core.Transaction
		budgets []core.Budget
	)
	m := first
	for i := range months {
		for _, e := range sampleEntries {
			txs = append(txs, s.sampleTx(ownerID, m, e.day, e.description, e.amount+e.step*int64(i), e.typ))
		}
		if m.Month%3 == 0 {
			txs = append(txs, s.sampleTx(ownerID, m, 28, "Quarterly dividend", sampleDividend, core.Income))
		}
		for _, b := range sampleBudgets {
			budgets = append(budgets, core.Budget{OwnerID: ownerID, Category: b.category, Amount: core.MoneyFromInt(b.amount), Month: m})
		}
		m = m.Next()
	}

	if err := s.storeNew(ctx, txs); err != nil {
		return 0, err
	}
	if err := s.ReplaceBudgets(ctx, ownerID, budgets); err != nil {
		return 0, err
	}

	fields := log.NewFields().WithOwner(ownerID)
	fields[log.FieldCount] = len(txs)
	fields[log.FieldMonth] = last.String()
	s.logger.InfoContext(ctx, "Sample data generated", fields.ToSlice()...)
	return len(txs), nil
}

func (s *TransactionService) sampleTx(ownerID string, m core.Month, day int, description string, amount int64, tt core.TxType) core.Transaction {
	date := core.NewDate(m.Year, int(m.Month), min(day, m.End().Day()))
	id := uuid.NewSHA1(sampleNamespace, []byte(ownerID+"|"+date.String()+"|"+description))
	tx := core.Transaction{
		ID:          id.String(),
		OwnerID:     ownerID,
		Date:        date,
		Amount:      core.MoneyFromInt(amount),
		Description: description,
		Type:        tt,
	}
	tx.Uncategorize()
	return tx
}
