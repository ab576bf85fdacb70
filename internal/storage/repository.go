package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

const transactionColumns = `id, owner_id, date, category, subcategory, amount, description, type, status, confidence`

type SQLiteRepository struct {
	db     *sql.DB
	locks  OwnerLocks
	logger *log.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logger := log.Default(log.ComponentStorage)
	if err := RunMigrations(dbPath, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx             core.Transaction
		date, amount   string
		txType, status string
	)
	err := row.Scan(&tx.ID, &tx.OwnerID, &date, &tx.Category, &tx.Subcategory,
		&amount, &tx.Description, &txType, &status, &tx.Confidence)
	if err != nil {
		return core.Transaction{}, err
	}

	if tx.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w: %v", tx.ID, core.ErrInvalidAmount, err)
	}
	tx.Amount = core.NewMoney(d)
	tx.Type = core.TxType(txType)
	tx.Status = core.ClassificationStatus(status)
	return tx, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? ORDER BY date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListUncategorized(ctx context.Context, limit int) ([]core.Transaction, error) {
	txs, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(core.StatusUncategorized), limit)
	if err != nil {
		return nil, fmt.Errorf("list uncategorized transactions: %w", err)
	}
	return txs, nil
}

const upsertTransactionSQL = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    owner_id = excluded.owner_id,
    date = excluded.date,
    category = excluded.category,
    subcategory = excluded.subcategory,
    amount = excluded.amount,
    description = excluded.description,
    type = excluded.type,
    status = excluded.status,
    confidence = excluded.confidence`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, tx core.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("upsert transaction: missing id")
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, upsertTransactionSQL,
		tx.ID, tx.OwnerID, tx.Date.String(), tx.Category, tx.Subcategory,
		tx.Amount.Decimal().String(), tx.Description, string(tx.Type), string(tx.Status), tx.Confidence)
	return err
}

func (r *SQLiteRepository) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	if err := upsert(ctx, r.db, tx); err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}
	r.logger.DebugContext(ctx, "Transaction saved", log.FieldTransactionID, tx.ID, log.FieldStatus, string(tx.Status))
	return nil
}

// UpsertTransactions writes all rows in one SQL transaction.
func (r *SQLiteRepository) UpsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := upsert(ctx, sqlTx, tx); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.InfoContext(ctx, "Transactions saved", log.FieldCount, len(txs))
	return nil
}

const updateTransactionSQL = `
UPDATE transactions SET
    date = ?, category = ?, subcategory = ?, amount = ?, description = ?,
    type = ?, status = ?, confidence = ?
WHERE id = ? AND owner_id = ?`

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, updateTransactionSQL,
		tx.Date.String(), tx.Category, tx.Subcategory, tx.Amount.Decimal().String(), tx.Description,
		string(tx.Type), string(tx.Status), tx.Confidence, tx.ID, tx.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// The status guard makes the write conditional on the row still existing and
// not having been edited by the user; it never inserts.
const applyClassificationSQL = `
UPDATE transactions SET category = ?, subcategory = ?, type = ?, status = ?, confidence = ?
WHERE id = ? AND owner_id = ? AND status <> 'user'`

func (r *SQLiteRepository) ApplyClassifications(ctx context.Context, txs []core.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("apply classification %s: %w", tx.ID, err)
		}
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.PrepareContext(ctx, applyClassificationSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	applied := 0
	for _, tx := range txs {
		res, err := stmt.ExecContext(ctx, tx.Category, tx.Subcategory, string(tx.Type),
			string(tx.Status), tx.Confidence, tx.ID, tx.OwnerID)
		if err != nil {
			return 0, fmt.Errorf("apply classification %s: %w", tx.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("apply classification %s: %w", tx.ID, err)
		}
		applied += int(n)
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.logger.DebugContext(ctx, "Classifications applied", log.FieldCount, applied, "skipped", len(txs)-applied)
	return applied, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransactionsInMonth(ctx context.Context, ownerID string, month core.Month) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE owner_id = ? AND date >= ? AND date <= ?`,
		ownerID, month.Start().String(), month.End().String())
	if err != nil {
		return 0, fmt.Errorf("delete transactions in %s: %w", month, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) DeleteAllTransactions(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete all transactions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, month, amount FROM budgets WHERE owner_id = ? ORDER BY month, category`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var category, month, amount string
		if err := rows.Scan(&category, &month, &amount); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		m, err := core.ParseMonth(month)
		if err != nil {
			return nil, fmt.Errorf("budget %s/%s: %w", category, month, err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("budget %s/%s: %w", category, month, core.ErrInvalidAmount)
		}
		out = append(out, core.Budget{OwnerID: ownerID, Category: category, Month: m, Amount: core.NewMoney(d)})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ReplaceBudgetsForMonths(ctx context.Context, ownerID string, budgets []core.Budget) error {
	months, err := CheckBudgets(ownerID, budgets)
	if err != nil {
		return err
	}
	if len(months) == 0 {
		return nil
	}

	unlock := r.locks.Lock(ownerID)
	defer unlock()

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	for _, m := range months {
		if _, err := sqlTx.ExecContext(ctx,
			`DELETE FROM budgets WHERE owner_id = ? AND month = ?`, ownerID, m.String()); err != nil {
			return fmt.Errorf("clear budgets for %s: %w", m, err)
		}
	}
	for _, b := range budgets {
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO budgets (owner_id, category, month, amount) VALUES (?, ?, ?, ?)`,
			ownerID, b.Category, b.Month.String(), b.Amount.Decimal().String()); err != nil {
			return fmt.Errorf("insert budget %s/%s: %w", b.Category, b.Month, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit budgets: %w", err)
	}
	r.logger.InfoContext(ctx, "Budgets replaced", log.FieldOwner, ownerID, log.FieldCount, len(budgets), "months", len(months))
	return nil
}
