package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/aggregate"
	"fintrack/internal/cache"
	"fintrack/internal/classify"
	"fintrack/internal/core"
	"fintrack/internal/importer"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/taxonomy"
)

const DefaultTrendMonths = 6

// ErrSheetsDisabled is returned by ExportSheets when no spreadsheet is configured.
var ErrSheetsDisabled = errors.New("google sheets export is not configured")

// ClassificationPublisher hands freshly stored transactions to the worker.
type ClassificationPublisher interface {
	PublishClassification(ctx context.Context, ownerID string, ids []string) error
}

// SheetsExporter writes an owner's transactions to a spreadsheet and returns
// the written range.
type SheetsExporter interface {
	Export(ctx context.Context, ownerID string, txs []core.Transaction) (string, error)
}

// CreateInput is a new transaction as entered by the user. Category and
// Subcategory are optional; when both name a taxonomy leaf the transaction is
// stored as a user classification and skips the classifier.
type CreateInput struct {
	OwnerID     string      `json:"-"`
	Date        core.Date   `json:"date"`
	Amount      core.Money  `json:"amount"`
	Description string      `json:"description"`
	Type        core.TxType `json:"type"`
	Category    string      `json:"category,omitempty"`
	Subcategory string      `json:"subcategory,omitempty"`
}

// TransactionService owns the write path and the read models built on it.
type TransactionService struct {
	repo        storage.Repository
	classifier  *ClassificationService
	engine      *aggregate.Engine
	tax         *taxonomy.Taxonomy
	publisher   ClassificationPublisher
	sheets      SheetsExporter
	dashboards  cache.Cache[core.Dashboard]
	trendMonths int
	newID       func() string
	logger      *log.Logger
}

type TransactionOption func(*TransactionService)

// WithPublisher routes classification through the message queue.
func WithPublisher(p ClassificationPublisher) TransactionOption {
	return func(s *TransactionService) { s.publisher = p }
}

func WithSheetsExporter(e SheetsExporter) TransactionOption {
	return func(s *TransactionService) { s.sheets = e }
}

func WithDashboardCache(c cache.Cache[core.Dashboard]) TransactionOption {
	return func(s *TransactionService) { s.dashboards = c }
}

func WithTrendMonths(n int) TransactionOption {
	return func(s *TransactionService) {
		if n > 0 {
			s.trendMonths = n
		}
	}
}

func WithTaxonomy(tax *taxonomy.Taxonomy) TransactionOption {
	return func(s *TransactionService) {
		if tax != nil {
			s.tax = tax
		}
	}
}

func WithTransactionLogger(l *log.Logger) TransactionOption {
	return func(s *TransactionService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentTransactions)
		}
	}
}

func NewTransactionService(repo storage.Repository, classifier *ClassificationService, engine *aggregate.Engine, opts ...TransactionOption) *TransactionService {
	if classifier == nil {
		classifier = NewClassificationService(nil, nil, nil)
	}
	s := &TransactionService{
		repo:        repo,
		classifier:  classifier,
		engine:      engine,
		tax:         taxonomy.Default(),
		trendMonths: DefaultTrendMonths,
		newID:       uuid.NewString,
		logger:      log.Default(log.ComponentTransactions),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = aggregate.NewEngine(s.tax)
	}
	return s
}

func (s *TransactionService) Taxonomy() *taxonomy.Taxonomy { return s.tax }

// Preview runs the keyword rules on a description without storing anything.
func (s *TransactionService) Preview(description string) classify.Result {
	return s.classifier.Keywords().Classify(description, "")
}

func (s *TransactionService) List(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Create stores the transaction as uncategorized and then gets it
// classified, either through the queue or inline.
func (s *TransactionService) Create(ctx context.Context, in CreateInput) (core.Transaction, error) {
	tx := core.Transaction{
		ID:          s.newID(),
		OwnerID:     in.OwnerID,
		Date:        in.Date,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
	}
	tx.Uncategorize()
	if s.tax.HasSubcategory(in.Category, in.Subcategory) {
		tx.Category = in.Category
		tx.Subcategory = in.Subcategory
		tx.Type, _ = s.tax.TypeOf(in.Category)
		tx.Status = core.StatusUser
		tx.Confidence = 1
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.repo.UpsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(tx.OwnerID)

	s.logger.InfoContext(ctx, "Transaction created", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(tx).ToSlice()...)

	if tx.Status == core.StatusUser {
		return tx, nil
	}

	if s.publisher != nil {
		err := s.publisher.PublishClassification(ctx, tx.OwnerID, []string{tx.ID})
		if err == nil {
			return tx, nil
		}
		s.logger.WarnContext(ctx, "Publish failed, classifying inline", log.NewFields().
			WithOperation(log.OpClassify).
			WithTransaction(tx).
			WithError(err, log.ErrorTypeNetwork).ToSlice()...)
	}

	classified := s.classifier.ClassifyBatch(ctx, []core.Transaction{tx})[0]
	applied, err := s.repo.ApplyClassifications(ctx, []core.Transaction{classified})
	if err != nil {
		// The row is stored; the sweep picks it up later.
		s.logger.ErrorContext(ctx, "Failed to save classification", log.NewFields().
			WithOperation(log.OpClassify).
			WithTransaction(tx).
			WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		return tx, nil
	}
	if applied == 0 {
		// Deleted or edited while the classifier ran; the user's write stands.
		return tx, nil
	}
	s.invalidate(tx.OwnerID)
	return classified, nil
}

// Update applies a user edit. The result is marked as a user
// classification and is never touched by the classifier again.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	current, err := s.owned(ctx, tx.OwnerID, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	tx.Description = strings.TrimSpace(tx.Description)
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Subcategory = strings.TrimSpace(tx.Subcategory)
	switch {
	case tx.Category == "":
		tx.Category = current.Category
		tx.Subcategory = current.Subcategory
	case !s.tax.HasSubcategory(tx.Category, tx.Subcategory):
		return core.Transaction{}, fmt.Errorf("%w: %q / %q", core.ErrUnknownCategory, tx.Category, tx.Subcategory)
	}
	if tt, ok := s.tax.TypeOf(tx.Category); ok {
		tx.Type = tt
	}
	if !tx.Type.Valid() {
		tx.Type = current.Type
	}
	tx.Status = core.StatusUser
	tx.Confidence = 1
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.invalidate(tx.OwnerID)
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(ownerID)
	return nil
}

func (s *TransactionService) DeleteMonth(ctx context.Context, ownerID string, month core.Month) (int64, error) {
	if err := month.Validate(); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteTransactionsInMonth(ctx, ownerID, month)
	if err != nil {
		return 0, fmt.Errorf("delete month %s: %w", month, err)
	}
	s.invalidate(ownerID)
	return n, nil
}

func (s *TransactionService) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.repo.DeleteAllTransactions(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	s.invalidate(ownerID)
	return n, nil
}

// Classify reclassifies every non-user transaction of the owner and returns
// how many were written.
func (s *TransactionService) Classify(ctx context.Context, ownerID string) (int, error) {
	txs, err := s.repo.ListTransactions(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	var pending []core.Transaction
	for _, tx := range txs {
		if tx.Status != core.StatusUser {
			pending = append(pending, tx)
		}
	}
	return s.classifyStored(ctx, pending)
}

// ClassifyAndStore runs stored txs through the orchestrator and writes the
// results back. Rows deleted or edited by the user while the classifier ran
// are left as they are. Affected owners have their dashboards invalidated.
func (s *TransactionService) ClassifyAndStore(ctx context.Context, txs []core.Transaction) error {
	_, err := s.classifyStored(ctx, txs)
	return err
}

func (s *TransactionService) classifyStored(ctx context.Context, txs []core.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	classified := s.classifier.ClassifyBatch(ctx, txs)
	applied, err := s.repo.ApplyClassifications(ctx, classified)
	if err != nil {
		return 0, fmt.Errorf("save classifications: %w", err)
	}
	s.invalidateAll(classified)

	fields := log.NewFields().WithOperation(log.OpClassify)
	fields[log.FieldCount] = applied
	fields["skipped"] = len(classified) - applied
	s.logger.InfoContext(ctx, "Transactions classified", fields.ToSlice()...)
	return applied, nil
}

// storeNew classifies rows that are not stored yet and inserts them in one
// write. Nobody else holds their ids, so nothing can race the insert.
func (s *TransactionService) storeNew(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	classified := s.classifier.ClassifyBatch(ctx, txs)
	if err := s.repo.UpsertTransactions(ctx, classified); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	s.invalidateAll(classified)
	return nil
}

// Import parses a CSV statement, classifies the rows and stores them in one
// write. Rows that fail validation are reported as skipped.
func (s *TransactionService) Import(ctx context.Context, ownerID string, r io.Reader) (importer.Report, error) {
	rows, report, err := importer.Parse(r)
	if err != nil {
		return report, err
	}

	txs := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx := core.Transaction{
			ID:          s.newID(),
			OwnerID:     ownerID,
			Date:        row.Date,
			Amount:      row.Amount,
			Description: row.Description,
			Type:        row.Type,
		}
		tx.Uncategorize()
		if err := tx.Validate(); err != nil {
			report.Skipped = append(report.Skipped, importer.RowError{Line: row.Line, Reason: err.Error()})
			report.Imported--
			continue
		}
		txs = append(txs, tx)
	}

	if err := s.storeNew(ctx, txs); err != nil {
		return report, fmt.Errorf("import: %w", err)
	}

	fields := log.NewFields().WithOperation(log.OpImport).WithOwner(ownerID)
	fields[log.FieldCount] = report.Imported
	s.logger.InfoContext(ctx, report.Summary(), fields.ToSlice()...)
	return report, nil
}

func (s *TransactionService) Export(ctx context.Context, ownerID string, w io.Writer) error {
	txs, err := s.List(ctx, ownerID)
	if err != nil {
		return err
	}
	return importer.Export(w, txs)
}

// ExportSheets copies the owner's transactions to the configured spreadsheet.
func (s *TransactionService) ExportSheets(ctx context.Context, ownerID string) (string, error) {
	if s.sheets == nil {
		return "", ErrSheetsDisabled
	}
	txs, err := s.List(ctx, ownerID)
	if err != nil {
		return "", err
	}
	rng, err := s.sheets.Export(ctx, ownerID, txs)
	if err != nil {
		log.ReportError(ctx, err, map[string]string{log.FieldOperation: log.OpExport})
		return "", fmt.Errorf("export to sheets: %w", err)
	}
	return rng, nil
}

func (s *TransactionService) Budgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	budgets, err := s.repo.ListBudgets(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// ReplaceBudgets swaps the owner's budgets for every month present in
// budgets. A blank OwnerID on an entry is filled in.
func (s *TransactionService) ReplaceBudgets(ctx context.Context, ownerID string, budgets []core.Budget) error {
	for i := range budgets {
		if budgets[i].OwnerID == "" {
			budgets[i].OwnerID = ownerID
		}
	}
	if err := s.repo.ReplaceBudgetsForMonths(ctx, ownerID, budgets); err != nil {
		if isValidation(err) {
			return err
		}
		return fmt.Errorf("replace budgets: %w", err)
	}
	s.invalidate(ownerID)

	fields := log.NewFields().WithOperation(log.OpBudgets).WithOwner(ownerID)
	fields[log.FieldCount] = len(budgets)
	s.logger.InfoContext(ctx, "Budgets replaced", fields.ToSlice()...)
	return nil
}

// Dashboard returns the month's views, served from cache when possible.
func (s *TransactionService) Dashboard(ctx context.Context, ownerID string, month core.Month) (core.Dashboard, error) {
	key := cache.Key(ownerID, "dashboard", month.String())
	if s.dashboards != nil {
		if d, ok := s.dashboards.Get(key); ok {
			return d, nil
		}
	}

	txs, err := s.repo.ListTransactions(ctx, ownerID)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("list transactions: %w", err)
	}
	budgets, err := s.repo.ListBudgets(ctx, ownerID)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("list budgets: %w", err)
	}

	d := s.engine.Dashboard(txs, budgets, month, s.trendMonths)
	if s.dashboards != nil {
		s.dashboards.Set(key, d)
	}
	return d, nil
}

// Ping reports whether storage is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close closes storage and the publisher when it holds a connection.
func (s *TransactionService) Close() error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}

// owned loads id and hides rows belonging to someone else.
func (s *TransactionService) owned(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.OwnerID != ownerID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *TransactionService) invalidateAll(txs []core.Transaction) {
	seen := map[string]bool{}
	for _, tx := range txs {
		if !seen[tx.OwnerID] {
			seen[tx.OwnerID] = true
			s.invalidate(tx.OwnerID)
		}
	}
}

func (s *TransactionService) invalidate(ownerID string) {
	if s.dashboards != nil {
		s.dashboards.DeletePrefix(cache.OwnerPrefix(ownerID))
	}
}

// IsValidation reports whether err is caused by bad input rather than a
// failing dependency.
func IsValidation(err error) bool { return isValidation(err) }

func isValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidMonth,
		core.ErrInvalidAmount,
		core.ErrInvalidType,
		core.ErrMissingOwner,
		core.ErrEmptyCategory,
		core.ErrUnknownCategory,
		core.ErrDescriptionTooLong,
		storage.ErrDuplicateBudget,
		importer.ErrMissingColumn,
		importer.ErrEmptyFile,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
