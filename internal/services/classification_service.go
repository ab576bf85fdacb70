package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/ai"
	"fintrack/internal/classify"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/taxonomy"
)

const (
	DefaultClassifyBatchSize   = 10
	DefaultClassifyConcurrency = 4

	// defaultAIConfidence is used when the model omits a usable confidence.
	defaultAIConfidence = 0.8
)

var errMalformedSuggestions = errors.New("malformed AI response")

// ClassificationService classifies transactions with the AI collaborator,
// falling back to keyword rules batch by batch.
type ClassificationService struct {
	ai          ai.Classifier
	keywords    *classify.Classifier
	tax         *taxonomy.Taxonomy
	batchSize   int
	concurrency int
	logger      *log.Logger
}

type ClassificationOption func(*ClassificationService)

func WithBatchSize(n int) ClassificationOption {
	return func(s *ClassificationService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithConcurrency(n int) ClassificationOption {
	return func(s *ClassificationService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClassificationLogger(l *log.Logger) ClassificationOption {
	return func(s *ClassificationService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentClassification)
		}
	}
}

// NewClassificationService builds the orchestrator. A nil aiClassifier means
// every batch uses the keyword rules.
func NewClassificationService(aiClassifier ai.Classifier, keywords *classify.Classifier, tax *taxonomy.Taxonomy, opts ...ClassificationOption) *ClassificationService {
	if keywords == nil {
		keywords = classify.Default()
	}
	if tax == nil {
		tax = taxonomy.Default()
	}
	s := &ClassificationService{
		ai:          aiClassifier,
		keywords:    keywords,
		tax:         tax,
		batchSize:   DefaultClassifyBatchSize,
		concurrency: DefaultClassifyConcurrency,
		logger:      log.Default(log.ComponentClassification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keywords exposes the rule classifier for previews.
func (s *ClassificationService) Keywords() *classify.Classifier { return s.keywords }

// ClassifyBatch returns a copy of txs in input order with every non-user
// transaction classified. It never fails: any AI problem sends the affected
// batch through the keyword rules.
func (s *ClassificationService) ClassifyBatch(ctx context.Context, txs []core.Transaction) []core.Transaction {
	out := slices.Clone(txs)

	var pending []int
	for i, tx := range out {
		if tx.Status != core.StatusUser {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	batch := 0
	for chunk := range slices.Chunk(pending, s.batchSize) {
		batch++
		n := batch
		// Chunks index disjoint elements of out.
		g.Go(func() error {
			s.classifyChunk(ctx, out, chunk, n)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *ClassificationService) classifyChunk(ctx context.Context, out []core.Transaction, idx []int, batch int) {
	suggestions, err := s.askAI(ctx, out, idx)
	if err != nil {
		s.logFallback(ctx, err, batch, len(idx))
		for _, i := range idx {
			s.keywords.Apply(&out[i])
		}
		return
	}
	for n, i := range idx {
		s.accept(&out[i], suggestions[n])
	}
}

func (s *ClassificationService) askAI(ctx context.Context, out []core.Transaction, idx []int) ([]ai.Suggestion, error) {
	if s.ai == nil {
		return nil, ai.ErrMissingCredentials
	}
	reqs := make([]ai.Request, len(idx))
	for n, i := range idx {
		reqs[n] = ai.RequestFor(out[i])
	}

	suggestions, err := s.ai.ClassifyBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if len(suggestions) != len(reqs) {
		return nil, fmt.Errorf("%w: got %d items for %d transactions", errMalformedSuggestions, len(suggestions), len(reqs))
	}
	for n, sug := range suggestions {
		if strings.TrimSpace(sug.Category) == "" || strings.TrimSpace(sug.Subcategory) == "" || sug.Type == "" {
			return nil, fmt.Errorf("%w: item %d is incomplete", errMalformedSuggestions, n)
		}
		if !sug.Type.Valid() {
			return nil, fmt.Errorf("%w: item %d has type %q", errMalformedSuggestions, n, sug.Type)
		}
	}
	return suggestions, nil
}

// accept applies a suggestion. Categories outside the taxonomy become
// Other/Miscellaneous, and the type always follows the final category.
func (s *ClassificationService) accept(tx *core.Transaction, sug ai.Suggestion) {
	category := strings.TrimSpace(sug.Category)
	sub := strings.TrimSpace(sug.Subcategory)
	if !s.tax.HasSubcategory(category, sub) {
		category, sub = taxonomy.OtherCategory, taxonomy.OtherSubcategory
	}
	tt, ok := s.tax.TypeOf(category)
	if !ok {
		tt = sug.Type
	}

	confidence := sug.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = defaultAIConfidence
	}

	tx.Category = category
	tx.Subcategory = sub
	tx.Type = tt
	tx.Confidence = confidence
	tx.Status = core.StatusAI
}

func (s *ClassificationService) logFallback(ctx context.Context, err error, batch, size int) {
	fields := log.NewFields().
		WithOperation(log.OpClassify).
		WithError(err, fallbackErrorType(err))
	fields[log.FieldBatch] = batch
	fields[log.FieldBatchSize] = size

	if errors.Is(err, ai.ErrMissingCredentials) {
		s.logger.DebugContext(ctx, "AI classifier unavailable, using keyword rules", fields.ToSlice()...)
		return
	}
	s.logger.WarnContext(ctx, "AI classification failed, using keyword rules", fields.ToSlice()...)
	log.ReportError(ctx, err, map[string]string{
		log.FieldOperation: log.OpClassify,
		log.FieldErrorType: fallbackErrorType(err),
	})
}

func fallbackErrorType(err error) string {
	switch {
	case errors.Is(err, errMalformedSuggestions):
		return log.ErrorTypeMalformed
	case errors.Is(err, ai.ErrMissingCredentials):
		return log.ErrorTypeConfiguration
	default:
		return log.ErrorTypeNetwork
	}
}
