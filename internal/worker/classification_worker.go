package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const DefaultSweepBatchSize = 50

// Classifier classifies transactions and stores the result.
type Classifier interface {
	ClassifyAndStore(ctx context.Context, txs []core.Transaction) error
}

// ClassificationWorker classifies transactions queued by the API and those
// left uncategorized by a crash or a lost message.
type ClassificationWorker struct {
	repo       storage.Repository
	classifier Classifier
	batchSize  int
	logger     *log.Logger
}

func NewClassificationWorker(repo storage.Repository, classifier Classifier, batchSize int) *ClassificationWorker {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &ClassificationWorker{
		repo:       repo,
		classifier: classifier,
		batchSize:  batchSize,
		logger:     log.Default(log.ComponentWorker),
	}
}

// HandleClassificationRequest processes one message. A returned error means
// the message should be redelivered.
func (w *ClassificationWorker) HandleClassificationRequest(ctx context.Context, msg *amqp.ClassificationRequest) error {
	w.logger.InfoContext(ctx, "Processing classification request",
		log.FieldOwner, msg.OwnerID,
		log.FieldCount, len(msg.TransactionIDs))

	var pending []core.Transaction
	for _, id := range msg.TransactionIDs {
		tx, err := w.repo.GetTransaction(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			// deleted before we got to it
			continue
		}
		if err != nil {
			return fmt.Errorf("get transaction %s: %w", id, err)
		}
		if tx.OwnerID != msg.OwnerID {
			w.logger.WarnContext(ctx, "Transaction owner mismatch, skipping",
				log.FieldTransactionID, id,
				log.FieldOwner, msg.OwnerID)
			continue
		}
		if tx.Status.Classified() {
			continue
		}
		pending = append(pending, tx)
	}

	if len(pending) == 0 {
		w.logger.DebugContext(ctx, "Nothing left to classify", log.FieldOwner, msg.OwnerID)
		return nil
	}
	if err := w.classifier.ClassifyAndStore(ctx, pending); err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	return nil
}

// StartupSweep classifies uncategorized rows batch by batch until none
// remain and returns how many it processed.
func (w *ClassificationWorker) StartupSweep(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := w.repo.ListUncategorized(ctx, w.batchSize)
		if err != nil {
			return total, fmt.Errorf("list uncategorized: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		if err := w.classifier.ClassifyAndStore(ctx, batch); err != nil {
			return total, fmt.Errorf("classify sweep batch: %w", err)
		}
		total += len(batch)
	}

	if total > 0 {
		w.logger.InfoContext(ctx, "Sweep classified leftover transactions", log.FieldCount, total)
	}
	return total, nil
}
