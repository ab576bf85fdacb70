// Package ai defines the contract of the external classification service.
package ai

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrMissingCredentials is returned when no API key is configured. Callers
// treat it exactly like a failed request.
var ErrMissingCredentials = errors.New("ai: missing credentials")

// Request is one transaction sent for classification.
type Request struct {
	ID          string      `json:"id"`
	Date        core.Date   `json:"date"`
	Description string      `json:"description"`
	Amount      core.Money  `json:"amount"`
	Type        core.TxType `json:"type"`
}

// Suggestion is the classifier's answer for the request at the same index.
type Suggestion struct {
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Type        core.TxType `json:"type"`
	Confidence  float64     `json:"confidence"`
}

// Classifier classifies a batch. The response is aligned by position with
// the requests; implementations make a single attempt.
type Classifier interface {
	ClassifyBatch(ctx context.Context, items []Request) ([]Suggestion, error)
}

// RequestFor builds the request view of a transaction.
func RequestFor(tx core.Transaction) Request {
	return Request{
		ID:          tx.ID,
		Date:        tx.Date,
		Description: tx.Description,
		Amount:      tx.Amount,
		Type:        tx.Type,
	}
}
