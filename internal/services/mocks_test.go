package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fintrack/internal/ai"
	"fintrack/internal/core"
)

// MockAIClassifier is a mock implementation of ai.Classifier
type MockAIClassifier struct {
	mock.Mock
}

func (m *MockAIClassifier) ClassifyBatch(ctx context.Context, items []ai.Request) ([]ai.Suggestion, error) {
	args := m.Called(ctx, items)
	var out []ai.Suggestion
	if v := args.Get(0); v != nil {
		out = v.([]ai.Suggestion)
	}
	return out, args.Error(1)
}

// MockPublisher is a mock implementation of ClassificationPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishClassification(ctx context.Context, ownerID string, ids []string) error {
	return m.Called(ctx, ownerID, ids).Error(0)
}

func testTx(id, desc, amount string, tt core.TxType) core.Transaction {
	return core.Transaction{
		ID:          id,
		OwnerID:     "alice",
		Date:        core.NewDate(2024, 1, 15),
		Category:    core.UncategorizedCategory,
		Amount:      core.MustMoney(amount),
		Description: desc,
		Type:        tt,
		Status:      core.StatusUncategorized,
	}
}
