package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

// recordingClassifier marks every transaction as rule-classified and
// remembers the batches it saw.
type recordingClassifier struct {
	repo *memory.Store
	err  error

	mu      sync.Mutex
	batches [][]string
}

func (c *recordingClassifier) ClassifyAndStore(ctx context.Context, txs []core.Transaction) error {
	c.mu.Lock()
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	c.batches = append(c.batches, ids)
	c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	for i := range txs {
		txs[i].Category = "Other"
		txs[i].Subcategory = "Miscellaneous"
		txs[i].Status = core.StatusRule
	}
	_, err := c.repo.ApplyClassifications(ctx, txs)
	return err
}

func seed(t *testing.T, repo *memory.Store, owner string, status core.ClassificationStatus, ids ...string) {
	t.Helper()
	for _, id := range ids {
		tx := core.Transaction{
			ID:          id,
			OwnerID:     owner,
			Date:        core.NewDate(2024, 1, 1),
			Amount:      core.MustMoney("10"),
			Description: "Coffee",
			Type:        core.Expense,
		}
		tx.Uncategorize()
		tx.Status = status
		require.NoError(t, repo.UpsertTransaction(context.Background(), tx))
	}
}

func TestHandleClassificationRequest(t *testing.T) {
	repo := memory.New()
	seed(t, repo, "alice", core.StatusUncategorized, "t1", "t2")
	seed(t, repo, "alice", core.StatusUser, "edited")
	seed(t, repo, "bob", core.StatusUncategorized, "bobs")

	c := &recordingClassifier{repo: repo}
	w := NewClassificationWorker(repo, c, 10)

	msg := amqp.NewClassificationRequest("alice", []string{"t1", "edited", "gone", "bobs", "t2"})
	require.NoError(t, w.HandleClassificationRequest(context.Background(), msg))

	require.Len(t, c.batches, 1)
	assert.Equal(t, []string{"t1", "t2"}, c.batches[0], "classified, deleted and foreign rows are skipped")

	// Redelivery of the same message is a no-op
	require.NoError(t, w.HandleClassificationRequest(context.Background(), msg))
	assert.Len(t, c.batches, 1)
}

func TestHandleClassificationRequest_StorageErrorRequeues(t *testing.T) {
	repo := memory.New()
	seed(t, repo, "alice", core.StatusUncategorized, "t1")
	c := &recordingClassifier{repo: repo, err: errors.New("database is locked")}

	err := NewClassificationWorker(repo, c, 10).HandleClassificationRequest(context.Background(),
		amqp.NewClassificationRequest("alice", []string{"t1"}))
	assert.ErrorContains(t, err, "database is locked")
}

func TestStartupSweep_DrainsInBatches(t *testing.T) {
	repo := memory.New()
	var ids []string
	for i := range 7 {
		ids = append(ids, fmt.Sprintf("u%d", i))
	}
	seed(t, repo, "alice", core.StatusUncategorized, ids...)
	seed(t, repo, "alice", core.StatusAI, "done")

	c := &recordingClassifier{repo: repo}
	n, err := NewClassificationWorker(repo, c, 3).StartupSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Len(t, c.batches, 3)

	left, err := repo.ListUncategorized(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestStartupSweep_StopsOnError(t *testing.T) {
	repo := memory.New()
	seed(t, repo, "alice", core.StatusUncategorized, "u1")
	c := &recordingClassifier{repo: repo, err: errors.New("boom")}

	n, err := NewClassificationWorker(repo, c, 3).StartupSweep(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, c.batches, 1)
}

func TestSweeper_Lifecycle(t *testing.T) {
	repo := memory.New()
	seed(t, repo, "alice", core.StatusUncategorized, "u1")
	c := &recordingClassifier{repo: repo}
	s := NewSweeper(NewClassificationWorker(repo, c, 10), time.Hour, true)

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(context.Background()), "stopping an idle sweeper is fine")

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		left, _ := repo.ListUncategorized(context.Background(), 10)
		return len(left) == 0
	}, time.Second, 10*time.Millisecond, "the immediate sweep runs before the first tick")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}
