package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

func TestStoreConfigFrom(t *testing.T) {
	_, err := StoreConfigFrom(nil)
	assert.Error(t, err)

	_, err = StoreConfigFrom(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")

	sc, err := StoreConfigFrom(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, StoreConfig{Kind: KindSQLite, SQLitePath: "x.db"}, sc)
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{"memory", StoreConfig{Kind: KindMemory}, false},
		{"sqlite", StoreConfig{Kind: KindSQLite, SQLitePath: "a.db"}, false},
		{"sqlite without path", StoreConfig{Kind: KindSQLite}, true},
		{"unknown", StoreConfig{Kind: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenStore(ctx, StoreConfig{Kind: KindMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, mem)
	require.NoError(t, mem.Close())

	sqlite, err := OpenStore(ctx, StoreConfig{Kind: KindSQLite, SQLitePath: filepath.Join(t.TempDir(), "f.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteRepository{}, sqlite)
	require.NoError(t, sqlite.Ping(ctx))
	require.NoError(t, sqlite.Close())

	_, err = OpenStore(ctx, StoreConfig{Kind: "sheets"}, nil)
	assert.Error(t, err)
}

func TestNewApp_MemoryWithoutIntegrations(t *testing.T) {
	cfg := &config.Config{
		DataBackend:         config.BackendMemory,
		ClassifyBatchSize:   5,
		ClassifyConcurrency: 2,
		TrendMonths:         3,
		CacheTTL:            time.Minute,
	}
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	assert.Nil(t, app.AMQP)

	tx, err := app.Transactions.Create(context.Background(), services.CreateInput{
		OwnerID:     "alice",
		Date:        core.NewDate(2024, 2, 1),
		Amount:      core.MustMoney("42"),
		Description: "Electricity bill",
		Type:        core.Expense,
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusRule, tx.Status, "without a broker classification runs inline")

	_, err = app.Transactions.ExportSheets(context.Background(), "alice")
	assert.ErrorIs(t, err, services.ErrSheetsDisabled)
}

func TestNewApp_BadRulesFile(t *testing.T) {
	cfg := &config.Config{DataBackend: config.BackendMemory, KeywordRulesFile: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := NewApp(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "load keyword rules")
}
