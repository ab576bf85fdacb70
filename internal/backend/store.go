package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// Kind names a storage implementation selectable with DATA_BACKEND.
type Kind string

const (
	KindSQLite Kind = config.BackendSQLite
	KindMemory Kind = config.BackendMemory
)

func (k Kind) Valid() bool {
	return k == KindSQLite || k == KindMemory
}

// StoreConfig selects and locates the repository.
type StoreConfig struct {
	Kind       Kind
	SQLitePath string
}

// StoreConfigFrom extracts the storage settings from the process config.
func StoreConfigFrom(cfg *config.Config) (StoreConfig, error) {
	if cfg == nil {
		return StoreConfig{}, errors.New("app config is nil")
	}
	sc := StoreConfig{Kind: Kind(cfg.DataBackend), SQLitePath: cfg.SQLiteDBPath}
	return sc, sc.Validate()
}

func (c StoreConfig) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("invalid backend type %q", c.Kind)
	}
	if c.Kind == KindSQLite && c.SQLitePath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	return nil
}

// OpenStore returns the configured repository. Callers own it and must
// Close it.
func OpenStore(ctx context.Context, c StoreConfig, logger *log.Logger) (storage.Repository, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	logger = logger.WithComponent(log.ComponentBackend)

	if c.Kind == KindMemory {
		logger.WarnContext(ctx, "Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}

	repo, err := storage.NewSQLiteRepository(c.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.InfoContext(ctx, "Opened SQLite storage", "db_path", c.SQLitePath)
	return repo, nil
}
