package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"fintrack/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateLogger routes golang-migrate output through the storage logger.
type migrateLogger struct {
	logger *log.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), log.FieldOperation, "migrate")
}

func (l migrateLogger) Verbose() bool { return false }

// RunMigrations applies pending schema migrations to the database at dbPath.
// The migrate instance owns its connection and closes it, so the caller's
// pool is opened separately afterwards.
func RunMigrations(dbPath string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger: logger}

	// A dirty schema means a previous run died half way; refuse to guess.
	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("schema version %d is dirty, repair it with the migrate CLI before starting", version)
	}

	err = m.Up()
	var dirtyErr migrate.ErrDirty
	switch {
	case errors.As(err, &dirtyErr):
		return fmt.Errorf("schema version %d is dirty: %w", dirtyErr.Version, err)
	case err != nil && !errors.Is(err, migrate.ErrNoChange):
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", verr)
	}
	logger.Info("Database schema ready",
		log.FieldOperation, "migrate",
		"version", version,
		"changed", !errors.Is(err, migrate.ErrNoChange))
	return nil
}
