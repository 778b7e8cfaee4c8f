// Package database opens the configured backend and hands back the
// repository bundle. It is the only place that knows both drivers.
package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/internal/repository/postgres"
	"github.com/openshelf/openshelf/internal/repository/sqlite"
)

// Migrator applies and reports schema migrations.
type Migrator interface {
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int, error)
}

// Database bundles everything a binary needs from the storage layer.
type Database struct {
	Repos    *repository.Repositories
	Health   repository.DatabaseHealth
	Migrator Migrator
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.Health.Close()
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Database, error) {
	switch cfg.Driver {
	case "sqlite":
		dbCfg := sqlite.DefaultConfig(cfg.Path)
		if cfg.JournalMode != "" {
			dbCfg.JournalMode = cfg.JournalMode
		}
		if cfg.BusyTimeout > 0 {
			dbCfg.BusyTimeout = cfg.BusyTimeout
		}

		db, err := sqlite.NewDB(ctx, dbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Database{
			Repos:    sqlite.NewRepositories(db),
			Health:   db,
			Migrator: db,
		}, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Database{
			Repos:    postgres.NewRepositories(db),
			Health:   db,
			Migrator: db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
