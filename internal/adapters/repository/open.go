// Package repository selects the configured store.
package repository

import (
	"context"
	"fmt"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlrepo"
	"github.com/vncsmyrnk/livepoll/internal/config"
)

// Open connects to the configured database. Postgres schemas are managed by
// the migrations command; sqlite creates its schema on open.
func Open(ctx context.Context, cfg config.Config) (*sqlrepo.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, PostgresConfig(cfg))
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
}

func PostgresConfig(cfg config.Config) postgres.Config {
	return postgres.Config{
		URL:      cfg.DatabaseURL,
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
	}
}
