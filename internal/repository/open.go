package repository

import (
	"context"
	"fmt"
	"log/slog"

	"convtree/internal/config"
	"convtree/internal/domain/repositories"
	"convtree/internal/repository/memory"
	"convtree/internal/repository/postgres"
	"convtree/internal/repository/sqlite"
)

// Open returns the storage provider selected by cfg.StorageDriver and a
// function that releases it
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.StorageProvider, func(), error) {
	switch cfg.StorageDriver {
	case "", "memory":
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.NewProvider(), func() {}, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected", "driver", "postgres", "table_prefix", cfg.TablePrefix)

		provider := postgres.NewProvider(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		})
		return provider, pool.Close, nil

	case "sqlite":
		provider, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database opened", "driver", "sqlite", "path", cfg.SQLitePath)
		return provider, func() {
			if err := provider.Close(); err != nil {
				logger.Warn("failed to close sqlite", "error", err)
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
