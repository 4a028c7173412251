package persistence

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aristath/workgraph/internal/config"
)

// Open returns the store selected by cfg.Backend. An empty backend means sqlite.
func Open(ctx context.Context, cfg config.StoreConfig, logger hclog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(ctx, cfg.Path)
	case "badger":
		return NewBadgerStore(cfg.Path, logger)
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store := NewPGStore(pool)
		if err := store.CreateSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating postgres schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
