package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"

	"timesheets/internal/platform/config"
)

// Connect opens the pool and retries with exponential backoff until the
// database answers a ping or cfg.DBConnectTimeout elapses.
func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = 2

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = cfg.DBConnectTimeout
	expBackoff.InitialInterval = time.Second

	var pool *pgxpool.Pool
	operation := func() error {
		candidate, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := candidate.Ping(ctx); err != nil {
			candidate.Close()
			slog.Warn("database ping failed, retrying", "err", err)
			return err
		}
		pool = candidate
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
	}
	return pool, nil
}
