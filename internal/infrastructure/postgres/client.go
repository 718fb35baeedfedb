package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/internal/config"
)

const (
	pingTimeout     = 5 * time.Second
	connectAttempts = 5
)

// Connect migrates the schema when enabled and opens a pool for the document store.
// The first ping is retried with backoff while the server is still coming up.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("postgres")

	if err := RunMigrations(cfg, logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	poolCfg, err := poolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := waitReady(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("document store connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("db", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns))
	return pool, nil
}

// Closer adapts pool to a lifecycle stop hook.
func Closer(pool *pgxpool.Pool, logger *zap.Logger) func(context.Context) error {
	return func(context.Context) error {
		if pool == nil {
			return nil
		}
		pool.Close()
		if logger != nil {
			logger.Info("document store pool closed")
		}
		return nil
	}
}

func poolConfig(db config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn(db))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if db.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(db.MaxOpenConns)
	}
	if db.MaxIdleConns > 0 {
		poolCfg.MinConns = min(int32(db.MaxIdleConns), poolCfg.MaxConns)
	}
	if db.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = db.MaxConnLifetime
	}
	return poolCfg, nil
}

func waitReady(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		err := pool.Ping(pingCtx)
		if err != nil {
			logger.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(backoff.WithMaxRetries(policy, connectAttempts-1), ctx)); err != nil {
		return fmt.Errorf("ping postgres after %d attempts: %w", attempt, err)
	}
	return nil
}
