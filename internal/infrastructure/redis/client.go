package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/internal/config"
)

// Connect returns the client used for business locks and the threshold ledger.
// A nil client with no error means redis is switched off and callers fall back
// to in-process coordination.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*goRedis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	// Lock calls carry their own deadline; keep reads from outliving it.
	if cfg.LockTTL > 0 && cfg.LockTTL < opts.ReadTimeout {
		opts.ReadTimeout = cfg.LockTTL
	}

	client := goRedis.NewClient(opts)

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 3)
	err = backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	logger.Named("redis").Info("coordination backend connected",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("key_prefix", cfg.KeyPrefix))
	return client, nil
}
