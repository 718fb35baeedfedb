//go:build integration

package containers

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/fastygo/exportflow/internal/config"
	pginfra "github.com/fastygo/exportflow/internal/infrastructure/postgres"
)

// NewPostgres starts postgres, applies the repository migrations and returns a pool.
func NewPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("exportflow"),
		tcpostgres.WithUsername("exportflow"),
		tcpostgres.WithPassword("exportflow"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	cfg := &config.Config{
		Database:   config.DatabaseConfig{URL: dsn, Name: "exportflow"},
		Migrations: config.MigrationsConfig{Enabled: true, Path: migrationsDir(t)},
	}
	pool, err := pginfra.Connect(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate migrations")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "assets", "migrations")
}
