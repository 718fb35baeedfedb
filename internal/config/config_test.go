package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageBolt, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Scheduler.BufferDays)
	assert.Equal(t, "@daily", cfg.Sweep.Schedule)
	assert.Equal(t, 20, cfg.Notifications.DefaultLimit)
	assert.Equal(t, 5*time.Second, cfg.Bus.HandlerTimeout)
	assert.False(t, cfg.KafkaEnabled())
	assert.Contains(t, cfg.Database.URL, "postgres://")
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("BUS_HANDLER_TIMEOUT", "250ms")
	t.Setenv("BUFFER_SYNC_INTERVAL", "12")
	t.Setenv("TIMELINE_BUFFER_DAYS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Bus.HandlerTimeout)
	assert.Equal(t, 12*time.Second, cfg.Buffer.SyncInterval)
	assert.Equal(t, 5, cfg.Scheduler.BufferDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: true},
		{name: "bolt without path", mutate: func(c *Config) { c.Storage.BoltPath = "" }, wantErr: true},
		{name: "sweep without schedule", mutate: func(c *Config) { c.Sweep.Schedule = "" }, wantErr: true},
		{name: "disabled sweep without schedule", mutate: func(c *Config) {
			c.Sweep.Enabled = false
			c.Sweep.Schedule = ""
		}},
		{name: "negative buffer", mutate: func(c *Config) { c.Scheduler.BufferDays = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Storage: StorageConfig{Driver: StorageBolt, BoltPath: "data.db"},
				Sweep:   SweepConfig{Enabled: true, Schedule: "@daily"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
