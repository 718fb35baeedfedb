package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers for the document store.
const (
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"
)

// Config aggregates all runtime settings required by the service.
type Config struct {
	AppName       string
	Environment   string
	HTTP          HTTPConfig
	Storage       StorageConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Buffer        BufferConfig
	Bus           BusConfig
	Scheduler     SchedulerConfig
	Sweep         SweepConfig
	Notifications NotificationsConfig
	Catalog       CatalogConfig
	Context       ContextConfig
	Logger        LoggerConfig
	Migrations    MigrationsConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
}

type StorageConfig struct {
	Driver   string
	BoltPath string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

// RedisConfig is optional. When Enabled, state writes lock through redis and the
// threshold ledger lives there.
type RedisConfig struct {
	Enabled   bool
	URL       string
	Password  string
	DB        int
	KeyPrefix string
	LockTTL   time.Duration
}

// KafkaConfig enables the event mirror when Brokers is not empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// BufferConfig configures the bolt outbox for events whose persistence failed.
type BufferConfig struct {
	Path         string
	MaxSize      int
	SyncInterval time.Duration
	MaxRetry     int
	BatchSize    int
}

type BusConfig struct {
	HandlerTimeout time.Duration
	FailureBuffer  int
}

type SchedulerConfig struct {
	BufferDays int
}

type SweepConfig struct {
	Enabled     bool
	Schedule    string
	Concurrency int
}

type NotificationsConfig struct {
	DefaultLimit int
}

type CatalogConfig struct {
	Path string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults that run the service on a local bolt file.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "exportflow"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		Storage: StorageConfig{
			Driver:   strings.ToLower(getString("STORAGE_DRIVER", StorageBolt)),
			BoltPath: getString("BOLTDB_PATH", "./data/exportflow.db"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "exportflow"),
			User:            getString("DB_USER", "exportflow"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:   getBool("REDIS_ENABLED", false),
			URL:       getString("REDIS_URL", "redis://localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getInt("REDIS_DB", 0),
			KeyPrefix: getString("REDIS_KEY_PREFIX", "exportflow:"),
			LockTTL:   getDuration("REDIS_LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getString("KAFKA_TOPIC", "exportflow.events"),
		},
		Buffer: BufferConfig{
			Path:         getString("BUFFER_PATH", "./data/outbox.db"),
			MaxSize:      getInt("BUFFER_MAX_SIZE", 100_000),
			SyncInterval: getDuration("BUFFER_SYNC_INTERVAL", 30*time.Second),
			MaxRetry:     getInt("BUFFER_MAX_RETRY", 5),
			BatchSize:    getInt("BUFFER_BATCH_SIZE", 100),
		},
		Bus: BusConfig{
			HandlerTimeout: getDuration("BUS_HANDLER_TIMEOUT", 5*time.Second),
			FailureBuffer:  getInt("BUS_FAILURE_BUFFER", 64),
		},
		Scheduler: SchedulerConfig{
			BufferDays: getInt("TIMELINE_BUFFER_DAYS", 5),
		},
		Sweep: SweepConfig{
			Enabled:     getBool("SWEEP_ENABLED", true),
			Schedule:    getString("SWEEP_SCHEDULE", "@daily"),
			Concurrency: getInt("SWEEP_CONCURRENCY", 4),
		},
		Notifications: NotificationsConfig{
			DefaultLimit: getInt("NOTIFICATIONS_DEFAULT_LIMIT", 20),
		},
		Catalog: CatalogConfig{
			Path: os.Getenv("CATALOG_PATH"),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageBolt:
		if c.Storage.BoltPath == "" {
			return fmt.Errorf("config: BOLTDB_PATH is required for the bolt driver")
		}
	case StoragePostgres:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Sweep.Enabled && c.Sweep.Schedule == "" {
		return fmt.Errorf("config: SWEEP_SCHEDULE is required when the sweep is enabled")
	}
	if c.Scheduler.BufferDays < 0 {
		return fmt.Errorf("config: TIMELINE_BUFFER_DAYS must not be negative")
	}
	return nil
}

// KafkaEnabled reports whether the event mirror should start.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getList splits a comma separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
