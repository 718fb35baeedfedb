package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/internal/eventbus"
)

// Pinger is satisfied by every repository.DocumentStore backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer reports how many events wait in the outbox.
type Sizer interface {
	Size() (int, error)
}

type Config struct {
	StoreDriver string
	Interval    time.Duration
}

// Monitor polls the document store, redis and the outbox in the background.
type Monitor struct {
	store  Pinger
	redis  *redislib.Client
	outbox Sizer
	cfg    Config

	status      Status
	failures    int
	lastFailure time.Time
	mu          sync.RWMutex

	stopCh chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// New builds a monitor. redis and outbox may be nil when those components are disabled.
func New(store Pinger, redis *redislib.Client, outbox Sizer, logger *zap.Logger, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:  store,
		redis:  redis,
		outbox: outbox,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		logger: logger.Named("monitor"),
	}
}

func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the document store answered the last ping.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Store
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.withFailures(m.status)
}

// RecordPersistenceFailure notes an event the store refused. The store counts as offline
// until the next successful ping, so outbox replay waits for it.
func (m *Monitor) RecordPersistenceFailure(at time.Time, err error) {
	m.mu.Lock()
	m.failures++
	m.lastFailure = at.UTC()
	m.status.Store = false
	m.mu.Unlock()

	m.logger.Warn("event persistence failed", zap.Time("at", at), zap.Error(err))
}

// Watch consumes the bus failure reports until Stop is called or the channel closes.
func (m *Monitor) Watch(failures <-chan eventbus.PersistenceFailure) {
	go func() {
		for {
			select {
			case <-m.stopCh:
				return
			case f, ok := <-failures:
				if !ok {
					return
				}
				m.RecordPersistenceFailure(f.At, f.Err)
			}
		}
	}()
}

func (m *Monitor) withFailures(status Status) Status {
	status.PersistenceFailures = m.failures
	if !m.lastFailure.IsZero() {
		last := m.lastFailure
		status.LastPersistenceFailure = &last
	}
	return status
}

// Refresh pings every dependency now and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	outboxOK, outboxSize := m.checkOutbox()
	status := Status{
		Store:        m.checkStore(ctx),
		StoreDriver:  m.cfg.StoreDriver,
		Redis:        m.checkRedis(ctx),
		RedisEnabled: m.redis != nil,
		Outbox:       outboxOK,
		OutboxSize:   outboxSize,
		LastCheck:    time.Now().UTC(),
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	status = m.withFailures(status)
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Healthy() != status.Healthy() {
		m.logger.Warn("dependency health changed",
			zap.Bool("healthy", status.Healthy()),
			zap.Bool("store", status.Store),
			zap.Bool("redis", status.Redis))
	}
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) checkStore(ctx context.Context) bool {
	if m.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.store.Ping(ctx); err != nil {
		m.logger.Debug("store ping failed", zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) checkRedis(ctx context.Context) bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkOutbox() (bool, int) {
	if m.outbox == nil {
		return false, 0
	}
	size, err := m.outbox.Size()
	if err != nil {
		m.logger.Warn("outbox size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
