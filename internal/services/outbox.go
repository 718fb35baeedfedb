package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/eventbus"
	"github.com/fastygo/exportflow/internal/infrastructure/buffer"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// OutboxConfig controls how much of the outbox one drain handles.
type OutboxConfig struct {
	BatchSize  int
	MaxRetries int
	// MaxAge drops items older than this on every drain. Zero keeps them until MaxRetries.
	MaxAge time.Duration
}

// Outbox keeps events the event store rejected and replays them later.
// It is the eventbus.Outbox the bus hands persistence failures to.
type Outbox struct {
	store   *buffer.Store
	events  repository.EventRepository
	monitor ConnectionHealth
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     OutboxConfig
}

var _ eventbus.Outbox = (*Outbox)(nil)

func NewOutbox(
	store *buffer.Store,
	events repository.EventRepository,
	monitor ConnectionHealth,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg OutboxConfig,
) *Outbox {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{
		store:   store,
		events:  events,
		monitor: monitor,
		logger:  logger.Named("outbox"),
		metrics: m,
		cfg:     cfg,
	}
}

// Retain stores event for a later Drain.
func (o *Outbox) Retain(_ context.Context, event domain.Event) error {
	item, err := buffer.NewEventItem(event)
	if err != nil {
		return err
	}
	return o.store.Enqueue(item)
}

// Drain replays up to one batch into the event store and returns how many events landed.
// An event that is already stored counts as replayed.
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	if o == nil || o.store == nil {
		return 0, nil
	}
	if o.monitor != nil && !o.monitor.IsOnline() {
		o.logger.Debug("skipping outbox drain (offline)")
		return 0, nil
	}
	if o.cfg.MaxAge > 0 {
		dropped, err := o.store.Cleanup(time.Now().Add(-o.cfg.MaxAge))
		if err != nil {
			return 0, err
		}
		if dropped > 0 {
			o.logger.Warn("dropped stale outbox items", zap.Int("count", dropped))
		}
	}

	items, err := o.store.GetBatch(o.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var replayed int
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			o.metrics.AddOutboxReplayed(replayed)
			return replayed, err
		}
		if err := o.replay(ctx, item); err != nil {
			o.logger.Error("failed to replay outbox item",
				zap.String("event_id", item.EventID),
				zap.String("event_type", item.EventType),
				zap.Error(err))

			item.Retries++
			if item.Retries >= o.cfg.MaxRetries {
				o.logger.Warn("dropping outbox item (max retries reached)",
					zap.String("event_id", item.EventID),
					zap.Int("retries", item.Retries))
				if err := o.store.Remove(item); err != nil {
					o.logger.Error("failed to drop outbox item",
						zap.String("event_id", item.EventID),
						zap.Error(err))
				}
				continue
			}
			if err := o.store.Requeue(item); err != nil {
				o.logger.Error("failed to requeue outbox item", zap.Error(err))
			}
			continue
		}

		if err := o.store.Remove(item); err != nil {
			o.logger.Warn("failed to purge replayed outbox item", zap.Error(err))
		}
		replayed++
	}

	o.metrics.AddOutboxReplayed(replayed)
	return replayed, nil
}

// Size returns the number of retained events.
func (o *Outbox) Size() int {
	if o == nil || o.store == nil {
		return 0
	}
	size, err := o.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (o *Outbox) replay(ctx context.Context, item buffer.Item) error {
	event, err := item.Event()
	if err != nil {
		return err
	}
	err = o.events.Save(ctx, event)
	if errors.Is(err, domain.ErrDuplicateKey) {
		return nil
	}
	return err
}
