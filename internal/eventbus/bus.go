package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/repository"
)

const (
	defaultHandlerTimeout = 5 * time.Second
	defaultFailureBuffer  = 64
	defaultRecentLimit    = 50
)

// Handler reacts to a dispatched event. Returned errors are logged, never propagated to the publisher.
type Handler func(ctx context.Context, event domain.Event) error

// SubscriptionID identifies a registered handler for Unsubscribe.
type SubscriptionID uint64

// Outbox retains events whose persistence failed so they can be replayed later.
type Outbox interface {
	Retain(ctx context.Context, event domain.Event) error
}

// PersistenceFailure is emitted on Failures() whenever an event was dispatched without being stored.
type PersistenceFailure struct {
	Event domain.Event
	Err   error
	At    time.Time
}

// Config is built once at startup and handed to New.
type Config struct {
	HandlerTimeout time.Duration
	FailureBuffer  int
	Outbox         Outbox
	Now            func() time.Time
}

// RecentQuery filters GetRecentEvents. Zero values mean "any".
type RecentQuery struct {
	Type       domain.EventType
	BusinessID string
	Limit      int
}

// Bus persists events and dispatches them synchronously to subscribers in registration order.
type Bus struct {
	repo    repository.EventRepository
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[domain.EventType][]*subscription
	nextID SubscriptionID

	failures chan PersistenceFailure
}

func New(repo repository.EventRepository, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Bus {
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	if cfg.FailureBuffer <= 0 {
		cfg.FailureBuffer = defaultFailureBuffer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bus{
		repo:     repo,
		cfg:      cfg,
		logger:   logger.Named("eventbus"),
		metrics:  m,
		subs:     make(map[domain.EventType][]*subscription),
		failures: make(chan PersistenceFailure, cfg.FailureBuffer),
	}
}

// Subscribe registers handler for one event type.
func (b *Bus) Subscribe(eventType domain.EventType, handler Handler, opts ...Option) SubscriptionID {
	sub := &subscription{handler: handler}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub.id = b.nextID
	b.subs[eventType] = append(b.subs[eventType], sub)
	return sub.id
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (b *Bus) Unsubscribe(eventType domain.EventType, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish stamps, persists and dispatches an event and returns its id.
//
// A persistence failure does not stop dispatch: it is logged, counted, reported on
// Failures() and handed to the outbox. Only invalid input makes Publish fail.
func (b *Bus) Publish(ctx context.Context, in domain.EventInput) (string, error) {
	if in.Type == "" {
		return "", domain.ErrEventTypeRequired
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}

	event := domain.Event{
		ID:         uuid.NewString(),
		Type:       in.Type,
		Source:     in.Source,
		Priority:   in.Priority,
		BusinessID: in.BusinessID,
		Payload:    clonePayload(in.Payload),
		Timestamp:  b.cfg.Now().UTC(),
	}

	if err := b.repo.Save(ctx, event); err != nil {
		b.persistenceFailed(ctx, event, err)
	}
	b.metrics.IncEventPublished(string(event.Type))

	b.dispatch(ctx, event)
	return event.ID, nil
}

// Failures exposes persistence failures. The health monitor drains it; reports that
// find the buffer full are dropped.
func (b *Bus) Failures() <-chan PersistenceFailure {
	return b.failures
}

// GetRecentEvents returns stored events newest first.
func (b *Bus) GetRecentEvents(ctx context.Context, q RecentQuery) ([]domain.Event, error) {
	if q.Limit <= 0 {
		q.Limit = defaultRecentLimit
	}
	return b.repo.Recent(ctx, repository.EventFilter{
		Type:       q.Type,
		BusinessID: q.BusinessID,
		Limit:      q.Limit,
	})
}

// SubscriberCount reports how many handlers listen for eventType. /health lists it.
func (b *Bus) SubscriberCount(eventType domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

func (b *Bus) persistenceFailed(ctx context.Context, event domain.Event, err error) {
	b.metrics.IncEventPersistenceFailure()
	b.logger.Error("event persistence failed, dispatching anyway",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("business_id", event.BusinessID),
		zap.Error(err))

	select {
	case b.failures <- PersistenceFailure{Event: event, Err: err, At: b.cfg.Now()}:
	default:
		b.logger.Warn("failure channel full, dropping report", zap.String("event_id", event.ID))
	}

	if b.cfg.Outbox == nil {
		return
	}
	if err := b.cfg.Outbox.Retain(context.WithoutCancel(ctx), event); err != nil {
		b.logger.Error("failed to retain event in outbox",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[event.Type]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.matches(event) {
			continue
		}
		if err := b.invoke(ctx, sub, event); err != nil {
			reason := "error"
			var pe *panicError
			switch {
			case errors.As(err, &pe):
				reason = "panic"
			case errors.Is(err, context.DeadlineExceeded):
				reason = "timeout"
			}
			b.metrics.IncHandlerFailure(string(event.Type), reason)
			b.logger.Error("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Uint64("subscription_id", uint64(sub.id)),
				zap.String("reason", reason),
				zap.Error(err))
		}
	}
}

// invoke runs one handler under its own deadline. A handler that ignores its
// context is abandoned once the deadline passes; the bus moves on.
func (b *Bus) invoke(ctx context.Context, sub *subscription, event domain.Event) error {
	hctx, cancel := context.WithTimeout(ctx, b.cfg.HandlerTimeout)
	defer cancel()

	event.Payload = clonePayload(event.Payload)
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &panicError{value: r}
			}
		}()
		done <- sub.handler(hctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		return fmt.Errorf("handler did not finish: %w", hctx.Err())
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.value)
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
