package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/infrastructure/lock"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/repository"
)

const (
	defaultMaxRetries   = 3
	defaultHistoryLimit = 50
)

// Top-level fields a partial update may touch. Everything else on BusinessState is store-managed.
var mutableFields = map[string]struct{}{
	"profile":        {},
	"export_journey": {},
	"preferences":    {},
}

// Publisher is the slice of the event bus the store needs.
type Publisher interface {
	Publish(ctx context.Context, in domain.EventInput) (string, error)
}

type Config struct {
	MaxRetries int
	Now        func() time.Time
}

// Store owns BusinessState. Writes for one business are serialized through the
// Locker and guarded by the repository's version check.
type Store struct {
	repo    repository.StateRepository
	locker  repository.Locker
	bus     Publisher
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     Config
}

func NewStore(repo repository.StateRepository, locker repository.Locker, bus Publisher, logger *zap.Logger, m *metrics.Metrics, cfg Config) *Store {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		repo:    repo,
		locker:  locker,
		bus:     bus,
		logger:  logger.Named("state"),
		metrics: m,
		cfg:     cfg,
	}
}

// GetBusinessState returns the stored state or a default one. Reading never writes.
func (s *Store) GetBusinessState(ctx context.Context, businessID string) (domain.BusinessState, error) {
	if businessID == "" {
		return domain.BusinessState{}, domain.ErrBusinessIDRequired
	}
	state, _, err := s.load(ctx, businessID)
	return state, err
}

// UpdateBusinessState deep-merges partial into the current state and records the change.
// The state and its change record are written together or not at all.
func (s *Store) UpdateBusinessState(ctx context.Context, businessID string, partial map[string]any) (domain.BusinessState, error) {
	if businessID == "" {
		return domain.BusinessState{}, domain.ErrBusinessIDRequired
	}
	if len(partial) == 0 {
		return domain.BusinessState{}, domain.ErrInvalidPayload
	}
	return s.apply(ctx, businessID, func(domain.BusinessState) (map[string]any, error) {
		return partial, nil
	})
}

func (s *Store) GetAllBusinessIDs(ctx context.Context) ([]string, error) {
	return s.repo.BusinessIDs(ctx)
}

// GetChangeHistory returns change records newest first.
func (s *Store) GetChangeHistory(ctx context.Context, businessID string, limit int) ([]domain.StateChangeRecord, error) {
	if businessID == "" {
		return nil, domain.ErrBusinessIDRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.History(ctx, businessID, limit)
}

// mutation derives a partial update from the current state. A nil partial means nothing to do.
type mutation func(current domain.BusinessState) (map[string]any, error)

// apply publishes STATE_UPDATED only after the business lock is released, so subscribers
// may write to the same business.
func (s *Store) apply(ctx context.Context, businessID string, fn mutation) (domain.BusinessState, error) {
	next, _, err := s.applyReporting(ctx, businessID, fn)
	return next, err
}

// applyReporting is apply that also reports whether fn produced a write.
func (s *Store) applyReporting(ctx context.Context, businessID string, fn mutation) (domain.BusinessState, bool, error) {
	next, patch, err := s.applyLocked(ctx, businessID, fn)
	if err != nil {
		return domain.BusinessState{}, false, err
	}
	if patch == nil {
		return next, false, nil
	}
	s.publishUpdated(ctx, next, patch)
	return next, true, nil
}

func (s *Store) applyLocked(ctx context.Context, businessID string, fn mutation) (domain.BusinessState, repository.Document, error) {
	unlock, err := s.locker.Lock(ctx, businessID)
	if err != nil {
		return domain.BusinessState{}, nil, fmt.Errorf("lock business %s: %w", businessID, err)
	}
	defer unlock()

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		current, version, err := s.load(ctx, businessID)
		if err != nil {
			return domain.BusinessState{}, nil, err
		}

		partial, err := fn(current)
		if err != nil {
			return domain.BusinessState{}, nil, err
		}
		if partial == nil {
			return current, nil, nil
		}

		patch, err := sanitize(partial)
		if err != nil {
			return domain.BusinessState{}, nil, err
		}

		next, err := merge(current, patch)
		if err != nil {
			return domain.BusinessState{}, nil, err
		}
		now := s.cfg.Now().UTC()
		next.BusinessID = businessID
		next.LastUpdated = now

		record := domain.StateChangeRecord{
			ID:         changeID(businessID, version+1),
			BusinessID: businessID,
			Changes:    patch,
			Version:    version + 1,
			Timestamp:  now,
		}
		err = s.repo.Save(ctx, &next, version, record)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.metrics.IncStateConflict()
			s.logger.Warn("business state version conflict, retrying",
				zap.String("business_id", businessID),
				zap.Int64("version", version),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return domain.BusinessState{}, nil, domain.TransientPersistence("persist business state", err)
		}
		next.Version = version + 1

		s.metrics.IncStateUpdate()
		return next, patch, nil
	}

	return domain.BusinessState{}, nil, fmt.Errorf("update business %s after %d attempts: %w", businessID, s.cfg.MaxRetries, domain.ErrVersionConflict)
}

// changeID names the record for the write that produced version. Versions never repeat
// for a business, so neither do ids.
func changeID(businessID string, version int64) string {
	return fmt.Sprintf("%s/%d", businessID, version)
}

func (s *Store) load(ctx context.Context, businessID string) (domain.BusinessState, int64, error) {
	stored, err := s.repo.Get(ctx, businessID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.DefaultBusinessState(businessID), 0, nil
	}
	if err != nil {
		return domain.BusinessState{}, 0, domain.TransientPersistence("load business state", err)
	}
	return *stored, stored.Version, nil
}

func (s *Store) publishUpdated(ctx context.Context, state domain.BusinessState, patch map[string]any) {
	if s.bus == nil {
		return
	}
	_, err := s.bus.Publish(ctx, domain.EventInput{
		Type:       domain.EventStateUpdated,
		Source:     "state_store",
		Priority:   domain.PriorityLow,
		BusinessID: state.BusinessID,
		Payload: map[string]any{
			"changes": patch,
			"version": state.Version,
		},
	})
	if err != nil {
		s.logger.Warn("failed to publish state update", zap.String("business_id", state.BusinessID), zap.Error(err))
	}
}

// sanitize normalizes partial to its JSON shape and rejects fields the caller may not set.
func sanitize(partial map[string]any) (repository.Document, error) {
	patch, err := repository.NormalizeMap(partial)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, err)
	}
	for k := range patch {
		if _, ok := mutableFields[k]; !ok {
			return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrUnknownStateField.Message, fmt.Errorf("field %q", k))
		}
	}
	return patch, nil
}

func merge(current domain.BusinessState, patch repository.Document) (domain.BusinessState, error) {
	base, err := repository.ToDocument(current)
	if err != nil {
		return domain.BusinessState{}, err
	}
	merged := repository.Merge(base, patch)

	var next domain.BusinessState
	if err := repository.FromDocument(merged, &next); err != nil {
		return domain.BusinessState{}, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, err)
	}
	if next.Preferences == nil {
		next.Preferences = map[string]any{}
	}
	return next, nil
}
