package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/infrastructure/lock"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/repository"
)

const defaultBufferDays = 5

// RequirementsSource provides the requirement set for a market and industry.
type RequirementsSource interface {
	Requirements(ctx context.Context, market, industry string) ([]domain.Requirement, error)
}

// StateReader is the read side of the state store.
type StateReader interface {
	GetBusinessState(ctx context.Context, businessID string) (domain.BusinessState, error)
}

type Publisher interface {
	Publish(ctx context.Context, in domain.EventInput) (string, error)
}

type Config struct {
	BufferDays int
	Now        func() time.Time
}

type Scheduler struct {
	repo    repository.TimelineRepository
	source  RequirementsSource
	states  StateReader
	locker  repository.Locker
	bus     Publisher
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     Config
}

func NewScheduler(
	repo repository.TimelineRepository,
	source RequirementsSource,
	states StateReader,
	locker repository.Locker,
	bus Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Scheduler {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BufferDays <= 0 {
		cfg.BufferDays = defaultBufferDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		repo:    repo,
		source:  source,
		states:  states,
		locker:  locker,
		bus:     bus,
		logger:  logger.Named("timeline"),
		metrics: m,
		cfg:     cfg,
	}
}

// GenerateTimeline builds a fresh timeline for the business's industry in market and
// replaces any previous one for the same pair, keeping its id. On a dependency cycle
// nothing is written.
func (s *Scheduler) GenerateTimeline(ctx context.Context, businessID, market string) (*domain.Timeline, error) {
	if businessID == "" {
		return nil, domain.ErrBusinessIDRequired
	}
	market = normalizeMarket(market)
	if market == "" {
		return nil, domain.ErrMarketRequired
	}

	state, err := s.states.GetBusinessState(ctx, businessID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.source.Requirements(ctx, market, state.Profile.Industry)
	if err != nil {
		return nil, err
	}
	ordered, err := Order(reqs)
	if err != nil {
		s.logger.Warn("requirement set rejected",
			zap.String("business_id", businessID),
			zap.String("market", market),
			zap.Error(err))
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(businessID, market))
	if err != nil {
		return nil, fmt.Errorf("lock timeline %s/%s: %w", businessID, market, err)
	}
	defer unlock()

	now := s.cfg.Now().UTC()
	tl := &domain.Timeline{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Market:     market,
		CreatedAt:  now,
	}
	previous, err := s.repo.FindByBusinessMarket(ctx, businessID, market)
	switch {
	case err == nil:
		tl.ID = previous.ID
		tl.CreatedAt = previous.CreatedAt
	case !errors.Is(err, domain.ErrTimelineNotFound):
		return nil, domain.TransientPersistence("load timeline", err)
	}

	tl.Tasks = Schedule(ordered, now, s.cfg.BufferDays)
	tl.UpdatedAt = now
	for _, task := range tl.Tasks {
		tl.TotalCost += task.Cost
	}
	tl.RecomputeProgress()

	if err := s.repo.Save(ctx, tl); err != nil {
		return nil, domain.TransientPersistence("persist timeline", err)
	}
	s.metrics.IncTimelineGenerated()

	completion := CompletionDate(tl.Tasks)
	if completion.IsZero() {
		completion = now
	}
	s.publish(ctx, domain.EventInput{
		Type:       domain.EventTimelineGenerated,
		Source:     "timeline_scheduler",
		Priority:   domain.PriorityMedium,
		BusinessID: businessID,
		Payload: map[string]any{
			"timeline_id":     tl.ID,
			"market":          market,
			"task_count":      len(tl.Tasks),
			"total_cost":      tl.TotalCost,
			"completion_date": completion,
		},
	})

	s.logger.Info("timeline generated",
		zap.String("business_id", businessID),
		zap.String("market", market),
		zap.String("timeline_id", tl.ID),
		zap.Int("tasks", len(tl.Tasks)))
	return tl, nil
}

func (s *Scheduler) GetTimeline(ctx context.Context, businessID, market string) (*domain.Timeline, error) {
	if businessID == "" {
		return nil, domain.ErrBusinessIDRequired
	}
	market = normalizeMarket(market)
	if market == "" {
		return nil, domain.ErrMarketRequired
	}
	return s.repo.FindByBusinessMarket(ctx, businessID, market)
}

// UpdateTaskStatus moves one task forward and recomputes progress.
// Setting the current status again is a no-op.
func (s *Scheduler) UpdateTaskStatus(ctx context.Context, timelineID, taskID string, status domain.TaskStatus) (*domain.Timeline, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidTaskStatus
	}

	tl, err := s.repo.GetByID(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, lockKey(tl.BusinessID, tl.Market))
	if err != nil {
		return nil, fmt.Errorf("lock timeline %s: %w", timelineID, err)
	}
	defer unlock()

	// reload under the lock, a regeneration may have replaced the tasks
	tl, err = s.repo.GetByID(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	task, ok := tl.Task(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	from := task.Status
	if from == status {
		return tl, nil
	}
	if !from.CanTransition(status) {
		return nil, domain.InvalidTransition(string(from), string(status))
	}

	task.Status = status
	tl.UpdatedAt = s.cfg.Now().UTC()
	tl.RecomputeProgress()
	if err := s.repo.Save(ctx, tl); err != nil {
		return nil, domain.TransientPersistence("persist timeline", err)
	}

	s.publish(ctx, domain.EventInput{
		Type:       domain.EventTimelineTaskUpdated,
		Source:     "timeline_scheduler",
		Priority:   domain.PriorityLow,
		BusinessID: tl.BusinessID,
		Payload: map[string]any{
			"timeline_id":    tl.ID,
			"task_id":        taskID,
			"requirement_id": task.RequirementID,
			"from":           string(from),
			"to":             string(status),
			"progress":       tl.Progress,
		},
	})
	return tl, nil
}

func (s *Scheduler) publish(ctx context.Context, in domain.EventInput) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Publish(ctx, in); err != nil {
		s.logger.Warn("failed to publish timeline event", zap.String("type", string(in.Type)), zap.Error(err))
	}
}

func lockKey(businessID, market string) string {
	return "timeline:" + businessID + "/" + market
}

func normalizeMarket(market string) string {
	return strings.ToUpper(strings.TrimSpace(market))
}
