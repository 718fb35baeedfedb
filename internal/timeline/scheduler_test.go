package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/internal/testutil"
	"github.com/fastygo/exportflow/repository"
	"github.com/fastygo/exportflow/repository/docstore"
)

type staticSource struct {
	reqs map[string][]domain.Requirement
	err  error
}

func (s *staticSource) Requirements(_ context.Context, market, industry string) ([]domain.Requirement, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reqs[market+"/"+industry], nil
}

type staticStates struct {
	industry string
}

func (s staticStates) GetBusinessState(_ context.Context, businessID string) (domain.BusinessState, error) {
	st := domain.DefaultBusinessState(businessID)
	st.Profile.Industry = s.industry
	return st, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.EventInput
}

func (p *recordingPublisher) Publish(_ context.Context, in domain.EventInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, in)
	return "evt", nil
}

type SchedulerSuite struct {
	suite.Suite
	repo      repository.TimelineRepository
	source    *staticSource
	bus       *recordingPublisher
	clock     *testutil.Clock
	metrics   *metrics.Metrics
	scheduler *Scheduler
	ctx       context.Context
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.repo = docstore.NewTimelineRepository(testutil.NewDocumentStore(s.T()))
	s.source = &staticSource{reqs: map[string][]domain.Requirement{
		"DE/food": {
			{ID: "B", Name: "Food registration", ProcessingTimeDays: 45, EstimatedCost: 300, PrerequisiteIDs: []string{"A"}, Mandatory: true},
			{ID: "A", Name: "EORI", ProcessingTimeDays: 30, EstimatedCost: 100, Mandatory: true},
		},
		"JP/food": {
			{ID: "x", ProcessingTimeDays: 5, PrerequisiteIDs: []string{"y"}},
			{ID: "y", ProcessingTimeDays: 5, PrerequisiteIDs: []string{"x"}},
		},
	}}
	s.bus = &recordingPublisher{}
	s.clock = testutil.NewClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.scheduler = NewScheduler(s.repo, s.source, staticStates{industry: "food"}, nil, s.bus, nil, s.metrics, Config{Now: s.clock.Now})
	s.ctx = context.Background()
}

// =============================================================================
// Generation
// =============================================================================

func (s *SchedulerSuite) TestGenerateTimeline() {
	tl, err := s.scheduler.GenerateTimeline(s.ctx, "biz", " de ")
	s.Require().NoError(err)
	s.Equal("DE", tl.Market)
	s.Equal(0.0, tl.Progress)
	s.Equal(400.0, tl.TotalCost)
	s.Require().Len(tl.Tasks, 2)

	a, b := tl.Tasks[0], tl.Tasks[1]
	s.Equal("A", a.RequirementID)
	s.True(b.StartDate.Equal(a.EndDate.AddDate(0, 0, 5)))
	s.True(b.EndDate.Equal(b.StartDate.AddDate(0, 0, 45)))

	stored, err := s.scheduler.GetTimeline(s.ctx, "biz", "DE")
	s.Require().NoError(err)
	s.Equal(tl.ID, stored.ID)
	s.Len(stored.Tasks, 2)

	s.Require().Len(s.bus.events, 1)
	evt := s.bus.events[0]
	s.Equal(domain.EventTimelineGenerated, evt.Type)
	s.Equal(tl.ID, evt.Payload["timeline_id"])
	s.Equal(2, evt.Payload["task_count"])
	s.Equal(1.0, promtest.ToFloat64(s.metrics.TimelinesGenerated))
}

func (s *SchedulerSuite) TestRegenerateKeepsIDAndReplacesTasks() {
	first, err := s.scheduler.GenerateTimeline(s.ctx, "biz", "DE")
	s.Require().NoError(err)
	_, err = s.scheduler.UpdateTaskStatus(s.ctx, first.ID, first.Tasks[0].ID, domain.TaskInProgress)
	s.Require().NoError(err)

	s.clock.Advance(48 * time.Hour)
	second, err := s.scheduler.GenerateTimeline(s.ctx, "biz", "DE")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.True(second.CreatedAt.Equal(first.CreatedAt))
	s.True(second.UpdatedAt.After(first.UpdatedAt))
	s.NotEqual(first.Tasks[0].ID, second.Tasks[0].ID)
	s.Equal(domain.TaskNotStarted, second.Tasks[0].Status)

	stored, err := s.repo.GetByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Tasks, 2)
	s.Equal(second.Tasks[0].ID, stored.Tasks[0].ID)
}

func (s *SchedulerSuite) TestCycleIsRejectedAndNothingPersisted() {
	_, err := s.scheduler.GenerateTimeline(s.ctx, "biz", "JP")
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrCycleDetected)

	_, err = s.scheduler.GetTimeline(s.ctx, "biz", "JP")
	s.ErrorIs(err, domain.ErrTimelineNotFound)
	s.Empty(s.bus.events)
}

func (s *SchedulerSuite) TestEmptyRequirementSet() {
	tl, err := s.scheduler.GenerateTimeline(s.ctx, "biz", "US")
	s.Require().NoError(err)
	s.Empty(tl.Tasks)
	s.Equal(0.0, tl.Progress)
}

func (s *SchedulerSuite) TestGenerateValidatesInput() {
	_, err := s.scheduler.GenerateTimeline(s.ctx, "", "DE")
	s.ErrorIs(err, domain.ErrBusinessIDRequired)

	_, err = s.scheduler.GenerateTimeline(s.ctx, "biz", "  ")
	s.ErrorIs(err, domain.ErrMarketRequired)

	s.source.err = errors.New("catalog offline")
	_, err = s.scheduler.GenerateTimeline(s.ctx, "biz", "DE")
	s.EqualError(err, "catalog offline")
}

// =============================================================================
// Task status
// =============================================================================

func (s *SchedulerSuite) TestUpdateTaskStatus() {
	tl, err := s.scheduler.GenerateTimeline(s.ctx, "biz", "DE")
	s.Require().NoError(err)
	taskID := tl.Tasks[0].ID

	updated, err := s.scheduler.UpdateTaskStatus(s.ctx, tl.ID, taskID, domain.TaskInProgress)
	s.Require().NoError(err)
	s.Equal(0.0, updated.Progress)

	updated, err = s.scheduler.UpdateTaskStatus(s.ctx, tl.ID, taskID, domain.TaskCompleted)
	s.Require().NoError(err)
	s.Equal(0.5, updated.Progress)

	stored, err := s.repo.GetByID(s.ctx, tl.ID)
	s.Require().NoError(err)
	s.Equal(0.5, stored.Progress)
	s.Equal(domain.TaskCompleted, stored.Tasks[0].Status)

	last := s.bus.events[len(s.bus.events)-1]
	s.Equal(domain.EventTimelineTaskUpdated, last.Type)
	s.Equal("IN_PROGRESS", last.Payload["from"])
	s.Equal("COMPLETED", last.Payload["to"])
}

func (s *SchedulerSuite) TestUpdateTaskStatusRejections() {
	tl, err := s.scheduler.GenerateTimeline(s.ctx, "biz", "DE")
	s.Require().NoError(err)
	taskID := tl.Tasks[1].ID

	_, err = s.scheduler.UpdateTaskStatus(s.ctx, tl.ID, taskID, domain.TaskCompleted)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.True(domain.IsDomainError(err, domain.ErrCodeConflict))

	_, err = s.scheduler.UpdateTaskStatus(s.ctx, tl.ID, taskID, "DONE")
	s.ErrorIs(err, domain.ErrInvalidTaskStatus)

	_, err = s.scheduler.UpdateTaskStatus(s.ctx, "missing", taskID, domain.TaskInProgress)
	s.ErrorIs(err, domain.ErrTimelineNotFound)

	_, err = s.scheduler.UpdateTaskStatus(s.ctx, tl.ID, "missing", domain.TaskInProgress)
	s.ErrorIs(err, domain.ErrTaskNotFound)

	published := len(s.bus.events)
	same, err := s.scheduler.UpdateTaskStatus(s.ctx, tl.ID, taskID, domain.TaskNotStarted)
	s.Require().NoError(err)
	s.Equal(domain.TaskNotStarted, same.Tasks[1].Status)
	s.Len(s.bus.events, published)
}
