package timeline

import (
	"context"
	"strings"

	"github.com/fastygo/exportflow/domain"
)

// Scheduler is implemented by internal/timeline.Scheduler.
type Scheduler interface {
	GenerateTimeline(ctx context.Context, businessID, market string) (*domain.Timeline, error)
	GetTimeline(ctx context.Context, businessID, market string) (*domain.Timeline, error)
	UpdateTaskStatus(ctx context.Context, timelineID, taskID string, status domain.TaskStatus) (*domain.Timeline, error)
}

type UseCase struct {
	scheduler Scheduler
}

func New(scheduler Scheduler) *UseCase {
	return &UseCase{scheduler: scheduler}
}

func (uc *UseCase) Generate(ctx context.Context, businessID, market string) (*domain.Timeline, error) {
	return uc.scheduler.GenerateTimeline(ctx, businessID, market)
}

func (uc *UseCase) Get(ctx context.Context, businessID, market string) (*domain.Timeline, error) {
	return uc.scheduler.GetTimeline(ctx, businessID, market)
}

// UpdateTaskStatus accepts the status case-insensitively.
func (uc *UseCase) UpdateTaskStatus(ctx context.Context, timelineID, taskID, status string) (*domain.Timeline, error) {
	if timelineID == "" {
		return nil, domain.ErrTimelineNotFound
	}
	if taskID == "" {
		return nil, domain.ErrTaskNotFound
	}
	return uc.scheduler.UpdateTaskStatus(ctx, timelineID, taskID, domain.TaskStatus(strings.ToUpper(strings.TrimSpace(status))))
}
