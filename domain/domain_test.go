package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificationDaysUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{"exact days", now.AddDate(0, 0, 10), 10},
		{"partial day rounds up", now.Add(9*24*time.Hour + time.Hour), 10},
		{"later today", now.Add(time.Hour), 1},
		{"now", now, 0},
		{"yesterday", now.AddDate(0, 0, -1), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Certification{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, c.DaysUntilExpiry(now))
		})
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	assert.True(t, TaskNotStarted.CanTransition(TaskInProgress))
	assert.True(t, TaskInProgress.CanTransition(TaskCompleted))
	assert.True(t, TaskCompleted.CanTransition(TaskCompleted))

	assert.False(t, TaskNotStarted.CanTransition(TaskCompleted))
	assert.False(t, TaskInProgress.CanTransition(TaskNotStarted))
	assert.False(t, TaskCompleted.CanTransition(TaskInProgress))
	assert.False(t, TaskStatus("DONE").Valid())
}

func TestMarketStatusOnlyMovesForward(t *testing.T) {
	assert.True(t, MarketNew.CanAdvanceTo(MarketResearching))
	assert.True(t, MarketResearching.CanAdvanceTo(MarketActive))
	assert.False(t, MarketResearching.CanAdvanceTo(MarketNew))
	assert.False(t, MarketCompliant.CanAdvanceTo(MarketCompliant))
}

func TestTimelineRecomputeProgress(t *testing.T) {
	tl := &Timeline{Tasks: []TimelineTask{
		{ID: "a", Status: TaskCompleted},
		{ID: "b", Status: TaskInProgress},
		{ID: "c", Status: TaskNotStarted},
		{ID: "d", Status: TaskCompleted},
	}}
	tl.RecomputeProgress()
	assert.InDelta(t, 0.5, tl.Progress, 1e-9)

	empty := &Timeline{}
	empty.RecomputeProgress()
	assert.Zero(t, empty.Progress)
}

func TestNotificationPriorityMapping(t *testing.T) {
	assert.Equal(t, PriorityCritical, NotificationUrgent.EventPriority())
	assert.Equal(t, PriorityHigh, NotificationHigh.EventPriority())
	assert.Equal(t, PriorityMedium, NotificationMedium.EventPriority())
	assert.Equal(t, PriorityLow, NotificationLow.EventPriority())
	assert.Equal(t, PriorityLow, NotificationPriority("").EventPriority())
}

func TestDomainErrorsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("generate: %w", CycleDetected([]string{"a", "b", "a"}))

	require.True(t, errors.Is(err, ErrCycleDetected))
	assert.True(t, IsDomainError(err, ErrCodeCycleDetected))
	assert.Contains(t, err.Error(), "a -> b -> a")
	assert.False(t, errors.Is(err, ErrUnknownTemplate))
}
