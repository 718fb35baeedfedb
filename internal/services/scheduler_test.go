package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/exportflow/internal/trigger"
)

type recordingSweeper struct {
	runs []string
}

func (s *recordingSweeper) CheckExpiringCertifications(_ context.Context, runID string) (trigger.SweepReport, error) {
	s.runs = append(s.runs, runID)
	return trigger.SweepReport{RunID: runID}, nil
}

type countingDrainer struct {
	calls atomic.Int32
}

func (d *countingDrainer) Drain(context.Context) (int, error) {
	d.calls.Add(1)
	return 0, nil
}

func TestRunSweepUsesUTCDate(t *testing.T) {
	sweeper := &recordingSweeper{}
	// 23:30 in UTC-5 is already the next day in UTC.
	local := time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	s, err := NewScheduler(sweeper, nil, nil, SchedulerConfig{
		SweepSchedule: "@daily",
		Now:           func() time.Time { return local },
	})
	require.NoError(t, err)

	report, err := s.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02", report.RunID)
	assert.Equal(t, []string{"2025-03-02"}, sweeper.runs)
}

func TestSchedulerJobs(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SchedulerConfig
		jobs    int
		wantErr bool
	}{
		{name: "sweep and drain", cfg: SchedulerConfig{SweepSchedule: "@daily", DrainInterval: 30 * time.Second}, jobs: 2},
		{name: "cron spec with seconds", cfg: SchedulerConfig{SweepSchedule: "0 0 6 * * *"}, jobs: 1},
		{name: "five field cron spec", cfg: SchedulerConfig{SweepSchedule: "30 6 * * *"}, jobs: 1},
		{name: "nothing enabled", cfg: SchedulerConfig{}, jobs: 0},
		{name: "bad schedule", cfg: SchedulerConfig{SweepSchedule: "whenever"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(&recordingSweeper{}, &countingDrainer{}, nil, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.jobs, s.Jobs())
		})
	}
}

func TestDrainJobRunsOnSchedule(t *testing.T) {
	drainer := &countingDrainer{}
	s, err := NewScheduler(nil, drainer, nil, SchedulerConfig{DrainInterval: time.Second})
	require.NoError(t, err)

	s.Start()
	time.Sleep(2500 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.GreaterOrEqual(t, drainer.calls.Load(), int32(1))
}
