package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/internal/trigger"
	"github.com/fastygo/exportflow/pkg/render"
)

// Sweeper runs one certification expiry sweep.
type Sweeper interface {
	CheckExpiringCertifications(ctx context.Context, runID string) (trigger.SweepReport, error)
}

// Drainer replays retained events.
type Drainer interface {
	Drain(ctx context.Context) (int, error)
}

type SchedulerConfig struct {
	// SweepSchedule is a cron spec (seconds field optional) or descriptor. Empty disables the sweep job.
	SweepSchedule string
	// DrainInterval of zero disables the outbox job.
	DrainInterval time.Duration
	Now           func() time.Time
}

// Scheduler owns the periodic jobs: the certification sweep and the outbox drain.
type Scheduler struct {
	sweeper Sweeper
	drainer Drainer
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     SchedulerConfig

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewScheduler(sweeper Sweeper, drainer Drainer, logger *zap.Logger, cfg SchedulerConfig) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sweeper: sweeper,
		drainer: drainer,
		logger:  logger,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		cron: cron.New(
			cron.WithParser(cron.NewParser(
				cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
			)),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	if sweeper != nil && cfg.SweepSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.SweepSchedule, s.sweepJob); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule certification sweep %q: %w", cfg.SweepSchedule, err)
		}
	}
	if drainer != nil && cfg.DrainInterval > 0 {
		spec := fmt.Sprintf("@every %ds", int(cfg.DrainInterval.Seconds()))
		if _, err := s.cron.AddFunc(spec, s.drainJob); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule outbox drain: %w", err)
		}
	}
	return s, nil
}

// Jobs reports how many periodic jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", s.Jobs()))
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	s.once.Do(s.cancel)
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

// RunSweep runs the certification sweep for today's UTC date. Reruns on the same day
// skip businesses that already finished.
func (s *Scheduler) RunSweep(ctx context.Context) (trigger.SweepReport, error) {
	runID := s.cfg.Now().UTC().Format(render.DateLayout)
	return s.sweeper.CheckExpiringCertifications(ctx, runID)
}

func (s *Scheduler) sweepJob() {
	report, err := s.RunSweep(s.ctx)
	if err != nil {
		s.logger.Error("certification sweep failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

func (s *Scheduler) drainJob() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DrainInterval)
	defer cancel()
	replayed, err := s.drainer.Drain(ctx)
	if err != nil {
		s.logger.Error("outbox drain failed", zap.Error(err))
		return
	}
	if replayed > 0 {
		s.logger.Info("outbox drained", zap.Int("replayed", replayed))
	}
}

// cronLogger routes robfig/cron's own logging through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
