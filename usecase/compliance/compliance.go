package compliance

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/internal/trigger"
)

// Sweeper runs a certification expiry sweep.
type Sweeper interface {
	CheckExpiringCertifications(ctx context.Context, runID string) (trigger.SweepReport, error)
}

type UseCase struct {
	sweeper Sweeper
	logger  *zap.Logger
}

func New(sweeper Sweeper, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{sweeper: sweeper, logger: logger.Named("compliance")}
}

// RunSweep runs the certification sweep on demand. An empty runID means today's UTC date,
// the same run the daily job uses, so a manual run and the job never double-notify.
func (uc *UseCase) RunSweep(ctx context.Context, runID string) (trigger.SweepReport, error) {
	report, err := uc.sweeper.CheckExpiringCertifications(ctx, runID)
	if err != nil {
		uc.logger.Error("certification sweep failed", zap.String("run_id", report.RunID), zap.Error(err))
		return report, err
	}
	uc.logger.Info("certification sweep requested",
		zap.String("run_id", report.RunID),
		zap.Int("notified", report.Notified),
		zap.Int("expired", report.Expired))
	return report, nil
}
