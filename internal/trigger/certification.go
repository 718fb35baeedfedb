package trigger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/internal/notification"
	"github.com/fastygo/exportflow/pkg/render"
	"github.com/fastygo/exportflow/repository"
)

const defaultSweepConcurrency = 4

// Notice thresholds in days, largest first. Expired certificates use threshold 0.
var thresholdLadder = []int{90, 60, 30, 14, 7}

// ThresholdFor returns the smallest ladder threshold that days still fits under.
// A certificate with 10 days left is in the 14 day window, one with 7 in the 7 day window.
func ThresholdFor(days int) (int, bool) {
	if days <= 0 {
		return 0, true
	}
	for i := len(thresholdLadder) - 1; i >= 0; i-- {
		if days <= thresholdLadder[i] {
			return thresholdLadder[i], true
		}
	}
	return 0, false
}

type CertificationConfig struct {
	Concurrency int
	Now         func() time.Time
}

// SweepReport summarizes one CheckExpiringCertifications run.
type SweepReport struct {
	RunID      string        `json:"run_id"`
	Businesses int           `json:"businesses"`
	Skipped    int           `json:"skipped"`
	Notified   int           `json:"notified"`
	Expired    int           `json:"expired"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// CertificationMonitor sends one notice per certificate and threshold and expires
// certificates whose expiry date has passed.
type CertificationMonitor struct {
	states      StateStore
	ledger      repository.ThresholdLedger
	checkpoints repository.CheckpointStore
	notifier    Notifier
	bus         Publisher
	logger      *zap.Logger
	metrics     *metrics.Metrics
	cfg         CertificationConfig
}

func NewCertificationMonitor(
	states StateStore,
	ledger repository.ThresholdLedger,
	checkpoints repository.CheckpointStore,
	notifier Notifier,
	bus Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg CertificationConfig,
) *CertificationMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSweepConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CertificationMonitor{
		states:      states,
		ledger:      ledger,
		checkpoints: checkpoints,
		notifier:    notifier,
		bus:         bus,
		logger:      logger.Named("certification_monitor"),
		metrics:     m,
		cfg:         cfg,
	}
}

type businessResult struct {
	skipped  bool
	failed   bool
	notified int
	expired  int
}

// CheckExpiringCertifications sweeps every business. Businesses finished under runID
// are skipped, so a run interrupted halfway can be repeated with the same id. An
// empty runID defaults to today's UTC date.
func (m *CertificationMonitor) CheckExpiringCertifications(ctx context.Context, runID string) (SweepReport, error) {
	now := m.cfg.Now().UTC()
	if runID == "" {
		runID = now.Format(render.DateLayout)
	}
	report := SweepReport{RunID: runID}

	ids, err := m.states.GetAllBusinessIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list businesses: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(m.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			res := m.checkBusiness(ctx, runID, id, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.skipped:
				report.Skipped++
			case res.failed:
				report.Failed++
				report.Businesses++
			default:
				report.Businesses++
			}
			report.Notified += res.notified
			report.Expired += res.expired
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = m.cfg.Now().UTC().Sub(now)
	m.metrics.ObserveSweep(report.Duration, report.Businesses, report.Skipped, report.Failed)
	m.logger.Info("certification sweep finished",
		zap.String("run_id", runID),
		zap.Int("businesses", report.Businesses),
		zap.Int("skipped", report.Skipped),
		zap.Int("notified", report.Notified),
		zap.Int("expired", report.Expired),
		zap.Int("failed", report.Failed))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (m *CertificationMonitor) checkBusiness(ctx context.Context, runID, businessID string, now time.Time) businessResult {
	var res businessResult
	if ctx.Err() != nil {
		res.failed = true
		return res
	}
	log := m.logger.With(zap.String("run_id", runID), zap.String("business_id", businessID))

	done, err := m.checkpoints.Done(ctx, runID, businessID)
	if err != nil {
		log.Error("failed to read sweep checkpoint", zap.Error(err))
		res.failed = true
		return res
	}
	if done {
		res.skipped = true
		return res
	}

	state, err := m.states.GetBusinessState(ctx, businessID)
	if err != nil {
		log.Error("failed to load business state", zap.Error(err))
		res.failed = true
		return res
	}

	for _, cert := range state.ActiveCertifications() {
		notified, expired, err := m.checkCertification(ctx, businessID, cert, now)
		if err != nil {
			log.Error("certification check failed", zap.String("certification_id", cert.ID), zap.Error(err))
			res.failed = true
			continue
		}
		if notified {
			res.notified++
		}
		if expired {
			res.expired++
		}
	}

	// failed businesses stay unmarked so the next run with this id retries them
	if !res.failed {
		if err := m.checkpoints.MarkDone(ctx, runID, businessID); err != nil {
			log.Warn("failed to write sweep checkpoint", zap.Error(err))
		}
	}
	return res
}

func (m *CertificationMonitor) checkCertification(ctx context.Context, businessID string, cert domain.Certification, now time.Time) (notified, expired bool, err error) {
	days := cert.DaysUntilExpiry(now)
	threshold, ok := ThresholdFor(days)
	if !ok {
		return false, false, nil
	}

	record := domain.ThresholdRecord{
		BusinessID:      businessID,
		CertificationID: cert.ID,
		Threshold:       threshold,
		NotifiedAt:      now,
	}
	claimed, err := m.ledger.Claim(ctx, record)
	if err != nil {
		return false, false, fmt.Errorf("claim threshold %d: %w", threshold, err)
	}
	if claimed {
		if err := m.notify(ctx, businessID, cert, days, threshold); err != nil {
			if releaseErr := m.ledger.Release(ctx, record); releaseErr != nil {
				m.logger.Error("failed to release threshold claim",
					zap.String("business_id", businessID),
					zap.String("certification_id", cert.ID),
					zap.Int("threshold", threshold),
					zap.Error(releaseErr))
			}
			return false, false, err
		}
		notified = true
	}

	if days > 0 {
		return notified, false, nil
	}
	// runs even when the notice went out earlier, in case that run stopped before this step
	if err := m.expire(ctx, businessID, cert); err != nil {
		return notified, false, err
	}
	return notified, true, nil
}

func (m *CertificationMonitor) notify(ctx context.Context, businessID string, cert domain.Certification, days, threshold int) error {
	notice, event := domain.NotificationMedium, domain.PriorityMedium
	if days <= 7 {
		notice, event = domain.NotificationHigh, domain.PriorityHigh
	}
	template := notification.TemplateCertificationExpiring
	if days <= 0 {
		template = notification.TemplateCertificationExpired
	}

	_, err := m.notifier.Notify(ctx, businessID, template, map[string]any{
		"days":      days,
		"threshold": threshold,
		"certification": map[string]any{
			"id":          cert.ID,
			"name":        cert.Name,
			"expiry_date": cert.ExpiryDate,
		},
	}, notification.WithPriority(notice))
	if err != nil {
		return fmt.Errorf("notify threshold %d: %w", threshold, err)
	}
	m.metrics.IncThresholdNotification(strconv.Itoa(threshold))

	if days > 0 {
		m.publish(ctx, domain.EventInput{
			Type:       domain.EventCertificationExpiring,
			Source:     "certification_monitor",
			Priority:   event,
			BusinessID: businessID,
			Payload: map[string]any{
				"certification_id":  cert.ID,
				"name":              cert.Name,
				"expiry_date":       cert.ExpiryDate,
				"days_until_expiry": days,
				"threshold":         threshold,
			},
		})
	}
	return nil
}

func (m *CertificationMonitor) expire(ctx context.Context, businessID string, cert domain.Certification) error {
	if _, err := m.states.SetCertificationStatus(ctx, businessID, cert.ID, domain.CertificationExpired); err != nil {
		return fmt.Errorf("expire certification: %w", err)
	}
	m.publish(ctx, domain.EventInput{
		Type:       domain.EventCertificationExpired,
		Source:     "certification_monitor",
		Priority:   domain.PriorityHigh,
		BusinessID: businessID,
		Payload: map[string]any{
			"certification_id": cert.ID,
			"name":             cert.Name,
			"expiry_date":      cert.ExpiryDate,
		},
	})
	return nil
}

func (m *CertificationMonitor) publish(ctx context.Context, in domain.EventInput) {
	if m.bus == nil {
		return
	}
	if _, err := m.bus.Publish(ctx, in); err != nil {
		m.logger.Warn("failed to publish certification event", zap.String("type", string(in.Type)), zap.Error(err))
	}
}
