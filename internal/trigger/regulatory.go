package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/notification"
)

// RegulatoryMonitor reacts to MARKET_SELECTED by surfacing every requirement of the market.
type RegulatoryMonitor struct {
	states   StateStore
	source   RequirementsSource
	notifier Notifier
	bus      Publisher
	logger   *zap.Logger
}

func NewRegulatoryMonitor(states StateStore, source RequirementsSource, notifier Notifier, bus Publisher, logger *zap.Logger) *RegulatoryMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegulatoryMonitor{
		states:   states,
		source:   source,
		notifier: notifier,
		bus:      bus,
		logger:   logger.Named("regulatory_monitor"),
	}
}

func (m *RegulatoryMonitor) Register(sub Subscriber) {
	sub.Subscribe(domain.EventMarketSelected, m.handleMarketSelected)
}

func (m *RegulatoryMonitor) handleMarketSelected(ctx context.Context, evt domain.Event) error {
	market := stringField(evt.Payload, "market")
	if evt.BusinessID == "" || market == "" {
		return fmt.Errorf("market selected event %s: %w", evt.ID, domain.ErrInvalidPayload)
	}
	_, err := m.CheckMarket(ctx, evt.BusinessID, market)
	return err
}

// CheckMarket publishes and notifies every requirement for the business's industry in
// market, then moves the target market from NEW to RESEARCHING. It returns the
// requirements found.
func (m *RegulatoryMonitor) CheckMarket(ctx context.Context, businessID, market string) ([]domain.Requirement, error) {
	market = strings.ToUpper(strings.TrimSpace(market))
	if market == "" {
		return nil, domain.ErrCountryRequired
	}
	state, err := m.states.GetBusinessState(ctx, businessID)
	if err != nil {
		return nil, err
	}
	reqs, err := m.source.Requirements(ctx, market, state.Profile.Industry)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, req := range reqs {
		m.publishDetected(ctx, businessID, market, req)

		var opts []notification.Option
		if !req.Mandatory {
			opts = append(opts, notification.WithPriority(domain.NotificationMedium))
		}
		if _, err := m.notifier.Notify(ctx, businessID, notification.TemplateRegulatoryRequirement, map[string]any{
			"market": market,
			"requirement": map[string]any{
				"id":                   req.ID,
				"name":                 req.Name,
				"issuing_authority":    req.IssuingAuthority,
				"processing_time_days": req.ProcessingTimeDays,
				"estimated_cost":       req.EstimatedCost,
			},
		}, opts...); err != nil {
			errs = append(errs, fmt.Errorf("notify requirement %s: %w", req.ID, err))
		}
	}

	if err := m.advance(ctx, businessID, market); err != nil {
		errs = append(errs, err)
	}

	m.logger.Info("market requirements checked",
		zap.String("business_id", businessID),
		zap.String("market", market),
		zap.Int("requirements", len(reqs)),
		zap.Int("errors", len(errs)))
	return reqs, errors.Join(errs...)
}

func (m *RegulatoryMonitor) publishDetected(ctx context.Context, businessID, market string, req domain.Requirement) {
	if m.bus == nil {
		return
	}
	priority := domain.PriorityMedium
	if req.Mandatory {
		priority = domain.PriorityHigh
	}
	_, err := m.bus.Publish(ctx, domain.EventInput{
		Type:       domain.EventRegulatoryRequirementFound,
		Source:     "regulatory_monitor",
		Priority:   priority,
		BusinessID: businessID,
		Payload: map[string]any{
			"market":               market,
			"requirement_id":       req.ID,
			"name":                 req.Name,
			"issuing_authority":    req.IssuingAuthority,
			"processing_time_days": req.ProcessingTimeDays,
			"estimated_cost":       req.EstimatedCost,
			"mandatory":            req.Mandatory,
		},
	})
	if err != nil {
		m.logger.Warn("failed to publish requirement", zap.String("requirement_id", req.ID), zap.Error(err))
	}
}

// advance is a no-op for markets already past NEW.
func (m *RegulatoryMonitor) advance(ctx context.Context, businessID, market string) error {
	_, err := m.states.SetTargetMarketStatus(ctx, businessID, market, domain.MarketResearching)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		return nil
	case errors.Is(err, domain.ErrMarketNotFound):
		m.logger.Warn("requirements checked for a market the business has not selected",
			zap.String("business_id", businessID),
			zap.String("market", market))
		return nil
	default:
		return fmt.Errorf("advance market %s: %w", market, err)
	}
}
