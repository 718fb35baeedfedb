package business

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/eventbus"
	"github.com/fastygo/exportflow/usecase"
)

// StateStore is what the business use case needs from the state store.
type StateStore interface {
	usecase.StateReader
	UpdateBusinessState(ctx context.Context, businessID string, partial map[string]any) (domain.BusinessState, error)
	GetChangeHistory(ctx context.Context, businessID string, limit int) ([]domain.StateChangeRecord, error)
	AddTargetMarket(ctx context.Context, businessID, country string) (domain.BusinessState, bool, error)
}

// EventLog reads back published events.
type EventLog interface {
	GetRecentEvents(ctx context.Context, q eventbus.RecentQuery) ([]domain.Event, error)
}

type UseCase struct {
	states StateStore
	bus    usecase.Publisher
	events EventLog
	logger *zap.Logger
}

func New(states StateStore, bus usecase.Publisher, events EventLog, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		states: states,
		bus:    bus,
		events: events,
		logger: logger.Named("business"),
	}
}

func (uc *UseCase) GetState(ctx context.Context, businessID string) (domain.BusinessState, error) {
	return uc.states.GetBusinessState(ctx, businessID)
}

// UpdateState merges partial into the business state. A change that touches the profile
// is also announced as BUSINESS_PROFILE_UPDATED.
func (uc *UseCase) UpdateState(ctx context.Context, businessID string, partial map[string]any) (domain.BusinessState, error) {
	state, err := uc.states.UpdateBusinessState(ctx, businessID, partial)
	if err != nil {
		return domain.BusinessState{}, err
	}
	if profile, ok := partial["profile"]; ok {
		uc.publish(ctx, domain.EventInput{
			Type:       domain.EventBusinessProfileUpdated,
			Source:     usecase.Source,
			Priority:   domain.PriorityMedium,
			BusinessID: businessID,
			Payload: map[string]any{
				"changes": profile,
				"version": state.Version,
			},
		})
	}
	return state, nil
}

func (uc *UseCase) History(ctx context.Context, businessID string, limit int) ([]domain.StateChangeRecord, error) {
	return uc.states.GetChangeHistory(ctx, businessID, limit)
}

// SelectMarket adds country as a NEW target market and publishes MARKET_SELECTED.
// Selecting a market that is already targeted changes nothing and publishes nothing.
func (uc *UseCase) SelectMarket(ctx context.Context, businessID, country string) (domain.BusinessState, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if businessID == "" {
		return domain.BusinessState{}, domain.ErrBusinessIDRequired
	}
	if country == "" {
		return domain.BusinessState{}, domain.ErrCountryRequired
	}

	state, added, err := uc.states.AddTargetMarket(ctx, businessID, country)
	if err != nil {
		return domain.BusinessState{}, err
	}
	if !added {
		return state, nil
	}
	uc.publish(ctx, domain.EventInput{
		Type:       domain.EventMarketSelected,
		Source:     usecase.Source,
		Priority:   domain.PriorityMedium,
		BusinessID: businessID,
		Payload:    map[string]any{"market": country},
	})

	// Subscribers may have advanced the market already; return what they left behind.
	if latest, err := uc.states.GetBusinessState(ctx, businessID); err == nil {
		return latest, nil
	}
	return state, nil
}

// Events returns the business's recent events, newest first.
func (uc *UseCase) Events(ctx context.Context, businessID string, eventType domain.EventType, limit int) ([]domain.Event, error) {
	if businessID == "" {
		return nil, domain.ErrBusinessIDRequired
	}
	return uc.events.GetRecentEvents(ctx, eventbus.RecentQuery{
		Type:       eventType,
		BusinessID: businessID,
		Limit:      limit,
	})
}

func (uc *UseCase) publish(ctx context.Context, in domain.EventInput) {
	if uc.bus == nil {
		return
	}
	if _, err := uc.bus.Publish(ctx, in); err != nil {
		uc.logger.Warn("failed to publish event",
			zap.String("event_type", string(in.Type)),
			zap.String("business_id", in.BusinessID),
			zap.Error(err))
	}
}
