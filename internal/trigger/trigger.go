// Package trigger holds the monitors that turn events and periodic sweeps into
// state changes, notifications and follow-up events.
package trigger

import (
	"context"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/eventbus"
	"github.com/fastygo/exportflow/internal/notification"
)

type Subscriber interface {
	Subscribe(eventType domain.EventType, handler eventbus.Handler, opts ...eventbus.Option) eventbus.SubscriptionID
}

type Publisher interface {
	Publish(ctx context.Context, in domain.EventInput) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, businessID, templateType string, data map[string]any, opts ...notification.Option) (string, error)
}

// StateStore is the part of the state store the monitors drive.
type StateStore interface {
	GetAllBusinessIDs(ctx context.Context) ([]string, error)
	GetBusinessState(ctx context.Context, businessID string) (domain.BusinessState, error)
	SetCertificationStatus(ctx context.Context, businessID, certificationID string, status domain.CertificationStatus) (domain.BusinessState, error)
	SetTargetMarketStatus(ctx context.Context, businessID, country string, status domain.MarketStatus) (domain.BusinessState, error)
}

type RequirementsSource interface {
	Requirements(ctx context.Context, market, industry string) ([]domain.Requirement, error)
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}
