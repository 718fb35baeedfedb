package usecase

import (
	"context"

	"github.com/fastygo/exportflow/domain"
)

// Publisher is the slice of the event bus the use cases publish through.
type Publisher interface {
	Publish(ctx context.Context, in domain.EventInput) (string, error)
}

// StateReader reads business state without mutating it.
type StateReader interface {
	GetBusinessState(ctx context.Context, businessID string) (domain.BusinessState, error)
}

// Source identifies events published by the API-facing use cases.
const Source = "api"
