package market

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/usecase"
)

// MarketData returns size, growth and tariff figures for a country.
type MarketData interface {
	Report(ctx context.Context, country, industry string) (domain.MarketReport, error)
	Markets() []string
}

type UseCase struct {
	data   MarketData
	states usecase.StateReader
	logger *zap.Logger
}

func New(data MarketData, states usecase.StateReader, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{data: data, states: states, logger: logger.Named("market")}
}

// Report builds a fresh report for the business's industry. Nothing is cached.
func (uc *UseCase) Report(ctx context.Context, businessID, country string) (domain.MarketReport, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return domain.MarketReport{}, domain.ErrCountryRequired
	}
	state, err := uc.states.GetBusinessState(ctx, businessID)
	if err != nil {
		return domain.MarketReport{}, err
	}
	return uc.data.Report(ctx, country, state.Profile.Industry)
}

// Markets lists the countries the market data covers.
func (uc *UseCase) Markets() []string {
	return uc.data.Markets()
}
