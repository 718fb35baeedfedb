package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/catalog"
)

type industryStates map[string]string

func (s industryStates) GetBusinessState(_ context.Context, businessID string) (domain.BusinessState, error) {
	state := domain.DefaultBusinessState(businessID)
	state.Profile.Industry = s[businessID]
	return state, nil
}

func TestReportUsesBusinessIndustry(t *testing.T) {
	c, err := catalog.Load("")
	require.NoError(t, err)
	uc := New(c, industryStates{"jam-co": "food"}, nil)
	ctx := context.Background()

	food, err := uc.Report(ctx, "jam-co", "de")
	require.NoError(t, err)
	assert.Equal(t, "DE", food.Country)
	assert.InDelta(t, 0.087, food.TariffRate, 1e-9)

	general, err := uc.Report(ctx, "chairs-co", "DE")
	require.NoError(t, err)
	assert.InDelta(t, 0.042, general.TariffRate, 1e-9)

	_, err = uc.Report(ctx, "jam-co", "")
	assert.ErrorIs(t, err, domain.ErrCountryRequired)

	_, err = uc.Report(ctx, "jam-co", "ZZ")
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	assert.Equal(t, []string{"DE", "GB", "JP", "US"}, uc.Markets())
}
