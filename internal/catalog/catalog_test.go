package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/exportflow/domain"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "GB", "JP", "US"}, c.Markets())
}

func TestRequirementsFilterByIndustry(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	ctx := context.Background()

	food, err := c.Requirements(ctx, "de", "Food")
	require.NoError(t, err)
	ids := make([]string, len(food))
	for i, r := range food {
		ids[i] = r.ID
		assert.Equal(t, "DE", r.Market)
	}
	assert.Equal(t, []string{"de-eori", "de-food-registration", "de-food-labelling"}, ids)
	assert.Equal(t, []string{"de-eori"}, food[1].PrerequisiteIDs)
	assert.Equal(t, 30, food[1].ProcessingTimeDays)
	assert.True(t, food[1].Mandatory)

	other, err := c.Requirements(ctx, "DE", "furniture")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "de-eori", other[0].ID)

	_, err = c.Requirements(ctx, "ZZ", "food")
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestReport(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	ctx := context.Background()

	general, err := c.Report(ctx, "DE", "furniture")
	require.NoError(t, err)
	assert.Equal(t, "Germany", general.Name)
	assert.InDelta(t, 0.042, general.TariffRate, 1e-9)

	food, err := c.Report(ctx, "DE", "food")
	require.NoError(t, err)
	assert.InDelta(t, 0.087, food.TariffRate, 1e-9)
	assert.Equal(t, "food", food.Industry)
	assert.False(t, food.GeneratedAt.IsZero())

	_, err = c.Report(ctx, "ZZ", "food")
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown field",
			yaml: "markets:\n  - country: DE\n    colour: red\n",
		},
		{
			name: "duplicate market",
			yaml: "markets:\n  - country: DE\n  - country: de\n",
		},
		{
			name: "duplicate requirement",
			yaml: "markets:\n  - country: DE\n    requirements:\n      - id: a\n      - id: a\n",
		},
		{
			name: "unknown prerequisite",
			yaml: "markets:\n  - country: DE\n    requirements:\n      - id: a\n        prerequisites: [b]\n",
		},
		{
			name: "prerequisite narrower than dependent",
			yaml: "markets:\n  - country: DE\n    requirements:\n      - id: a\n        industries: [food]\n      - id: b\n        prerequisites: [a]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`markets:
  - country: FR
    name: France
    market_size_usd: 100
    requirements:
      - id: fr-a
        name: A
        processing_time_days: 30
      - id: fr-b
        name: B
        processing_time_days: 45
        prerequisites: [fr-a]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	reqs, err := c.Requirements(context.Background(), "FR", "anything")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"fr-a"}, reqs[1].PrerequisiteIDs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
