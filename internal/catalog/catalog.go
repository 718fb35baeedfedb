// Package catalog serves regulatory requirements and market figures from a YAML file.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fastygo/exportflow/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type figures struct {
	MarketSizeUSD float64 `yaml:"market_size_usd"`
	GrowthRate    float64 `yaml:"growth_rate"`
	TariffRate    float64 `yaml:"tariff_rate"`
}

type requirementEntry struct {
	Requirement domain.Requirement `yaml:",inline"`
	Industries  []string           `yaml:"industries"`
}

type market struct {
	Country      string             `yaml:"country"`
	Name         string             `yaml:"name"`
	Figures      figures            `yaml:",inline"`
	Industries   map[string]figures `yaml:"industries"`
	Requirements []requirementEntry `yaml:"requirements"`
}

type document struct {
	Markets []market `yaml:"markets"`
}

// Catalog answers requirement and market-data queries. It is read-only after Load.
type Catalog struct {
	markets map[string]market
	now     func() time.Time
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML, rejecting unknown fields and inconsistent requirement ids.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{markets: make(map[string]market, len(doc.Markets)), now: time.Now}
	for _, m := range doc.Markets {
		code := normalizeCountry(m.Country)
		if code == "" {
			return nil, fmt.Errorf("invalid catalog: market without country")
		}
		if _, dup := c.markets[code]; dup {
			return nil, fmt.Errorf("invalid catalog: duplicate market %s", code)
		}
		if err := validateRequirements(code, m.Requirements); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		m.Country = code
		c.markets[code] = m
	}
	return c, nil
}

// Requirements returns the requirements for market that apply to industry, in catalog order.
func (c *Catalog) Requirements(ctx context.Context, country, industry string) ([]domain.Requirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := c.markets[normalizeCountry(country)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, country)
	}

	out := make([]domain.Requirement, 0, len(m.Requirements))
	for _, entry := range m.Requirements {
		if !appliesTo(entry.Industries, industry) {
			continue
		}
		req := entry.Requirement
		req.Market = m.Country
		req.PrerequisiteIDs = append([]string(nil), entry.Requirement.PrerequisiteIDs...)
		out = append(out, req)
	}
	return out, nil
}

// Report returns market figures, using industry-specific numbers where the catalog has them.
func (c *Catalog) Report(ctx context.Context, country, industry string) (domain.MarketReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.MarketReport{}, err
	}
	m, ok := c.markets[normalizeCountry(country)]
	if !ok {
		return domain.MarketReport{}, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, country)
	}

	f := m.Figures
	if specific, ok := m.Industries[strings.ToLower(industry)]; ok {
		f = specific
	}
	return domain.MarketReport{
		Country:       m.Country,
		Name:          m.Name,
		Industry:      industry,
		MarketSizeUSD: f.MarketSizeUSD,
		GrowthRate:    f.GrowthRate,
		TariffRate:    f.TariffRate,
		GeneratedAt:   c.now().UTC(),
	}, nil
}

// Markets lists the country codes in the catalog.
func (c *Catalog) Markets() []string {
	out := make([]string, 0, len(c.markets))
	for code := range c.markets {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func validateRequirements(country string, reqs []requirementEntry) error {
	byID := make(map[string]requirementEntry, len(reqs))
	for _, entry := range reqs {
		r := entry.Requirement
		if r.ID == "" {
			return fmt.Errorf("%s: requirement without id", country)
		}
		if _, dup := byID[r.ID]; dup {
			return fmt.Errorf("%s: duplicate requirement %s", country, r.ID)
		}
		if r.ProcessingTimeDays < 0 {
			return fmt.Errorf("%s: requirement %s has negative processing time", country, r.ID)
		}
		byID[r.ID] = entry
	}
	// A prerequisite must apply wherever its dependent applies, or filtering by
	// industry would leave a dangling reference.
	for _, entry := range reqs {
		r := entry.Requirement
		for _, p := range r.PrerequisiteIDs {
			prereq, ok := byID[p]
			if !ok {
				return fmt.Errorf("%s: requirement %s references unknown prerequisite %s", country, r.ID, p)
			}
			if !covers(prereq.Industries, entry.Industries) {
				return fmt.Errorf("%s: prerequisite %s does not apply to every industry of %s", country, p, r.ID)
			}
		}
	}
	return nil
}

func covers(outer, inner []string) bool {
	if len(outer) == 0 {
		return true
	}
	if len(inner) == 0 {
		return false
	}
	for _, i := range inner {
		if !appliesTo(outer, i) {
			return false
		}
	}
	return true
}

func appliesTo(industries []string, industry string) bool {
	if len(industries) == 0 {
		return true
	}
	for _, i := range industries {
		if strings.EqualFold(i, industry) {
			return true
		}
	}
	return false
}

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
