package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/fastygo/exportflow/domain"
)

// SetCertificationStatus rewrites one certification's status.
func (s *Store) SetCertificationStatus(ctx context.Context, businessID, certificationID string, status domain.CertificationStatus) (domain.BusinessState, error) {
	if businessID == "" {
		return domain.BusinessState{}, domain.ErrBusinessIDRequired
	}
	return s.apply(ctx, businessID, func(current domain.BusinessState) (map[string]any, error) {
		certs := append([]domain.Certification(nil), current.Profile.Certifications...)
		for i := range certs {
			if certs[i].ID != certificationID {
				continue
			}
			if certs[i].Status == status {
				return nil, nil
			}
			certs[i].Status = status
			return map[string]any{
				"profile": map[string]any{"certifications": certs},
			}, nil
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrCertificationMissing, certificationID)
	})
}

// AddTargetMarket appends country with status NEW. added is false when the business
// already targets country; the check and the write happen under the business lock.
func (s *Store) AddTargetMarket(ctx context.Context, businessID, country string) (state domain.BusinessState, added bool, err error) {
	if businessID == "" {
		return domain.BusinessState{}, false, domain.ErrBusinessIDRequired
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return domain.BusinessState{}, false, domain.ErrCountryRequired
	}
	return s.applyReporting(ctx, businessID, func(current domain.BusinessState) (map[string]any, error) {
		if _, ok := current.TargetMarket(country); ok {
			return nil, nil
		}
		markets := append([]domain.TargetMarket(nil), current.ExportJourney.TargetMarkets...)
		markets = append(markets, domain.TargetMarket{
			Country:    country,
			Status:     domain.MarketNew,
			SelectedAt: s.cfg.Now().UTC(),
		})
		return map[string]any{
			"export_journey": map[string]any{"target_markets": markets},
		}, nil
	})
}

// SetTargetMarketStatus moves a target market forward. Moving backwards is a CONFLICT;
// rewriting the current status is a no-op.
func (s *Store) SetTargetMarketStatus(ctx context.Context, businessID, country string, status domain.MarketStatus) (domain.BusinessState, error) {
	if businessID == "" {
		return domain.BusinessState{}, domain.ErrBusinessIDRequired
	}
	return s.apply(ctx, businessID, func(current domain.BusinessState) (map[string]any, error) {
		markets := append([]domain.TargetMarket(nil), current.ExportJourney.TargetMarkets...)
		for i := range markets {
			if !strings.EqualFold(markets[i].Country, country) {
				continue
			}
			if markets[i].Status == status {
				return nil, nil
			}
			if !markets[i].Status.CanAdvanceTo(status) {
				return nil, domain.InvalidTransition(string(markets[i].Status), string(status))
			}
			markets[i].Status = status
			return map[string]any{
				"export_journey": map[string]any{"target_markets": markets},
			}, nil
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, country)
	})
}
