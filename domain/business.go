package domain

import (
	"math"
	"strings"
	"time"
)

// CertificationStatus tracks the lifecycle of a held certification.
type CertificationStatus string

const (
	CertificationActive  CertificationStatus = "ACTIVE"
	CertificationExpired CertificationStatus = "EXPIRED"
	CertificationPending CertificationStatus = "PENDING"
)

// MarketStatus tracks how far a business has progressed in a target market.
type MarketStatus string

const (
	MarketNew         MarketStatus = "NEW"
	MarketResearching MarketStatus = "RESEARCHING"
	MarketCompliant   MarketStatus = "COMPLIANT"
	MarketActive      MarketStatus = "ACTIVE"
)

var marketStatusOrder = map[MarketStatus]int{
	MarketNew:         0,
	MarketResearching: 1,
	MarketCompliant:   2,
	MarketActive:      3,
}

// CanAdvanceTo reports whether moving to next keeps the status monotonic.
func (s MarketStatus) CanAdvanceTo(next MarketStatus) bool {
	cur, ok := marketStatusOrder[s]
	if !ok {
		cur = -1
	}
	nxt, ok := marketStatusOrder[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Certification is a credential the business holds toward export compliance.
type Certification struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	IssueDate  time.Time           `json:"issue_date"`
	ExpiryDate time.Time           `json:"expiry_date"`
	Status     CertificationStatus `json:"status"`
}

// DaysUntilExpiry rounds up partial days, so anything expiring later today counts as one day.
func (c Certification) DaysUntilExpiry(now time.Time) int {
	return int(math.Ceil(c.ExpiryDate.Sub(now).Hours() / 24))
}

// TargetMarket is a country the business is working toward.
type TargetMarket struct {
	Country    string       `json:"country"`
	Status     MarketStatus `json:"status"`
	SelectedAt time.Time    `json:"selected_at"`
}

type Profile struct {
	Name           string          `json:"name"`
	Industry       string          `json:"industry"`
	Size           string          `json:"size"`
	Products       []string        `json:"products"`
	Certifications []Certification `json:"certifications"`
}

type ExportJourney struct {
	Stage          string         `json:"stage"`
	TargetMarkets  []TargetMarket `json:"target_markets"`
	CompletedSteps []string       `json:"completed_steps"`
	Opportunities  []string       `json:"opportunities"`
}

// BusinessState is the per-business aggregate. It is only mutated through partial merges.
type BusinessState struct {
	BusinessID    string         `json:"business_id"`
	Profile       Profile        `json:"profile"`
	ExportJourney ExportJourney  `json:"export_journey"`
	Preferences   map[string]any `json:"preferences"`
	LastUpdated   time.Time      `json:"last_updated"`
	Version       int64          `json:"version"`
}

// DefaultBusinessState is the shape returned for a business that has never been written.
func DefaultBusinessState(businessID string) BusinessState {
	return BusinessState{
		BusinessID: businessID,
		Profile: Profile{
			Products:       []string{},
			Certifications: []Certification{},
		},
		ExportJourney: ExportJourney{
			Stage:          "exploration",
			TargetMarkets:  []TargetMarket{},
			CompletedSteps: []string{},
			Opportunities:  []string{},
		},
		Preferences: map[string]any{},
	}
}

// TargetMarket finds a market by country code, case-insensitively.
func (s BusinessState) TargetMarket(country string) (TargetMarket, bool) {
	for _, m := range s.ExportJourney.TargetMarkets {
		if strings.EqualFold(m.Country, country) {
			return m, true
		}
	}
	return TargetMarket{}, false
}

// ActiveCertifications filters certifications the expiry monitor should look at.
func (s BusinessState) ActiveCertifications() []Certification {
	var out []Certification
	for _, c := range s.Profile.Certifications {
		if c.Status == CertificationActive {
			out = append(out, c)
		}
	}
	return out
}

// StateChangeRecord is the append-only audit entry written for every update call.
type StateChangeRecord struct {
	ID         string         `json:"id"`
	BusinessID string         `json:"business_id"`
	Changes    map[string]any `json:"changes"`
	Version    int64          `json:"version"`
	Timestamp  time.Time      `json:"timestamp"`
}
