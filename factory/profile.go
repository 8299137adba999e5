/*
Package factory provides JSON to Go calculator profile conversion.

PURPOSE:
  Converts JSON profile definitions into rates.CalculatorProfile values and
  back. Revenue managers edit profiles in the admin UI; the factory
  validates them and fills in defaults before they reach the calculator.

JSON SCHEMA:
  {
    "multiplier": "1.3",
    "tax_mode": "exclusive",
    "tax_percent": "8",
    "non_refundable": {"active": true, "percent": "15"},
    "mobile_rate":    {"active": true, "percent": "10"},
    "country_rate":   {"active": false, "percent": "0"},
    "campaigns": [
      {
        "id": "bf-2026",
        "slug": "black-friday",
        "discount_percent": "40",
        "start_date": "2026-11-27",
        "end_date": "2026-11-30",
        "active": true
      }
    ]
  }

  Numbers may be given as JSON numbers or strings.

VALIDATION:
  - multiplier >= 0 (defaults to 1 when omitted)
  - tax_mode is "inclusive" or "exclusive" (defaults to inclusive)
  - every percent within 0-100, tax_percent >= 0
  - campaign slug and both dates present, end_date not before start_date

SEE ALSO:
  - rates/types.go: CalculatorProfile
  - store/sqlite/sqlite.go: Persists profiles as this JSON
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/rates"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProfileJSON is the JSON representation of a calculator profile.
type ProfileJSON struct {
	Multiplier    *decimal.Decimal `json:"multiplier,omitempty"`
	TaxMode       string           `json:"tax_mode,omitempty"`
	TaxPercent    decimal.Decimal  `json:"tax_percent"`
	NonRefundable ToggleJSON       `json:"non_refundable"`
	MobileRate    ToggleJSON       `json:"mobile_rate"`
	CountryRate   ToggleJSON       `json:"country_rate"`
	Campaigns     []CampaignJSON   `json:"campaigns,omitempty"`
}

// ToggleJSON represents an optional percentage discount.
type ToggleJSON struct {
	Active  bool            `json:"active"`
	Percent decimal.Decimal `json:"percent"`
}

// CampaignJSON represents a promotion.
type CampaignJSON struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Active          bool            `json:"active"`
}

// =============================================================================
// PROFILE FACTORY
// =============================================================================

// ProfileFactory converts JSON profiles to Go structs.
type ProfileFactory struct{}

func NewProfileFactory() *ProfileFactory {
	return &ProfileFactory{}
}

// ParseProfile parses and validates a JSON profile.
func (f *ProfileFactory) ParseProfile(jsonStr string) (rates.CalculatorProfile, error) {
	var pj ProfileJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return rates.CalculatorProfile{}, fmt.Errorf("%w: failed to parse profile JSON: %v", rates.ErrInvalidProfile, err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ProfileJSON to a validated rates.CalculatorProfile.
func (f *ProfileFactory) FromJSON(pj ProfileJSON) (rates.CalculatorProfile, error) {
	profile := rates.DefaultProfile()

	if pj.Multiplier != nil {
		if pj.Multiplier.IsNegative() {
			return rates.CalculatorProfile{}, invalid("multiplier must be >= 0, got %s", pj.Multiplier)
		}
		profile.Multiplier = *pj.Multiplier
	}

	switch strings.ToLower(strings.TrimSpace(pj.TaxMode)) {
	case "", string(rates.TaxInclusive):
		profile.TaxMode = rates.TaxInclusive
	case string(rates.TaxExclusive):
		profile.TaxMode = rates.TaxExclusive
	default:
		return rates.CalculatorProfile{}, invalid("unknown tax_mode %q", pj.TaxMode)
	}
	if pj.TaxPercent.IsNegative() {
		return rates.CalculatorProfile{}, invalid("tax_percent must be >= 0, got %s", pj.TaxPercent)
	}
	profile.TaxPercent = pj.TaxPercent

	var err error
	if profile.NonRefundable, err = parseToggle("non_refundable", pj.NonRefundable); err != nil {
		return rates.CalculatorProfile{}, err
	}
	if profile.MobileRate, err = parseToggle("mobile_rate", pj.MobileRate); err != nil {
		return rates.CalculatorProfile{}, err
	}
	if profile.CountryRate, err = parseToggle("country_rate", pj.CountryRate); err != nil {
		return rates.CalculatorProfile{}, err
	}

	for i, cj := range pj.Campaigns {
		c, err := parseCampaign(cj)
		if err != nil {
			return rates.CalculatorProfile{}, fmt.Errorf("campaign %d: %w", i, err)
		}
		profile.Campaigns = append(profile.Campaigns, c)
	}
	return profile, nil
}

// ToJSON converts a profile to its JSON form.
func (f *ProfileFactory) ToJSON(profile rates.CalculatorProfile) ProfileJSON {
	multiplier := profile.Multiplier
	pj := ProfileJSON{
		Multiplier:    &multiplier,
		TaxMode:       string(profile.TaxMode),
		TaxPercent:    profile.TaxPercent,
		NonRefundable: ToggleJSON{Active: profile.NonRefundable.Active, Percent: profile.NonRefundable.Percent},
		MobileRate:    ToggleJSON{Active: profile.MobileRate.Active, Percent: profile.MobileRate.Percent},
		CountryRate:   ToggleJSON{Active: profile.CountryRate.Active, Percent: profile.CountryRate.Percent},
	}
	for _, c := range profile.Campaigns {
		pj.Campaigns = append(pj.Campaigns, CampaignJSON{
			ID:              string(c.ID),
			Slug:            string(c.Slug),
			DiscountPercent: c.DiscountPercent,
			StartDate:       c.StartDate.String(),
			EndDate:         c.EndDate.String(),
			Active:          c.Active,
		})
	}
	return pj
}

// Marshal renders a profile as a JSON string.
func (f *ProfileFactory) Marshal(profile rates.CalculatorProfile) (string, error) {
	b, err := json.Marshal(f.ToJSON(profile))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", rates.ErrInvalidProfile, fmt.Sprintf(format, args...))
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(decimal.NewFromInt(100))
}

func parseToggle(name string, tj ToggleJSON) (rates.Toggle, error) {
	if !validPercent(tj.Percent) {
		return rates.Toggle{}, invalid("%s percent must be within 0-100, got %s", name, tj.Percent)
	}
	return rates.Toggle{Active: tj.Active, Percent: tj.Percent}, nil
}

func parseCampaign(cj CampaignJSON) (rates.Campaign, error) {
	slug := strings.ToLower(strings.TrimSpace(cj.Slug))
	if slug == "" {
		return rates.Campaign{}, invalid("slug is required")
	}
	if !validPercent(cj.DiscountPercent) {
		return rates.Campaign{}, invalid("discount_percent must be within 0-100, got %s", cj.DiscountPercent)
	}
	start, err := rates.ParseDate(cj.StartDate)
	if err != nil {
		return rates.Campaign{}, invalid("start_date: %v", err)
	}
	end, err := rates.ParseDate(cj.EndDate)
	if err != nil {
		return rates.Campaign{}, invalid("end_date: %v", err)
	}
	if end.Before(start) {
		return rates.Campaign{}, invalid("end_date %s before start_date %s", end, start)
	}
	id := cj.ID
	if id == "" {
		id = slug + "-" + start.String()
	}
	return rates.Campaign{
		ID:              rates.CampaignID(id),
		Slug:            rates.CampaignSlug(slug),
		DiscountPercent: cj.DiscountPercent,
		StartDate:       start,
		EndDate:         end,
		Active:          cj.Active,
	}, nil
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardProfileJSON is a common starting point: a markup multiplier and a
// non-refundable discount, tax included.
func StandardProfileJSON(multiplier, nonRefundablePercent float64) string {
	return fmt.Sprintf(`{
		"multiplier": %g,
		"tax_mode": "inclusive",
		"non_refundable": {"active": %t, "percent": %g},
		"mobile_rate": {"active": false, "percent": 0},
		"country_rate": {"active": false, "percent": 0}
	}`, multiplier, nonRefundablePercent > 0, nonRefundablePercent)
}

// ExclusiveTaxProfileJSON is a profile for properties that quote tax on top.
func ExclusiveTaxProfileJSON(multiplier, taxPercent float64) string {
	return fmt.Sprintf(`{
		"multiplier": %g,
		"tax_mode": "exclusive",
		"tax_percent": %g
	}`, multiplier, taxPercent)
}
