/*
Package rates provides the core rate factor and override reconciliation engine.

PURPOSE:
  Properties set baseline rates in their property-management system (PMS).
  On top of that baseline this engine layers a strategic multiplier,
  non-refundable and member discounts, tax, promotional campaigns and channel
  targeting, and then works backwards: given a sell rate someone wants guests
  to see, it finds the base rate to push to the PMS.

KEY CONCEPTS IN THIS FILE (types.go):
  - CalculatorProfile: Per-property pricing configuration
  - Campaign: Time-bounded promotion
  - RateCalendarDay: One merged row of the rate calendar
  - Override: A base-rate value for a date (pending or committed)

DESIGN PRINCIPLES:
  1. Precision: All money and factors use decimal.Decimal
  2. Explicit context: Property IDs and stay dates are parameters, never ambient state
  3. Two-phase overrides: Local intent (pending) is kept apart from acknowledged truth (committed)

SEE ALSO:
  - calculator.go: Forward and inverse pricing stack
  - campaign.go: Campaign validity resolution
  - overrides.go: Pending/committed override book
  - calendar.go: Four-feed calendar assembly
*/
package rates

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PropertyID string
type RoomTypeID string
type CampaignID string

// =============================================================================
// CALCULATOR PROFILE - Per-property pricing configuration
// =============================================================================

type TaxMode string

const (
	TaxInclusive TaxMode = "inclusive"
	TaxExclusive TaxMode = "exclusive"
)

// Toggle is an optional percentage discount (non-refundable, mobile, country).
type Toggle struct {
	Active  bool
	Percent decimal.Decimal
}

// CalculatorProfile holds everything the calculator needs for one property.
// It is immutable for the duration of a calculation; changes go through
// ConfigStore.SaveConfig.
type CalculatorProfile struct {
	Multiplier    decimal.Decimal
	TaxMode       TaxMode
	TaxPercent    decimal.Decimal
	NonRefundable Toggle
	MobileRate    Toggle
	CountryRate   Toggle
	Campaigns     []Campaign
}

// DefaultProfile is a neutral profile: multiplier 1, tax inclusive, nothing active.
func DefaultProfile() CalculatorProfile {
	return CalculatorProfile{
		Multiplier: decimal.NewFromInt(1),
		TaxMode:    TaxInclusive,
	}
}

// Clone returns a copy that shares no slices with p.
func (p CalculatorProfile) Clone() CalculatorProfile {
	clone := p
	clone.Campaigns = append([]Campaign(nil), p.Campaigns...)
	return clone
}

// =============================================================================
// CAMPAIGN - Time-bounded promotion
// =============================================================================

// CampaignSlug identifies the behavioral class of a campaign.
type CampaignSlug string

const (
	SlugBlackFriday CampaignSlug = "black-friday"
	SlugLimitedTime CampaignSlug = "limited-time"
	SlugEarlyDeal   CampaignSlug = "early-deal"
	SlugLateEscape  CampaignSlug = "late-escape"
	SlugGetawayDeal CampaignSlug = "getaway-deal"
)

// IsDeepDeal reports whether campaigns with this slug are exclusive of every
// other promotional and targeting discount.
func (s CampaignSlug) IsDeepDeal() bool {
	return s == SlugBlackFriday || s == SlugLimitedTime
}

// ExcludesMobile reports whether an active campaign with this slug suppresses
// the mobile-rate discount.
func (s CampaignSlug) ExcludesMobile() bool {
	return s == SlugEarlyDeal || s == SlugLateEscape || s == SlugGetawayDeal
}

// Campaign applies to a stay date only if Active and the date lies within the
// inclusive interval [StartDate, EndDate].
type Campaign struct {
	ID              CampaignID
	Slug            CampaignSlug
	DiscountPercent decimal.Decimal
	StartDate       Date
	EndDate         Date
	Active          bool
}

// =============================================================================
// RATE CALENDAR - Merged per-date view
// =============================================================================

type RateSource string

const (
	SourceAI       RateSource = "AI"
	SourceManual   RateSource = "Manual"
	SourceExternal RateSource = "External"
)

// RateCalendarDay is one merged row of the calendar. Rows are rebuilt
// wholesale on each load and never patched.
type RateCalendarDay struct {
	Date         Date
	LiveRate     *decimal.Decimal // current PMS base rate; nil when the PMS has none
	PreviewRate  decimal.Decimal  // model-proposed base rate
	GuardrailMin decimal.Decimal
	FloorActive  bool
	IsFrozen     bool
	Occupancy    decimal.Decimal // 0-100
	ADR          decimal.Decimal
	Pickup       int
	Source       RateSource
}

// PreviewDay is the PMS gateway's partial view of a date.
type PreviewDay struct {
	Date         Date
	LiveRate     *decimal.Decimal
	PreviewRate  decimal.Decimal
	Source       RateSource
	IsFrozen     bool
	GuardrailMin decimal.Decimal
	FloorActive  bool
}

// DailyMetrics is one row of the metrics feed.
type DailyMetrics struct {
	Period      Date
	RoomsSold   int
	RoomsUnsold int
	ADR         decimal.Decimal
}

// Occupancy is rooms sold as a percentage of sellable rooms, 0 when nothing is sellable.
func (m DailyMetrics) Occupancy() decimal.Decimal {
	total := m.RoomsSold + m.RoomsUnsold
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(m.RoomsSold)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total)))
}

// DailyPickup is one row of the pickup feed.
type DailyPickup struct {
	Date   Date
	Pickup int
}

// PickupWindow is the lookback, in days, of the pickup baseline (1 = vs. yesterday).
type PickupWindow int

// DefaultPickupWindow compares against yesterday's snapshot.
const DefaultPickupWindow PickupWindow = 1

// =============================================================================
// OVERRIDE - Base-rate value for a date
// =============================================================================

// Override is a (date, base rate) pair as sent to the PMS gateway.
type Override struct {
	Date Date
	Rate decimal.Decimal
}
