/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the rates domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Rates, percents and factors are decimals, serialized as JSON strings
  ("129.99"). Requests accept either strings or numbers.

DATES:
  Stay dates are "YYYY-MM-DD".

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/profile.go: ProfileJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/rates"
)

// =============================================================================
// PROFILE
// =============================================================================

// ProfileDTO is a saved profile plus how many times it has been saved, when
// the store keeps count.
type ProfileDTO struct {
	factory.ProfileJSON
	Version int `json:"version,omitempty"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// LoadCalendarRequest starts a calendar load. Zero values take the server defaults.
type LoadCalendarRequest struct {
	PMSPropertyID string      `json:"pms_property_id,omitempty"`
	RoomTypeID    string      `json:"room_type_id,omitempty"`
	Start         *rates.Date `json:"start,omitempty"`
	Days          int         `json:"days,omitempty"`
	PickupWindow  int         `json:"pickup_window,omitempty"`
}

// PickupWindowRequest changes the pickup lookback.
type PickupWindowRequest struct {
	PickupWindow int `json:"pickup_window"`
}

// CalendarDTO is the merged calendar with the override overlay.
type CalendarDTO struct {
	PropertyID   string           `json:"property_id"`
	Generation   uint64           `json:"generation"`
	Start        rates.Date       `json:"start"`
	End          rates.Date       `json:"end"`
	PickupWindow int              `json:"pickup_window"`
	LoadedAt     time.Time        `json:"loaded_at"`
	Days         []CalendarDayDTO `json:"days"`
}

// CalendarDayDTO is one row. EffectiveRate is the pending-or-committed
// override, if any; SellRate prices EffectiveRate, else PreviewRate.
type CalendarDayDTO struct {
	Date          rates.Date       `json:"date"`
	LiveRate      *decimal.Decimal `json:"live_rate"`
	PreviewRate   decimal.Decimal  `json:"preview_rate"`
	GuardrailMin  decimal.Decimal  `json:"guardrail_min"`
	FloorActive   bool             `json:"floor_active"`
	IsFrozen      bool             `json:"is_frozen"`
	Occupancy     decimal.Decimal  `json:"occupancy"`
	ADR           decimal.Decimal  `json:"adr"`
	Pickup        int              `json:"pickup"`
	Source        string           `json:"source"`
	OverrideState string           `json:"override_state"`
	EffectiveRate *decimal.Decimal `json:"effective_rate,omitempty"`
	SellRate      decimal.Decimal  `json:"sell_rate"`
	Campaigns     []string         `json:"campaigns,omitempty"`
}

// =============================================================================
// QUOTES AND EDITS
// =============================================================================

// CalcOptions are the per-calculation knobs shared by quotes and edits.
type CalcOptions struct {
	MemberDiscountPercent decimal.Decimal  `json:"member_discount_percent"`
	IncludeTargeting      bool             `json:"include_targeting"`
	ForceMultiplier       *decimal.Decimal `json:"force_multiplier,omitempty"`
}

func (o CalcOptions) options() rates.Options {
	return rates.Options{IncludeTargeting: o.IncludeTargeting, ForceMultiplier: o.ForceMultiplier}
}

// QuoteRequest prices one date. SellRate set means inverse; otherwise forward from BaseRate.
type QuoteRequest struct {
	Date     rates.Date       `json:"date"`
	BaseRate *decimal.Decimal `json:"base_rate,omitempty"`
	SellRate *decimal.Decimal `json:"sell_rate,omitempty"`
	CalcOptions
}

// QuoteDTO is a calculation with its breakdown.
type QuoteDTO struct {
	Date     rates.Date      `json:"date"`
	BaseRate decimal.Decimal `json:"base_rate"`
	SellRate decimal.Decimal `json:"sell_rate"`
	Factor   decimal.Decimal `json:"factor"`
	Steps    []StepDTO       `json:"steps"`
}

type StepDTO struct {
	Kind       string          `json:"kind"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Percent    decimal.Decimal `json:"percent"`
	Factor     decimal.Decimal `json:"factor"`
}

// OverrideEditRequest sets one date. Exactly one of BaseRate or SellRate.
type OverrideEditRequest struct {
	BaseRate *decimal.Decimal `json:"base_rate,omitempty"`
	SellRate *decimal.Decimal `json:"sell_rate,omitempty"`
	CalcOptions
}

// BulkEditRequest applies one base rate to [start, end].
type BulkEditRequest struct {
	Start    rates.Date      `json:"start"`
	End      rates.Date      `json:"end"`
	BaseRate decimal.Decimal `json:"base_rate"`
}

type EditResultDTO struct {
	Date     rates.Date           `json:"date"`
	BaseRate decimal.Decimal      `json:"base_rate"`
	SellRate decimal.Decimal      `json:"sell_rate"`
	Warning  *GuardrailWarningDTO `json:"warning,omitempty"`
}

type GuardrailWarningDTO struct {
	Requested decimal.Decimal `json:"requested"`
	Applied   decimal.Decimal `json:"applied"`
	Message   string          `json:"message"`
}

type BulkResultDTO struct {
	Applied []EditResultDTO `json:"applied"`
	Skipped []rates.Date    `json:"skipped"`
}

// =============================================================================
// OVERRIDES AND SUBMISSIONS
// =============================================================================

type OverrideDTO struct {
	Date rates.Date      `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}

type OverridesDTO struct {
	Pending   []OverrideDTO `json:"pending"`
	Committed []OverrideDTO `json:"committed"`
	InFlight  bool          `json:"in_flight"`
}

// SubmitRequest may redirect the push; empty fields reuse the last calendar load.
type SubmitRequest struct {
	PMSPropertyID string `json:"pms_property_id,omitempty"`
	RoomTypeID    string `json:"room_type_id,omitempty"`
}

// SubmitResultDTO lists what was pushed. Held dates were frozen by the last
// reload and are still pending.
type SubmitResultDTO struct {
	BatchID   string        `json:"batch_id,omitempty"`
	Submitted []OverrideDTO `json:"submitted"`
	Held      []rates.Date  `json:"held,omitempty"`
}

type SubmissionDTO struct {
	BatchID       string        `json:"batch_id"`
	PMSPropertyID string        `json:"pms_property_id,omitempty"`
	RoomTypeID    string        `json:"room_type_id,omitempty"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	Overrides     []OverrideDTO `json:"overrides"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toOverrideDTOs(overrides []rates.Override) []OverrideDTO {
	out := make([]OverrideDTO, len(overrides))
	for i, o := range overrides {
		out[i] = OverrideDTO{Date: o.Date, Rate: o.Rate}
	}
	return out
}

func toQuoteDTO(q rates.Quote) QuoteDTO {
	dto := QuoteDTO{
		Date:     q.Date,
		BaseRate: q.BaseRate,
		SellRate: q.SellRate,
		Factor:   q.Factor,
		Steps:    make([]StepDTO, len(q.Steps)),
	}
	for i, s := range q.Steps {
		dto.Steps[i] = StepDTO{Kind: string(s.Kind), CampaignID: string(s.CampaignID), Percent: s.Percent, Factor: s.Factor}
	}
	return dto
}

func toEditResultDTO(e rates.EditResult) EditResultDTO {
	dto := EditResultDTO{Date: e.Date, BaseRate: e.BaseRate, SellRate: e.SellRate}
	if e.Warning != nil {
		dto.Warning = &GuardrailWarningDTO{
			Requested: e.Warning.Requested,
			Applied:   e.Warning.Applied,
			Message:   e.Warning.String(),
		}
	}
	return dto
}

func toSubmissionDTO(r rates.SubmissionRecord) SubmissionDTO {
	return SubmissionDTO{
		BatchID:       r.BatchID,
		PMSPropertyID: r.PMSPropertyID,
		RoomTypeID:    string(r.RoomTypeID),
		Status:        string(r.Status),
		Error:         r.Error,
		SubmittedAt:   r.SubmittedAt,
		Overrides:     toOverrideDTOs(r.Overrides),
	}
}
