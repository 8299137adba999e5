/*
scenarios.go - Demo scenarios for the sandbox PMS

PURPOSE:

	Populates the sandbox PMS and the profile store with a realistic
	property so the desk can be exercised end to end without a real PMS.

AVAILABLE SCENARIOS:

	standard-hotel:  1.3x multiplier, 10% non-refundable, tax included
	campaign-season: Black Friday deep deal plus an early-deal campaign and mobile rate
	exclusive-tax:   Tax quoted on top at 8%

HOW SCENARIOS WORK:
 1. Seed the sandbox with 60 days of preview, metrics and pickup from today
 2. Save the scenario's calculator profile
 3. Load the calendar, exactly as POST /calendar/load would

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "campaign-season"}

NOTE:

	Only available when the server runs with the sandbox PMS.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/rates"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const scenarioDays = 60

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-hotel",
		Name:        "Standard Hotel",
		Description: "1.3x multiplier with a 10% non-refundable discount, tax included",
	},
	{
		ID:          "campaign-season",
		Name:        "Campaign Season",
		Description: "Black Friday deep deal next to an early-deal campaign and a mobile rate",
	},
	{
		ID:          "exclusive-tax",
		Name:        "Exclusive Tax",
		Description: "Tax quoted on top of the rate at 8%",
	},
}

// scenarioProperty is the property every scenario loads into.
const scenarioProperty rates.PropertyID = "demo-hotel"

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario ID.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current, "property_id": string(scenarioProperty)})
}

// LoadScenario seeds the sandbox and loads the demo property's calendar.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Sandbox == nil {
		writeError(w, http.StatusConflict, "Scenarios require the sandbox PMS", nil)
		return
	}
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	today := rates.DateOf(time.Now())
	profileJSON, ok := scenarioProfile(req.ScenarioID, today)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	cal, err := h.loadScenario(r.Context(), profileJSON, today)
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.targets[scenarioProperty] = rates.SubmitTarget{PropertyID: scenarioProperty}
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", "scenario_id", req.ScenarioID, "property_id", scenarioProperty)
	writeJSON(w, http.StatusOK, h.calendarDTO(r.Context(), cal))
}

func (h *Handler) loadScenario(ctx context.Context, profileJSON string, today rates.Date) (*rates.Calendar, error) {
	profile, err := h.Profiles.ParseProfile(profileJSON)
	if err != nil {
		return nil, err
	}
	h.Sandbox.Seed(scenarioProperty, today, scenarioDays, decimal.NewFromInt(100))
	if err := h.Desk.SaveProfile(ctx, scenarioProperty, profile); err != nil {
		return nil, err
	}
	return h.Desk.LoadCalendar(ctx, rates.LoadRequest{
		PropertyID:   scenarioProperty,
		Start:        today,
		Days:         scenarioDays,
		PickupWindow: h.Defaults.PickupWindow,
	})
}

// scenarioProfile returns the profile JSON for a scenario, with campaign
// dates placed relative to today.
func scenarioProfile(id string, today rates.Date) (string, bool) {
	switch id {
	case "standard-hotel":
		return factory.StandardProfileJSON(1.3, 10), true
	case "exclusive-tax":
		return factory.ExclusiveTaxProfileJSON(1.0, 8), true
	case "campaign-season":
		return fmt.Sprintf(`{
			"multiplier": 1.2,
			"tax_mode": "inclusive",
			"non_refundable": {"active": true, "percent": 10},
			"mobile_rate": {"active": true, "percent": 5},
			"campaigns": [
				{"id": "early-bird", "slug": "early-deal", "discount_percent": 15,
				 "start_date": %q, "end_date": %q, "active": true},
				{"id": "bf", "slug": "black-friday", "discount_percent": 40,
				 "start_date": %q, "end_date": %q, "active": true}
			]
		}`,
			today.AddDays(7).String(), today.AddDays(27).String(),
			today.AddDays(20).String(), today.AddDays(23).String(),
		), true
	default:
		return "", false
	}
}
