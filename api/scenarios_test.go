/*
scenarios_test.go - Tests for sandbox demo scenarios

PURPOSE:
	Each scenario must seed the sandbox, save its profile and load a full
	calendar for the demo property, so it can double as an end-to-end check.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/rates"
	"github.com/warp/rate-engine/rates/store"
)

func TestScenarios_List(t *testing.T) {
	s := setupTestHandler(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var list []ScenarioDTO
	decode(t, rec, &list)
	assert.Len(t, list, 3)
}

func TestScenarios_LoadEach(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			// GIVEN: A fresh sandbox
			// WHEN: Loading the scenario
			// THEN: The demo property has a 60 day calendar and the scenario's profile
			s := setupTestHandler(t)

			rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "`+sc.ID+`"}`)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var cal CalendarDTO
			decode(t, rec, &cal)
			assert.Equal(t, string(scenarioProperty), cal.PropertyID)
			assert.Len(t, cal.Days, scenarioDays)

			profile, err := s.handler.Desk.Profile(context.Background(), scenarioProperty)
			require.NoError(t, err)
			switch sc.ID {
			case "exclusive-tax":
				assert.Equal(t, rates.TaxExclusive, profile.TaxMode)
			case "campaign-season":
				assert.Len(t, profile.Campaigns, 2)
				assert.True(t, profile.MobileRate.Active)
			case "standard-hotel":
				assert.True(t, profile.NonRefundable.Active)
			}

			rec = s.do(t, http.MethodGet, "/api/scenarios/current", "")
			var current map[string]string
			decode(t, rec, &current)
			assert.Equal(t, sc.ID, current["scenario_id"])
		})
	}
}

func TestScenarios_DemoPropertyIsEditable(t *testing.T) {
	s := setupTestHandler(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "standard-hotel"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var cal CalendarDTO
	decode(t, rec, &cal)

	rec = s.do(t, http.MethodPut, "/api/properties/demo-hotel/overrides/"+cal.Days[0].Date.String(), `{"base_rate": 150}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/properties/demo-hotel/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Len(t, s.sandbox.Submitted(), 1)
}

func TestScenarios_Unknown(t *testing.T) {
	s := setupTestHandler(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_RequireSandbox(t *testing.T) {
	mem := store.NewMemory()
	s := setupTestHandler(t)
	h := NewHandler(rates.NewDesk(s.handler.Desk.Assembler, s.handler.Desk.Submitter, mem, mem, nil), nil, CalendarDefaults{}, nil)

	noSandbox := &testServer{handler: h, router: NewRouter(h)}

	rec := noSandbox.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "standard-hotel"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
