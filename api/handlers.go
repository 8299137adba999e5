/*
handlers.go - HTTP API handlers for the rate engine

PURPOSE:
  Exposes the rate desk via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the rates package.

ENDPOINTS:
  Profile:
    GET    /api/properties/{id}/profile           Calculator profile (404 if never saved)
    PUT    /api/properties/{id}/profile           Save profile from JSON

  Calendar:
    POST   /api/properties/{id}/calendar/load     Load the four feeds
    GET    /api/properties/{id}/calendar          Last good calendar + override overlay
    PUT    /api/properties/{id}/pickup-window     Change lookback and reload

  Pricing:
    POST   /api/properties/{id}/quote             Forward or inverse with breakdown

  Overrides:
    PUT    /api/properties/{id}/overrides/{date}  Base-rate or sell-target edit
    DELETE /api/properties/{id}/overrides/{date}  Drop the pending edit
    POST   /api/properties/{id}/overrides/bulk    Same base rate over a range
    GET    /api/properties/{id}/overrides         Pending and committed view

  Submission:
    POST   /api/properties/{id}/submit            Push pending overrides to the PMS
    GET    /api/properties/{id}/submissions       Submission audit log

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, frozen date, date outside calendar, undefined inverse
  - 404: Profile or calendar not found
  - 409: Submission already in flight, superseded calendar load
  - 502: A PMS feed or the PMS push failed
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Multi-tenant auth lives in front of
  this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Sandbox demo scenarios
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/pms"
	"github.com/warp/rate-engine/rates"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// CalendarDefaults fill in load requests that leave fields empty.
type CalendarDefaults struct {
	WindowDays   int
	PickupWindow rates.PickupWindow
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Desk     *rates.Desk
	Profiles *factory.ProfileFactory
	Sandbox  *pms.Sandbox // nil unless running against the sandbox PMS
	Defaults CalendarDefaults
	Logger   *slog.Logger

	mu              sync.RWMutex
	targets         map[rates.PropertyID]rates.SubmitTarget
	currentScenario string
}

// NewHandler creates a new handler around a desk.
func NewHandler(desk *rates.Desk, sandbox *pms.Sandbox, defaults CalendarDefaults, logger *slog.Logger) *Handler {
	if defaults.WindowDays <= 0 {
		defaults.WindowDays = rates.DefaultWindowDays
	}
	if defaults.PickupWindow <= 0 {
		defaults.PickupWindow = rates.DefaultPickupWindow
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		Desk:     desk,
		Profiles: factory.NewProfileFactory(),
		Sandbox:  sandbox,
		Defaults: defaults,
		Logger:   logger,
		targets:  make(map[rates.PropertyID]rates.SubmitTarget),
	}
}

func propertyID(r *http.Request) rates.PropertyID {
	return rates.PropertyID(chi.URLParam(r, "id"))
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// GetProfile returns the calculator profile for a property.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Desk.Profile(r.Context(), propertyID(r))
	if err != nil {
		writeDomainError(w, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, h.profileDTO(r.Context(), propertyID(r), profile))
}

// profileVersions is implemented by stores that count profile saves.
type profileVersions interface {
	ProfileVersion(ctx context.Context, propertyID rates.PropertyID) (int, error)
}

func (h *Handler) profileDTO(ctx context.Context, pid rates.PropertyID, profile rates.CalculatorProfile) ProfileDTO {
	dto := ProfileDTO{ProfileJSON: h.Profiles.ToJSON(profile)}
	pv, ok := h.Desk.Configs.(profileVersions)
	if !ok {
		return dto
	}
	version, err := pv.ProfileVersion(ctx, pid)
	if err != nil {
		h.Logger.Warn("failed to read profile version", "property_id", pid, "error", err)
		return dto
	}
	dto.Version = version
	return dto
}

// SaveProfile validates and stores a profile. The cached calendar picks it
// up immediately; no reload is needed.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req factory.ProfileJSON
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	profile, err := h.Profiles.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile", err)
		return
	}
	if err := h.Desk.SaveProfile(r.Context(), propertyID(r), profile); err != nil {
		writeDomainError(w, "Failed to save profile", err)
		return
	}
	writeJSON(w, http.StatusOK, h.profileDTO(r.Context(), propertyID(r), profile))
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// LoadCalendar fetches a fresh calendar from the PMS feeds.
func (h *Handler) LoadCalendar(w http.ResponseWriter, r *http.Request) {
	pid := propertyID(r)
	var req LoadCalendarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Days < 0 || req.PickupWindow < 0 {
		writeError(w, http.StatusBadRequest, "days and pickup_window must not be negative", nil)
		return
	}

	load := rates.LoadRequest{
		PropertyID:     pid,
		BaseRoomTypeID: rates.RoomTypeID(req.RoomTypeID),
		Days:           req.Days,
		PickupWindow:   rates.PickupWindow(req.PickupWindow),
	}
	if req.Start != nil {
		load.Start = *req.Start
	}
	if load.Days == 0 {
		load.Days = h.Defaults.WindowDays
	}
	if load.PickupWindow == 0 {
		load.PickupWindow = h.Defaults.PickupWindow
	}

	cal, err := h.Desk.LoadCalendar(r.Context(), load)
	if err != nil {
		writeDomainError(w, "Failed to load calendar", err)
		return
	}

	h.mu.Lock()
	h.targets[pid] = rates.SubmitTarget{
		PropertyID:    pid,
		PMSPropertyID: req.PMSPropertyID,
		RoomTypeID:    rates.RoomTypeID(req.RoomTypeID),
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, h.calendarDTO(r.Context(), cal))
}

// GetCalendar returns the last good calendar with overrides overlaid.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.Desk.Calendar(propertyID(r))
	if err != nil {
		writeDomainError(w, "Failed to get calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, h.calendarDTO(r.Context(), cal))
}

// SetPickupWindow changes the lookback. The whole calendar is reloaded.
func (h *Handler) SetPickupWindow(w http.ResponseWriter, r *http.Request) {
	var req PickupWindowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.PickupWindow <= 0 {
		writeError(w, http.StatusBadRequest, "pickup_window must be positive", nil)
		return
	}
	cal, err := h.Desk.SetPickupWindow(r.Context(), propertyID(r), rates.PickupWindow(req.PickupWindow))
	if err != nil {
		writeDomainError(w, "Failed to change pickup window", err)
		return
	}
	writeJSON(w, http.StatusOK, h.calendarDTO(r.Context(), cal))
}

func (h *Handler) calendarDTO(ctx context.Context, cal *rates.Calendar) CalendarDTO {
	book := h.Desk.Book(cal.PropertyID)
	profile := cal.Profile
	if p, err := h.Desk.Profile(ctx, cal.PropertyID); err == nil {
		profile = p
	}

	dto := CalendarDTO{
		PropertyID:   string(cal.PropertyID),
		Generation:   cal.Generation,
		Start:        cal.Window.Start,
		End:          cal.Window.End,
		PickupWindow: int(cal.PickupWindow),
		LoadedAt:     cal.LoadedAt,
		Days:         make([]CalendarDayDTO, len(cal.Days)),
	}
	for i, d := range cal.Days {
		row := CalendarDayDTO{
			Date:          d.Date,
			LiveRate:      d.LiveRate,
			PreviewRate:   d.PreviewRate,
			GuardrailMin:  d.GuardrailMin,
			FloorActive:   d.FloorActive,
			IsFrozen:      d.IsFrozen,
			Occupancy:     d.Occupancy.Round(2),
			ADR:           d.ADR,
			Pickup:        d.Pickup,
			Source:        string(d.Source),
			OverrideState: string(book.State(d.Date)),
		}
		base := d.PreviewRate
		if rate, ok := book.Effective(d.Date); ok {
			effective := rate
			row.EffectiveRate = &effective
			base = rate
		}
		row.SellRate = rates.Forward(base, decimal.Zero, profile, d.Date, rates.Options{})
		for _, c := range rates.ValidCampaigns(d.Date, profile.Campaigns) {
			row.Campaigns = append(row.Campaigns, string(c.ID))
		}
		dto.Days[i] = row
	}
	return dto
}

// =============================================================================
// QUOTE HANDLER
// =============================================================================

// Quote prices one date in either direction without recording anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required", nil)
		return
	}
	if req.BaseRate == nil && req.SellRate == nil {
		writeError(w, http.StatusBadRequest, "one of base_rate or sell_rate is required", nil)
		return
	}

	q, err := h.Desk.Quote(r.Context(), rates.QuoteRequest{
		PropertyID:            propertyID(r),
		Date:                  req.Date,
		BaseRate:              req.BaseRate,
		SellRate:              req.SellRate,
		MemberDiscountPercent: req.MemberDiscountPercent,
		Options:               req.options(),
	})
	if err != nil {
		writeDomainError(w, "Cannot quote", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(q))
}

// =============================================================================
// OVERRIDE HANDLERS
// =============================================================================

// SetOverride records a pending edit for one date, by base rate or sell target.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	date, err := rates.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	var req OverrideEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	pid := propertyID(r)
	var result rates.EditResult
	switch {
	case req.SellRate != nil && req.BaseRate != nil:
		writeError(w, http.StatusBadRequest, "set base_rate or sell_rate, not both", nil)
		return
	case req.SellRate != nil:
		result, err = h.Desk.SetSellTarget(pid, date, *req.SellRate, req.MemberDiscountPercent, req.options())
	case req.BaseRate != nil:
		result, err = h.Desk.SetBaseOverride(pid, date, *req.BaseRate)
	default:
		writeError(w, http.StatusBadRequest, "one of base_rate or sell_rate is required", nil)
		return
	}
	if err != nil {
		writeDomainError(w, "Cannot set override", err)
		return
	}
	writeJSON(w, http.StatusOK, toEditResultDTO(result))
}

// ClearOverride drops the pending edit. Committed values are untouched.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	date, err := rates.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	h.Desk.ClearOverride(propertyID(r), date)
	w.WriteHeader(http.StatusNoContent)
}

// BulkSetOverrides applies one base rate across a range, skipping frozen dates.
func (h *Handler) BulkSetOverrides(w http.ResponseWriter, r *http.Request) {
	var req BulkEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		writeError(w, http.StatusBadRequest, "start and end are required and end must not precede start", nil)
		return
	}

	result, err := h.Desk.SetBaseOverrides(propertyID(r), rates.Period{Start: req.Start, End: req.End}, req.BaseRate)
	if err != nil {
		writeDomainError(w, "Cannot set overrides", err)
		return
	}
	dto := BulkResultDTO{
		Applied: make([]EditResultDTO, len(result.Applied)),
		Skipped: result.Skipped,
	}
	for i, e := range result.Applied {
		dto.Applied[i] = toEditResultDTO(e)
	}
	if dto.Skipped == nil {
		dto.Skipped = []rates.Date{}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetOverrides lists pending and committed overrides.
func (h *Handler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	pid := propertyID(r)
	book := h.Desk.Book(pid)
	writeJSON(w, http.StatusOK, OverridesDTO{
		Pending:   toOverrideDTOs(book.PendingOverrides()),
		Committed: toOverrideDTOs(book.CommittedOverrides()),
		InFlight:  h.Desk.Submitter.InFlight(pid),
	})
}

// =============================================================================
// SUBMISSION HANDLERS
// =============================================================================

// Submit pushes every pending override to the PMS in one batch.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	pid := propertyID(r)
	var req SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	h.mu.RLock()
	target, ok := h.targets[pid]
	h.mu.RUnlock()
	if !ok {
		target = rates.SubmitTarget{PropertyID: pid}
	}
	if req.PMSPropertyID != "" {
		target.PMSPropertyID = req.PMSPropertyID
	}
	if req.RoomTypeID != "" {
		target.RoomTypeID = rates.RoomTypeID(req.RoomTypeID)
	}

	outcome, err := h.Desk.Submit(r.Context(), target)
	if err != nil {
		writeDomainError(w, "Submission failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResultDTO{
		BatchID:   outcome.BatchID,
		Submitted: toOverrideDTOs(outcome.Submitted),
		Held:      outcome.Held,
	})
}

// ListSubmissions returns the audit log, newest first. ?limit=N, default 50.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	if h.Desk.Log == nil {
		writeJSON(w, http.StatusOK, []SubmissionDTO{})
		return
	}

	records, err := h.Desk.Log.ListSubmissions(r.Context(), propertyID(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list submissions", err)
		return
	}
	dtos := make([]SubmissionDTO, len(records))
	for i, rec := range records {
		dtos[i] = toSubmissionDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps rates errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rates.ErrSubmissionInProgress), errors.Is(err, rates.ErrStaleLoad):
		return http.StatusConflict
	case errors.Is(err, rates.ErrFeedFailure), errors.Is(err, rates.ErrSubmissionFailed):
		return http.StatusBadGateway
	case rates.IsNotFound(err):
		return http.StatusNotFound
	case rates.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
