/*
desk.go - Rate desk: calendar, edits and submission for many properties

PURPOSE:
  Ties the engine together in the order an operator works:

    load calendar -> edit (base rate, or sell target via the inverse)
                  -> guardrail clamp -> pending override -> submit

  Every call names its property and date. There is no "current property"
  or "today" hidden in the desk.

PER-PROPERTY STATE:
  - last good calendar (kept when a reload fails)
  - cached calculator profile (replaced only by SaveProfile or a reload)
  - override book
  - last load request (reused by Reload and SetPickupWindow)

FROZEN DATES:
  Edits on frozen dates are refused with ErrFrozenDate before the guardrail
  is consulted. Bulk edits skip them and report them.

SEE ALSO:
  - calendar.go, overrides.go, submission.go, calculator.go, guardrail.go
*/
package rates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Desk is the entry point used by the API.
type Desk struct {
	Assembler *Assembler
	Submitter *Submitter
	Configs   ConfigStore
	Log       OverrideLog // optional; seeds committed overrides on first load
	Logger    *slog.Logger

	mu         sync.RWMutex
	properties map[PropertyID]*propertyState
}

type propertyState struct {
	calendar    *Calendar
	profile     CalculatorProfile
	book        *OverrideBook
	lastRequest LoadRequest
	hydrated    bool

	// profileSaved is false while the profile is DefaultProfile standing in
	// for one that was never saved.
	profileSaved bool
}

func NewDesk(assembler *Assembler, submitter *Submitter, configs ConfigStore, log OverrideLog, logger *slog.Logger) *Desk {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Desk{
		Assembler:  assembler,
		Submitter:  submitter,
		Configs:    configs,
		Log:        log,
		Logger:     logger,
		properties: make(map[PropertyID]*propertyState),
	}
}

func (d *Desk) state(propertyID PropertyID) *propertyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.properties[propertyID]
	if !ok {
		st = &propertyState{book: NewOverrideBook()}
		d.properties[propertyID] = st
	}
	return st
}

// Book returns the override book for a property, creating an empty one.
func (d *Desk) Book(propertyID PropertyID) *OverrideBook {
	return d.state(propertyID).book
}

// =============================================================================
// CALENDAR
// =============================================================================

// LoadCalendar fetches a fresh calendar. On failure the previous calendar,
// if any, stays in place.
func (d *Desk) LoadCalendar(ctx context.Context, req LoadRequest) (*Calendar, error) {
	st := d.state(req.PropertyID)
	d.hydrate(ctx, req.PropertyID, st)

	cal, err := d.Assembler.Load(ctx, req)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Assembler.IsCurrent(req.PropertyID, cal.Generation) {
		return nil, ErrStaleLoad
	}
	st.calendar = cal
	st.profile = cal.Profile
	st.profileSaved = !cal.ProfileDefaulted
	st.lastRequest = LoadRequest{
		PropertyID:     req.PropertyID,
		BaseRoomTypeID: req.BaseRoomTypeID,
		Start:          cal.Window.Start,
		Days:           cal.Window.Len(),
		PickupWindow:   cal.PickupWindow,
	}
	st.book.SeedCommitted(cal.ManualOverrides())
	return cal, nil
}

// hydrate seeds committed overrides from the override log the first time a
// property is touched. A failed read is retried on the next load.
func (d *Desk) hydrate(ctx context.Context, propertyID PropertyID, st *propertyState) {
	d.mu.RLock()
	done := st.hydrated || d.Log == nil
	d.mu.RUnlock()
	if done {
		return
	}

	committed, err := d.Log.LoadCommitted(ctx, propertyID)
	if err != nil {
		d.Logger.Warn("failed to load committed overrides", "property_id", propertyID, "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if st.hydrated {
		return
	}
	st.book.SeedCommitted(committed)
	st.hydrated = true
}

// Reload repeats the last successful load for a property.
func (d *Desk) Reload(ctx context.Context, propertyID PropertyID) (*Calendar, error) {
	req, err := d.lastRequest(propertyID)
	if err != nil {
		return nil, err
	}
	return d.LoadCalendar(ctx, req)
}

// SetPickupWindow changes the lookback window and reloads the whole calendar;
// pickup is a parameter of the feed request, not a local recompute.
func (d *Desk) SetPickupWindow(ctx context.Context, propertyID PropertyID, window PickupWindow) (*Calendar, error) {
	req, err := d.lastRequest(propertyID)
	if err != nil {
		return nil, err
	}
	req.PickupWindow = window
	return d.LoadCalendar(ctx, req)
}

func (d *Desk) lastRequest(propertyID PropertyID) (LoadRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.properties[propertyID]
	if !ok || st.calendar == nil {
		return LoadRequest{}, ErrCalendarNotLoaded
	}
	return st.lastRequest, nil
}

// Calendar returns the last good calendar.
func (d *Desk) Calendar(propertyID PropertyID) (*Calendar, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.properties[propertyID]
	if !ok || st.calendar == nil {
		return nil, ErrCalendarNotLoaded
	}
	return st.calendar, nil
}

// LoadedProperties lists properties with a calendar, sorted.
func (d *Desk) LoadedProperties() []PropertyID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []PropertyID
	for id, st := range d.properties {
		if st.calendar != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile returns the cached profile, falling back to the config store. A
// property that never saved one gets ErrProfileNotFound even after a load
// priced its calendar with DefaultProfile.
func (d *Desk) Profile(ctx context.Context, propertyID PropertyID) (CalculatorProfile, error) {
	d.mu.RLock()
	st, ok := d.properties[propertyID]
	if ok && st.profileSaved {
		profile := st.profile
		d.mu.RUnlock()
		return profile, nil
	}
	d.mu.RUnlock()
	return d.Configs.GetConfig(ctx, propertyID)
}

// SaveProfile persists a profile and replaces the cached one.
func (d *Desk) SaveProfile(ctx context.Context, propertyID PropertyID, profile CalculatorProfile) error {
	if err := d.Configs.SaveConfig(ctx, propertyID, profile); err != nil {
		return err
	}
	st := d.state(propertyID)
	d.mu.Lock()
	st.profile = profile.Clone()
	st.profileSaved = true
	d.mu.Unlock()
	d.Logger.Info("calculator profile saved", "property_id", propertyID, "count", len(profile.Campaigns))
	return nil
}

// =============================================================================
// EDITS
// =============================================================================

// EditResult describes a recorded pending override.
type EditResult struct {
	Date     Date
	BaseRate decimal.Decimal // what was recorded, after the guardrail
	SellRate decimal.Decimal // forward of BaseRate with the edit's options
	Warning  *GuardrailWarning
}

// editableDay returns the calendar row and profile for an edit, enforcing
// the loaded-window and frozen-date preconditions.
func (d *Desk) editableDay(propertyID PropertyID, date Date) (RateCalendarDay, CalculatorProfile, *OverrideBook, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.properties[propertyID]
	if !ok || st.calendar == nil {
		return RateCalendarDay{}, CalculatorProfile{}, nil, ErrCalendarNotLoaded
	}
	day, ok := st.calendar.Day(date)
	if !ok {
		return RateCalendarDay{}, CalculatorProfile{}, nil, ErrDateOutsideCalendar
	}
	if day.IsFrozen {
		return RateCalendarDay{}, CalculatorProfile{}, nil, ErrFrozenDate
	}
	return day, st.profile, st.book, nil
}

func (d *Desk) record(day RateCalendarDay, profile CalculatorProfile, book *OverrideBook, proposed, member decimal.Decimal, opts Options) EditResult {
	clamped := Clamp(day.Date, proposed, day.GuardrailMin)
	book.SetPending(day.Date, clamped.Value)

	result := EditResult{
		Date:     day.Date,
		BaseRate: clamped.Value,
		SellRate: Forward(clamped.Value, member, profile, day.Date, opts),
	}
	if clamped.WasClamped {
		result.Warning = &GuardrailWarning{Date: day.Date, Requested: proposed, Applied: clamped.Value}
	}
	return result
}

// SetBaseOverride records a pending base rate for a date.
func (d *Desk) SetBaseOverride(propertyID PropertyID, date Date, baseRate decimal.Decimal) (EditResult, error) {
	if baseRate.IsNegative() {
		return EditResult{}, ErrInvalidRate
	}
	day, profile, book, err := d.editableDay(propertyID, date)
	if err != nil {
		return EditResult{}, err
	}
	return d.record(day, profile, book, baseRate, decimal.Zero, Options{}), nil
}

// SetSellTarget finds the base rate that yields sellRate and records it.
// A zero factor means no base rate can reach the target: ErrInversionUndefined.
func (d *Desk) SetSellTarget(propertyID PropertyID, date Date, sellRate, memberDiscountPercent decimal.Decimal, opts Options) (EditResult, error) {
	if sellRate.IsNegative() {
		return EditResult{}, ErrInvalidRate
	}
	day, profile, book, err := d.editableDay(propertyID, date)
	if err != nil {
		return EditResult{}, err
	}
	base, err := Inverse(sellRate, memberDiscountPercent, profile, date, opts)
	if err != nil {
		return EditResult{}, err
	}
	return d.record(day, profile, book, base, memberDiscountPercent, opts), nil
}

// BulkResult reports a range edit.
type BulkResult struct {
	Applied []EditResult
	Skipped []Date // frozen or outside the loaded calendar
}

// SetBaseOverrides records the same base rate on every editable date in period.
func (d *Desk) SetBaseOverrides(propertyID PropertyID, period Period, baseRate decimal.Decimal) (BulkResult, error) {
	if baseRate.IsNegative() {
		return BulkResult{}, ErrInvalidRate
	}
	if _, err := d.Calendar(propertyID); err != nil {
		return BulkResult{}, err
	}
	var result BulkResult
	for _, date := range period.Days() {
		edit, err := d.SetBaseOverride(propertyID, date, baseRate)
		switch {
		case errors.Is(err, ErrFrozenDate), errors.Is(err, ErrDateOutsideCalendar):
			result.Skipped = append(result.Skipped, date)
		case err != nil:
			return result, err
		default:
			result.Applied = append(result.Applied, edit)
		}
	}
	return result, nil
}

// ClearOverride drops the pending edit for a date.
func (d *Desk) ClearOverride(propertyID PropertyID, date Date) {
	d.Book(propertyID).ClearPending(date)
}

// =============================================================================
// QUOTES AND SUBMISSION
// =============================================================================

// QuoteRequest asks for one calculation. Exactly one of BaseRate/SellRate is used;
// SellRate wins when both are set.
type QuoteRequest struct {
	PropertyID            PropertyID
	Date                  Date
	BaseRate              *decimal.Decimal
	SellRate              *decimal.Decimal
	MemberDiscountPercent decimal.Decimal
	Options               Options
}

// Quote prices a date without recording anything.
func (d *Desk) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	profile, err := d.Profile(ctx, req.PropertyID)
	if errors.Is(err, ErrProfileNotFound) {
		profile, err = DefaultProfile(), nil
	}
	if err != nil {
		return Quote{}, err
	}
	if req.SellRate != nil {
		return QuoteInverse(*req.SellRate, req.MemberDiscountPercent, profile, req.Date, req.Options)
	}
	base := decimal.Zero
	if req.BaseRate != nil {
		base = *req.BaseRate
	}
	return QuoteForward(base, req.MemberDiscountPercent, profile, req.Date, req.Options), nil
}

// Submit flushes the property's pending overrides. Dates that are frozen in
// the current calendar (a reload can freeze an already edited date) stay
// pending and come back in SubmitOutcome.Held.
func (d *Desk) Submit(ctx context.Context, target SubmitTarget) (SubmitOutcome, error) {
	var frozen func(Date) bool
	if cal, err := d.Calendar(target.PropertyID); err == nil {
		frozen = func(date Date) bool {
			day, ok := cal.Day(date)
			return ok && day.IsFrozen
		}
	}
	return d.Submitter.SubmitExcept(ctx, target, d.Book(target.PropertyID), frozen)
}
