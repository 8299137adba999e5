package pms

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/rates"
)

// =============================================================================
// SANDBOX - In-memory PMS for demos and tests
// =============================================================================

// Operation names a sandbox call that can be made to fail.
type Operation string

const (
	OpPreview Operation = "preview"
	OpMetrics Operation = "metrics"
	OpPickup  Operation = "pickup"
	OpSubmit  Operation = "submit"
)

// Sandbox implements the gateway and both feeds from in-memory tables.
// Accepted overrides are written back as manual live rates, as a real PMS would.
type Sandbox struct {
	mu        sync.Mutex
	preview   map[rates.PropertyID]map[rates.Date]rates.PreviewDay
	metrics   map[rates.PropertyID]map[rates.Date]rates.DailyMetrics
	pickup    map[rates.PropertyID]map[rates.Date]int
	failures  map[Operation]error
	batches   map[string]bool
	submitted []rates.SubmitRequest
	gate      chan struct{}
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		preview:  make(map[rates.PropertyID]map[rates.Date]rates.PreviewDay),
		metrics:  make(map[rates.PropertyID]map[rates.Date]rates.DailyMetrics),
		pickup:   make(map[rates.PropertyID]map[rates.Date]int),
		failures: make(map[Operation]error),
		batches:  make(map[string]bool),
	}
}

// SetPreview stores preview rows for a property, replacing rows with the same date.
func (s *Sandbox) SetPreview(propertyID rates.PropertyID, days ...rates.PreviewDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.preview[propertyID]
	if byDate == nil {
		byDate = make(map[rates.Date]rates.PreviewDay)
		s.preview[propertyID] = byDate
	}
	for _, d := range days {
		byDate[d.Date] = d
	}
}

func (s *Sandbox) SetMetrics(propertyID rates.PropertyID, rows ...rates.DailyMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.metrics[propertyID]
	if byDate == nil {
		byDate = make(map[rates.Date]rates.DailyMetrics)
		s.metrics[propertyID] = byDate
	}
	for _, m := range rows {
		byDate[m.Period] = m
	}
}

func (s *Sandbox) SetPickup(propertyID rates.PropertyID, rows ...rates.DailyPickup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.pickup[propertyID]
	if byDate == nil {
		byDate = make(map[rates.Date]int)
		s.pickup[propertyID] = byDate
	}
	for _, p := range rows {
		byDate[p.Date] = p.Pickup
	}
}

// Fail makes every call of op return err until cleared with Fail(op, nil).
func (s *Sandbox) Fail(op Operation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// HoldSubmits makes SubmitOverrides block until the returned release is called
// or the caller's context ends.
func (s *Sandbox) HoldSubmits() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Submitted returns every accepted batch in arrival order.
func (s *Sandbox) Submitted() []rates.SubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rates.SubmitRequest(nil), s.submitted...)
}

func (s *Sandbox) failure(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

// =============================================================================
// PORTS
// =============================================================================

func (s *Sandbox) GetPreviewRates(ctx context.Context, propertyID rates.PropertyID, _ rates.RoomTypeID, start rates.Date, days int) ([]rates.PreviewDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.failure(OpPreview); err != nil {
		return nil, err
	}
	window := rates.Window(start, days)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rates.PreviewDay
	for d, p := range s.preview[propertyID] {
		if window.Contains(d) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Sandbox) GetDailyMetrics(ctx context.Context, propertyID rates.PropertyID, start, end rates.Date) ([]rates.DailyMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.failure(OpMetrics); err != nil {
		return nil, err
	}
	window := rates.Period{Start: start, End: end}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rates.DailyMetrics
	for d, m := range s.metrics[propertyID] {
		if window.Contains(d) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

// GetDailyPickup ignores the lookback; the sandbox keeps one pickup figure per date.
func (s *Sandbox) GetDailyPickup(ctx context.Context, propertyID rates.PropertyID, start, end rates.Date, _ rates.PickupWindow) ([]rates.DailyPickup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.failure(OpPickup); err != nil {
		return nil, err
	}
	window := rates.Period{Start: start, End: end}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rates.DailyPickup
	for d, p := range s.pickup[propertyID] {
		if window.Contains(d) {
			out = append(out, rates.DailyPickup{Date: d, Pickup: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// SubmitOverrides accepts a batch once per batch ID. Replays are acknowledged
// without being applied again.
func (s *Sandbox) SubmitOverrides(ctx context.Context, req rates.SubmitRequest) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := s.failure(OpSubmit); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batches[req.BatchID] {
		return nil
	}
	s.batches[req.BatchID] = true
	req.Overrides = append([]rates.Override(nil), req.Overrides...)
	s.submitted = append(s.submitted, req)

	byDate := s.preview[req.PropertyID]
	if byDate == nil {
		byDate = make(map[rates.Date]rates.PreviewDay)
		s.preview[req.PropertyID] = byDate
	}
	for _, o := range req.Overrides {
		day := byDate[o.Date]
		rate := o.Rate
		day.Date = o.Date
		day.LiveRate = &rate
		day.PreviewRate = rate
		day.Source = rates.SourceManual
		byDate[o.Date] = day
	}
	return nil
}

// =============================================================================
// DEMO DATA
// =============================================================================

// Seed fills a property with a deterministic calendar around baseRate:
// weekend uplift, a guardrail floor at 80% of the base, every 7th day frozen,
// and occupancy and pickup that vary by weekday.
func (s *Sandbox) Seed(propertyID rates.PropertyID, start rates.Date, days int, baseRate decimal.Decimal) {
	floor := baseRate.Mul(decimal.NewFromFloat(0.8)).Round(2)
	weekend := decimal.NewFromFloat(1.15)

	var (
		preview []rates.PreviewDay
		metrics []rates.DailyMetrics
		pickup  []rates.DailyPickup
	)
	for i, d := range rates.Window(start, days).Days() {
		suggested := baseRate
		wd := int(d.Weekday())
		if wd == 5 || wd == 6 {
			suggested = baseRate.Mul(weekend).Round(2)
		}
		live := baseRate
		preview = append(preview, rates.PreviewDay{
			Date:         d,
			LiveRate:     &live,
			PreviewRate:  suggested,
			Source:       rates.SourceAI,
			IsFrozen:     i%7 == 6,
			GuardrailMin: floor,
			FloorActive:  true,
		})
		sold := 20 + (wd*7)%15
		metrics = append(metrics, rates.DailyMetrics{
			Period:      d,
			RoomsSold:   sold,
			RoomsUnsold: 40 - sold,
			ADR:         suggested,
		})
		pickup = append(pickup, rates.DailyPickup{Date: d, Pickup: (i * 3) % 5})
	}
	s.SetPreview(propertyID, preview...)
	s.SetMetrics(propertyID, metrics...)
	s.SetPickup(propertyID, pickup...)
}

var (
	_ rates.PMSGateway  = (*Sandbox)(nil)
	_ rates.MetricsFeed = (*Sandbox)(nil)
	_ rates.PickupFeed  = (*Sandbox)(nil)
)
