/*
calendar.go - Four-feed calendar assembly

PURPOSE:
  Builds the per-date rate calendar for one property by fetching, at the
  same time:
    (a) preview rates from the PMS gateway (live rate, suggestion, floor, frozen flag)
    (b) daily metrics (rooms sold/unsold, ADR)
    (c) pickup for the configured lookback window
    (d) the calculator profile
  and merging them by date key.

ALL OR NOTHING:
  The four fetches run under one errgroup. The first failure cancels the
  others and the load fails as a whole with a FeedError. There is no partial
  calendar; whoever holds the previous calendar keeps showing it.

STALE LOADS:
  Each Load takes a new generation number for its property. When a load
  finishes after a newer one started, its result is discarded with
  ErrStaleLoad instead of being merged.

DEFAULTS:
  Dates missing from the metrics or pickup feed get occupancy 0, ADR 0 and
  pickup 0. A property with no saved profile uses DefaultProfile().

SEE ALSO:
  - desk.go: Keeps the last good calendar and seeds committed overrides
  - ports.go: Feed interfaces
*/
package rates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultWindowDays is the calendar length loaded by default.
const DefaultWindowDays = 365

// LoadRequest describes one calendar load.
type LoadRequest struct {
	PropertyID     PropertyID
	BaseRoomTypeID RoomTypeID
	Start          Date
	Days           int
	PickupWindow   PickupWindow
}

// Calendar is a fully merged calendar. It is replaced wholesale, never patched.
type Calendar struct {
	PropertyID   PropertyID
	Generation   uint64
	Window       Period
	PickupWindow PickupWindow
	Profile      CalculatorProfile
	Days         []RateCalendarDay
	LoadedAt     time.Time

	// ProfileDefaulted is set when no profile was saved and DefaultProfile was used.
	ProfileDefaulted bool

	index map[Date]int
}

// Day returns the row for date.
func (c *Calendar) Day(date Date) (RateCalendarDay, bool) {
	if c == nil {
		return RateCalendarDay{}, false
	}
	i, ok := c.index[date]
	if !ok {
		return RateCalendarDay{}, false
	}
	return c.Days[i], true
}

// ManualOverrides returns the rates already pushed manually, as reported by
// the preview feed. They seed the committed side of the override book.
func (c *Calendar) ManualOverrides() []Override {
	var out []Override
	for _, d := range c.Days {
		if d.Source != SourceManual {
			continue
		}
		rate := d.PreviewRate
		if !rate.IsPositive() && d.LiveRate != nil {
			rate = *d.LiveRate
		}
		out = append(out, Override{Date: d.Date, Rate: rate})
	}
	return out
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler fetches and merges the four calendar feeds.
type Assembler struct {
	Gateway PMSGateway
	Metrics MetricsFeed
	Pickup  PickupFeed
	Configs ConfigStore
	Logger  *slog.Logger
	Now     func() time.Time

	mu          sync.Mutex
	generations map[PropertyID]uint64
}

func NewAssembler(gateway PMSGateway, metrics MetricsFeed, pickup PickupFeed, configs ConfigStore, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Assembler{
		Gateway:     gateway,
		Metrics:     metrics,
		Pickup:      pickup,
		Configs:     configs,
		Logger:      logger,
		Now:         time.Now,
		generations: make(map[PropertyID]uint64),
	}
}

// IsCurrent reports whether generation is the newest load started for the property.
func (a *Assembler) IsCurrent(propertyID PropertyID, generation uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations[propertyID] == generation
}

func (a *Assembler) nextGeneration(propertyID PropertyID) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generations[propertyID]++
	return a.generations[propertyID]
}

// Load fetches all four feeds concurrently and merges them.
func (a *Assembler) Load(ctx context.Context, req LoadRequest) (*Calendar, error) {
	if req.Days <= 0 {
		req.Days = DefaultWindowDays
	}
	if req.PickupWindow <= 0 {
		req.PickupWindow = DefaultPickupWindow
	}
	if req.Start.IsZero() {
		req.Start = DateOf(a.Now())
	}
	window := Window(req.Start, req.Days)
	generation := a.nextGeneration(req.PropertyID)
	started := time.Now()

	var (
		preview []PreviewDay
		metrics []DailyMetrics
		pickup  []DailyPickup
		profile   CalculatorProfile
		defaulted bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		preview, err = a.Gateway.GetPreviewRates(gctx, req.PropertyID, req.BaseRoomTypeID, window.Start, req.Days)
		return a.feedErr(FeedPreview, req.PropertyID, err)
	})
	g.Go(func() error {
		var err error
		metrics, err = a.Metrics.GetDailyMetrics(gctx, req.PropertyID, window.Start, window.End)
		return a.feedErr(FeedMetrics, req.PropertyID, err)
	})
	g.Go(func() error {
		var err error
		pickup, err = a.Pickup.GetDailyPickup(gctx, req.PropertyID, window.Start, window.End, req.PickupWindow)
		return a.feedErr(FeedPickup, req.PropertyID, err)
	})
	g.Go(func() error {
		var err error
		profile, err = a.Configs.GetConfig(gctx, req.PropertyID)
		if errors.Is(err, ErrProfileNotFound) {
			a.Logger.Warn("no calculator profile saved, using defaults", "property_id", req.PropertyID)
			profile, err = DefaultProfile(), nil
			defaulted = true
		}
		return a.feedErr(FeedProfile, req.PropertyID, err)
	})

	err := g.Wait()
	calendarLoadDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		calendarLoads.WithLabelValues("feed_failure").Inc()
		a.Logger.Error("calendar load failed", "property_id", req.PropertyID, "generation", generation, "error", err)
		return nil, err
	}
	if !a.IsCurrent(req.PropertyID, generation) {
		calendarLoads.WithLabelValues("stale").Inc()
		a.Logger.Info("discarding stale calendar load", "property_id", req.PropertyID, "generation", generation)
		return nil, ErrStaleLoad
	}

	cal := Merge(window, preview, metrics, pickup)
	cal.PropertyID = req.PropertyID
	cal.Generation = generation
	cal.PickupWindow = req.PickupWindow
	cal.Profile = profile
	cal.ProfileDefaulted = defaulted
	cal.LoadedAt = a.Now()

	calendarLoads.WithLabelValues("ok").Inc()
	a.Logger.Info("calendar loaded",
		"property_id", req.PropertyID,
		"generation", generation,
		"window", window.String(),
		"count", len(cal.Days),
	)
	return cal, nil
}

func (a *Assembler) feedErr(feed FeedName, propertyID PropertyID, err error) error {
	if err == nil {
		return nil
	}
	return &FeedError{Feed: feed, PropertyID: propertyID, Err: err}
}

// =============================================================================
// MERGE - Join feeds by date key
// =============================================================================

// Merge joins the feeds into calendar rows. Rows come from the preview feed,
// restricted to the window and sorted by date; a later duplicate date wins.
func Merge(window Period, preview []PreviewDay, metrics []DailyMetrics, pickup []DailyPickup) *Calendar {
	metricsByDate := make(map[Date]DailyMetrics, len(metrics))
	for _, m := range metrics {
		metricsByDate[m.Period] = m
	}
	pickupByDate := make(map[Date]int, len(pickup))
	for _, p := range pickup {
		pickupByDate[p.Date] = p.Pickup
	}

	rows := make(map[Date]RateCalendarDay, len(preview))
	for _, p := range preview {
		if !window.Contains(p.Date) {
			continue
		}
		row := RateCalendarDay{
			Date:         p.Date,
			LiveRate:     p.LiveRate,
			PreviewRate:  p.PreviewRate,
			GuardrailMin: p.GuardrailMin,
			FloorActive:  p.FloorActive,
			IsFrozen:     p.IsFrozen,
			Source:       p.Source,
			Occupancy:    decimal.Zero,
			ADR:          decimal.Zero,
		}
		if m, ok := metricsByDate[p.Date]; ok {
			row.Occupancy = m.Occupancy()
			row.ADR = m.ADR
		}
		row.Pickup = pickupByDate[p.Date]
		rows[p.Date] = row
	}

	days := make([]RateCalendarDay, 0, len(rows))
	for _, r := range rows {
		days = append(days, r)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	index := make(map[Date]int, len(days))
	for i, d := range days {
		index[d.Date] = i
	}
	return &Calendar{Window: window, Days: days, index: index}
}
