package rates_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/pms"
	"github.com/warp/rate-engine/rates"
	"github.com/warp/rate-engine/rates/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testProperty rates.PropertyID = "hotel-1"

var windowStart = rates.MustParseDate("2026-07-01")

func previewDay(date rates.Date, preview string) rates.PreviewDay {
	live := dec("100")
	return rates.PreviewDay{
		Date:         date,
		LiveRate:     &live,
		PreviewRate:  dec(preview),
		Source:       rates.SourceAI,
		GuardrailMin: dec("80"),
		FloorActive:  true,
	}
}

// seedWeek gives the sandbox 7 days of preview from windowStart; day 3 is frozen.
func seedWeek(sb *pms.Sandbox) {
	for i := 0; i < 7; i++ {
		d := previewDay(windowStart.AddDays(i), "110")
		d.IsFrozen = i == 3
		sb.SetPreview(testProperty, d)
	}
}

func newTestAssembler(t *testing.T) (*rates.Assembler, *pms.Sandbox, *store.Memory) {
	t.Helper()
	sb := pms.NewSandbox()
	mem := store.NewMemory()
	return rates.NewAssembler(sb, sb, sb, mem, nil), sb, mem
}

func weekRequest() rates.LoadRequest {
	return rates.LoadRequest{PropertyID: testProperty, Start: windowStart, Days: 7, PickupWindow: 1}
}

// gatedGateway blocks the first preview call until release is closed.
type gatedGateway struct {
	*pms.Sandbox
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedGateway) GetPreviewRates(ctx context.Context, pid rates.PropertyID, rt rates.RoomTypeID, start rates.Date, days int) ([]rates.PreviewDay, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.Sandbox.GetPreviewRates(ctx, pid, rt, start, days)
}

// =============================================================================
// MERGE
// =============================================================================

func TestMerge_DefaultsForMissingFeeds(t *testing.T) {
	// GIVEN: preview for 3 dates, metrics for the first, pickup for the second
	// WHEN: merged
	// THEN: missing figures default to zero
	d0, d1, d2 := windowStart, windowStart.AddDays(1), windowStart.AddDays(2)
	preview := []rates.PreviewDay{previewDay(d2, "120"), previewDay(d0, "100"), previewDay(d1, "110")}
	metrics := []rates.DailyMetrics{{Period: d0, RoomsSold: 30, RoomsUnsold: 10, ADR: dec("95")}}
	pickup := []rates.DailyPickup{{Date: d1, Pickup: 4}}

	cal := rates.Merge(rates.Window(windowStart, 3), preview, metrics, pickup)

	require.Len(t, cal.Days, 3)
	assert.Equal(t, []rates.Date{d0, d1, d2}, []rates.Date{cal.Days[0].Date, cal.Days[1].Date, cal.Days[2].Date})

	assertRate(t, "75", cal.Days[0].Occupancy)
	assertRate(t, "95", cal.Days[0].ADR)
	assert.Equal(t, 0, cal.Days[0].Pickup)

	assertRate(t, "0", cal.Days[1].Occupancy)
	assertRate(t, "0", cal.Days[1].ADR)
	assert.Equal(t, 4, cal.Days[1].Pickup)

	day, ok := cal.Day(d2)
	require.True(t, ok)
	assertRate(t, "120", day.PreviewRate)
	assertRate(t, "80", day.GuardrailMin)
}

func TestMerge_ClipsToWindow(t *testing.T) {
	preview := []rates.PreviewDay{previewDay(windowStart.AddDays(-1), "1"), previewDay(windowStart, "2"), previewDay(windowStart.AddDays(5), "3")}

	cal := rates.Merge(rates.Window(windowStart, 2), preview, nil, nil)

	require.Len(t, cal.Days, 1)
	_, ok := cal.Day(windowStart.AddDays(5))
	assert.False(t, ok)
}

func TestMerge_ZeroRoomsMeansZeroOccupancy(t *testing.T) {
	metrics := []rates.DailyMetrics{{Period: windowStart}}

	cal := rates.Merge(rates.Window(windowStart, 1), []rates.PreviewDay{previewDay(windowStart, "1")}, metrics, nil)

	assertRate(t, "0", cal.Days[0].Occupancy)
}

func TestCalendar_ManualOverrides(t *testing.T) {
	manual := previewDay(windowStart, "140")
	manual.Source = rates.SourceManual
	manualNoPreview := previewDay(windowStart.AddDays(1), "0")
	manualNoPreview.Source = rates.SourceManual

	cal := rates.Merge(rates.Window(windowStart, 3), []rates.PreviewDay{
		manual, manualNoPreview, previewDay(windowStart.AddDays(2), "120"),
	}, nil, nil)
	seeds := cal.ManualOverrides()

	require.Len(t, seeds, 2)
	assertRate(t, "140", seeds[0].Rate)
	assertRate(t, "100", seeds[1].Rate, "falls back to the live rate")
}

// =============================================================================
// ASSEMBLER
// =============================================================================

func TestAssembler_LoadsAllFeeds(t *testing.T) {
	a, sb, mem := newTestAssembler(t)
	seedWeek(sb)
	sb.SetMetrics(testProperty, rates.DailyMetrics{Period: windowStart, RoomsSold: 5, RoomsUnsold: 15, ADR: dec("100")})
	sb.SetPickup(testProperty, rates.DailyPickup{Date: windowStart, Pickup: 2})
	profile := profileWith(func(p *rates.CalculatorProfile) { p.Multiplier = dec("1.3") })
	require.NoError(t, mem.SaveConfig(context.Background(), testProperty, profile))

	cal, err := a.Load(context.Background(), weekRequest())

	require.NoError(t, err)
	assert.Len(t, cal.Days, 7)
	assert.Equal(t, testProperty, cal.PropertyID)
	assert.Equal(t, uint64(1), cal.Generation)
	assert.Equal(t, rates.PickupWindow(1), cal.PickupWindow)
	assertRate(t, "1.3", cal.Profile.Multiplier)
	assertRate(t, "25", cal.Days[0].Occupancy)
	assert.Equal(t, 2, cal.Days[0].Pickup)
	assert.True(t, cal.Days[3].IsFrozen)
}

func TestAssembler_MissingProfileUsesDefault(t *testing.T) {
	a, sb, _ := newTestAssembler(t)
	seedWeek(sb)

	cal, err := a.Load(context.Background(), weekRequest())

	require.NoError(t, err)
	assertRate(t, "1", cal.Profile.Multiplier)
	assert.Equal(t, rates.TaxInclusive, cal.Profile.TaxMode)
}

func TestAssembler_AnyFeedFailureFailsTheLoad(t *testing.T) {
	tests := []struct {
		op   pms.Operation
		feed rates.FeedName
	}{
		{pms.OpPreview, rates.FeedPreview},
		{pms.OpMetrics, rates.FeedMetrics},
		{pms.OpPickup, rates.FeedPickup},
	}
	for _, tt := range tests {
		t.Run(string(tt.feed), func(t *testing.T) {
			a, sb, _ := newTestAssembler(t)
			seedWeek(sb)
			cause := errors.New("upstream timeout")
			sb.Fail(tt.op, cause)

			cal, err := a.Load(context.Background(), weekRequest())

			assert.Nil(t, cal, "no partial calendar")
			assert.ErrorIs(t, err, rates.ErrFeedFailure)
			assert.ErrorIs(t, err, cause)
			var feedErr *rates.FeedError
			require.ErrorAs(t, err, &feedErr)
			assert.Equal(t, tt.feed, feedErr.Feed)
			assert.Equal(t, testProperty, feedErr.PropertyID)
		})
	}
}

func TestAssembler_ProfileStoreFailure(t *testing.T) {
	sb := pms.NewSandbox()
	seedWeek(sb)
	a := rates.NewAssembler(sb, sb, sb, failingConfigs{}, nil)

	_, err := a.Load(context.Background(), weekRequest())

	var feedErr *rates.FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, rates.FeedProfile, feedErr.Feed)
}

func TestAssembler_StaleLoadIsDiscarded(t *testing.T) {
	// GIVEN: a load whose preview feed hangs
	// WHEN: a newer load for the same property completes first
	// THEN: the first load returns ErrStaleLoad once it finishes
	sb := pms.NewSandbox()
	seedWeek(sb)
	gw := &gatedGateway{Sandbox: sb, started: make(chan struct{}), release: make(chan struct{})}
	a := rates.NewAssembler(gw, sb, sb, store.NewMemory(), nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := a.Load(context.Background(), weekRequest())
		firstErr <- err
	}()
	<-gw.started

	second, err := a.Load(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)
	assert.True(t, a.IsCurrent(testProperty, second.Generation))

	close(gw.release)
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, rates.ErrStaleLoad)
	case <-time.After(5 * time.Second):
		t.Fatal("first load never finished")
	}
}

func TestAssembler_GenerationsArePerProperty(t *testing.T) {
	a, sb, _ := newTestAssembler(t)
	seedWeek(sb)
	sb.SetPreview("hotel-2", previewDay(windowStart, "90"))

	_, err := a.Load(context.Background(), weekRequest())
	require.NoError(t, err)
	other, err := a.Load(context.Background(), rates.LoadRequest{PropertyID: "hotel-2", Start: windowStart, Days: 7})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), other.Generation)
	assert.True(t, a.IsCurrent(testProperty, 1))
}

type failingConfigs struct{}

func (failingConfigs) GetConfig(context.Context, rates.PropertyID) (rates.CalculatorProfile, error) {
	return rates.CalculatorProfile{}, errors.New("config store down")
}

func (failingConfigs) SaveConfig(context.Context, rates.PropertyID, rates.CalculatorProfile) error {
	return errors.New("config store down")
}
