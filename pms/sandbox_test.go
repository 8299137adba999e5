package pms

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/rates"
)

func TestSandbox_Seed(t *testing.T) {
	sb := NewSandbox()
	start := rates.MustParseDate("2026-07-01") // Wednesday
	ctx := context.Background()

	sb.Seed("demo", start, 14, decimal.NewFromInt(100))

	preview, err := sb.GetPreviewRates(ctx, "demo", "", start, 14)
	require.NoError(t, err)
	require.Len(t, preview, 14)
	for i, d := range preview {
		assert.Equal(t, start.AddDays(i), d.Date, "sorted by date")
		assert.True(t, d.GuardrailMin.Equal(decimal.NewFromInt(80)))
		assert.Equal(t, i%7 == 6, d.IsFrozen, d.Date)
	}
	friday := preview[2]
	assert.True(t, friday.PreviewRate.Equal(decimal.NewFromInt(115)), "weekend uplift")
	assert.True(t, preview[0].PreviewRate.Equal(decimal.NewFromInt(100)))

	metrics, err := sb.GetDailyMetrics(ctx, "demo", start, start.AddDays(6))
	require.NoError(t, err)
	assert.Len(t, metrics, 7)
	for _, m := range metrics {
		assert.Equal(t, 40, m.RoomsSold+m.RoomsUnsold)
	}

	pickup, err := sb.GetDailyPickup(ctx, "demo", start, start.AddDays(2), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 1}, []int{pickup[0].Pickup, pickup[1].Pickup, pickup[2].Pickup})
}

func TestSandbox_Fail(t *testing.T) {
	sb := NewSandbox()
	ctx := context.Background()
	boom := errors.New("boom")

	sb.Fail(OpMetrics, boom)
	_, err := sb.GetDailyMetrics(ctx, "demo", rates.MustParseDate("2026-07-01"), rates.MustParseDate("2026-07-02"))
	assert.ErrorIs(t, err, boom)
	_, err = sb.GetPreviewRates(ctx, "demo", "", rates.MustParseDate("2026-07-01"), 1)
	assert.NoError(t, err, "other operations unaffected")

	sb.Fail(OpMetrics, nil)
	_, err = sb.GetDailyMetrics(ctx, "demo", rates.MustParseDate("2026-07-01"), rates.MustParseDate("2026-07-02"))
	assert.NoError(t, err)
}

func TestSandbox_SubmitWritesBackManualRates(t *testing.T) {
	sb := NewSandbox()
	ctx := context.Background()
	start := rates.MustParseDate("2026-07-01")
	sb.Seed("demo", start, 7, decimal.NewFromInt(100))
	req := rates.SubmitRequest{
		PropertyID: "demo",
		BatchID:    "batch-1",
		Overrides:  []rates.Override{{Date: start, Rate: decimal.NewFromInt(130)}},
	}

	require.NoError(t, sb.SubmitOverrides(ctx, req))
	require.NoError(t, sb.SubmitOverrides(ctx, req), "replay is acknowledged")

	assert.Len(t, sb.Submitted(), 1, "replay not applied twice")
	preview, err := sb.GetPreviewRates(ctx, "demo", "", start, 1)
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Equal(t, rates.SourceManual, preview[0].Source)
	assert.True(t, preview[0].LiveRate.Equal(decimal.NewFromInt(130)))
	assert.True(t, preview[0].PreviewRate.Equal(decimal.NewFromInt(130)))
	assert.True(t, preview[0].GuardrailMin.Equal(decimal.NewFromInt(80)), "other fields kept")
}
