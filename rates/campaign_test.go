package rates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/rate-engine/rates"
)

func TestIsValid_InclusiveBoundaries(t *testing.T) {
	// GIVEN: A campaign from D1 to D2
	// THEN: Valid exactly on [D1, D2], invalid on D1-1 and D2+1
	c := campaign("c", rates.SlugEarlyDeal, "10", "2026-03-10", "2026-03-15")
	d1 := rates.MustParseDate("2026-03-10")
	d2 := rates.MustParseDate("2026-03-15")

	assert.False(t, rates.IsValid(d1.AddDays(-1), c), "day before start")
	for _, d := range (rates.Period{Start: d1, End: d2}).Days() {
		assert.True(t, rates.IsValid(d, c), "inside window: %s", d)
	}
	assert.False(t, rates.IsValid(d2.AddDays(1), c), "day after end")
}

func TestIsValid_SingleDayCampaign(t *testing.T) {
	c := campaign("c", rates.SlugLimitedTime, "20", "2026-03-10", "2026-03-10")

	assert.True(t, rates.IsValid(rates.MustParseDate("2026-03-10"), c))
	assert.False(t, rates.IsValid(rates.MustParseDate("2026-03-11"), c))
}

func TestIsValid_InactiveOrMissingBounds(t *testing.T) {
	date := rates.MustParseDate("2026-03-12")

	inactive := campaign("c", rates.SlugEarlyDeal, "10", "2026-03-10", "2026-03-15")
	inactive.Active = false
	noEnd := campaign("c", rates.SlugEarlyDeal, "10", "2026-03-10", "2026-03-15")
	noEnd.EndDate = rates.Date{}

	assert.False(t, rates.IsValid(date, inactive))
	assert.False(t, rates.IsValid(date, noEnd))
}

func TestDeepDeal_FirstValidWins(t *testing.T) {
	date := rates.MustParseDate("2026-11-28")
	campaigns := []rates.Campaign{
		campaign("expired", rates.SlugBlackFriday, "50", "2025-11-27", "2025-11-30"),
		campaign("lt", rates.SlugLimitedTime, "20", "2026-11-01", "2026-11-30"),
		campaign("bf", rates.SlugBlackFriday, "40", "2026-11-27", "2026-11-30"),
	}

	deal, ok := rates.DeepDeal(date, campaigns)

	assert.True(t, ok)
	assert.Equal(t, rates.CampaignID("lt"), deal.ID)
}

func TestBestOrdinary_IgnoresDeepDeals(t *testing.T) {
	date := rates.MustParseDate("2026-11-28")
	campaigns := []rates.Campaign{
		campaign("bf", rates.SlugBlackFriday, "60", "2026-11-27", "2026-11-30"),
		campaign("ed", rates.SlugEarlyDeal, "10", "2026-11-01", "2026-11-30"),
	}

	best, ok := rates.BestOrdinary(date, campaigns)

	assert.True(t, ok)
	assert.Equal(t, rates.CampaignID("ed"), best.ID)
	assert.Len(t, rates.ValidCampaigns(date, campaigns), 2)
}

func TestBestOrdinary_NoneValid(t *testing.T) {
	_, ok := rates.BestOrdinary(rates.MustParseDate("2027-01-01"), []rates.Campaign{
		campaign("ed", rates.SlugEarlyDeal, "10", "2026-11-01", "2026-11-30"),
	})

	assert.False(t, ok)
}
