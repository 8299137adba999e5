package factory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/rates"
)

func TestParseProfile_Full(t *testing.T) {
	f := NewProfileFactory()

	p, err := f.ParseProfile(`{
		"multiplier": "1.3",
		"tax_mode": "Exclusive",
		"tax_percent": 8,
		"non_refundable": {"active": true, "percent": "15"},
		"mobile_rate": {"active": true, "percent": 10},
		"campaigns": [{
			"id": "bf-2026", "slug": "black-friday", "discount_percent": "40",
			"start_date": "2026-11-27", "end_date": "2026-11-30", "active": true
		}]
	}`)

	require.NoError(t, err)
	assert.True(t, p.Multiplier.Equal(decimal.RequireFromString("1.3")))
	assert.Equal(t, rates.TaxExclusive, p.TaxMode)
	assert.True(t, p.TaxPercent.Equal(decimal.NewFromInt(8)))
	assert.True(t, p.NonRefundable.Active)
	assert.True(t, p.MobileRate.Percent.Equal(decimal.NewFromInt(10)))
	assert.False(t, p.CountryRate.Active)
	require.Len(t, p.Campaigns, 1)
	assert.Equal(t, rates.SlugBlackFriday, p.Campaigns[0].Slug)
	assert.Equal(t, "2026-11-30", p.Campaigns[0].EndDate.String())
}

func TestParseProfile_Defaults(t *testing.T) {
	p, err := NewProfileFactory().ParseProfile(`{}`)

	require.NoError(t, err)
	assert.True(t, p.Multiplier.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, rates.TaxInclusive, p.TaxMode)
	assert.Empty(t, p.Campaigns)
}

func TestParseProfile_DefaultCampaignID(t *testing.T) {
	p, err := NewProfileFactory().ParseProfile(`{"campaigns": [
		{"slug": "early-deal", "discount_percent": 10, "start_date": "2026-03-01", "end_date": "2026-03-31", "active": true}
	]}`)

	require.NoError(t, err)
	assert.Equal(t, rates.CampaignID("early-deal-2026-03-01"), p.Campaigns[0].ID)
}

func TestParseProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"multiplier":`},
		{"negative multiplier", `{"multiplier": -1}`},
		{"unknown tax mode", `{"tax_mode": "vat"}`},
		{"negative tax", `{"tax_percent": -5}`},
		{"toggle over 100", `{"mobile_rate": {"active": true, "percent": 101}}`},
		{"missing slug", `{"campaigns": [{"discount_percent": 10, "start_date": "2026-03-01", "end_date": "2026-03-02"}]}`},
		{"bad date", `{"campaigns": [{"slug": "x", "start_date": "03/01/2026", "end_date": "2026-03-02"}]}`},
		{"end before start", `{"campaigns": [{"slug": "x", "start_date": "2026-03-05", "end_date": "2026-03-02"}]}`},
		{"campaign percent", `{"campaigns": [{"slug": "x", "discount_percent": 150, "start_date": "2026-03-01", "end_date": "2026-03-02"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProfileFactory().ParseProfile(tt.json)
			assert.ErrorIs(t, err, rates.ErrInvalidProfile)
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	f := NewProfileFactory()
	in, err := f.ParseProfile(`{
		"multiplier": "0", "tax_mode": "exclusive", "tax_percent": "12.5",
		"country_rate": {"active": true, "percent": "3"},
		"campaigns": [{"id": "lt", "slug": "limited-time", "discount_percent": "20",
			"start_date": "2026-05-01", "end_date": "2026-05-03", "active": false}]
	}`)
	require.NoError(t, err)

	s, err := f.Marshal(in)
	require.NoError(t, err)
	out, err := f.ParseProfile(s)
	require.NoError(t, err)

	assert.True(t, out.Multiplier.IsZero(), "explicit zero multiplier survives")
	assert.True(t, out.TaxPercent.Equal(in.TaxPercent))
	assert.Equal(t, in.CountryRate.Active, out.CountryRate.Active)
	assert.Equal(t, in.Campaigns, out.Campaigns)
}

func TestPresets(t *testing.T) {
	f := NewProfileFactory()

	std, err := f.ParseProfile(StandardProfileJSON(1.3, 15))
	require.NoError(t, err)
	assert.True(t, std.NonRefundable.Active)
	assert.True(t, std.Multiplier.Equal(decimal.RequireFromString("1.3")))

	noNR, err := f.ParseProfile(StandardProfileJSON(1, 0))
	require.NoError(t, err)
	assert.False(t, noNR.NonRefundable.Active)

	tax, err := f.ParseProfile(ExclusiveTaxProfileJSON(1, 8))
	require.NoError(t, err)
	assert.Equal(t, rates.TaxExclusive, tax.TaxMode)
	assert.True(t, tax.TaxPercent.Equal(decimal.NewFromInt(8)))
}
