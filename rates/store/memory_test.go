package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/rates"
)

func TestMemory_ProfileIsCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	profile := rates.DefaultProfile()
	profile.Campaigns = []rates.Campaign{{ID: "a"}}
	require.NoError(t, m.SaveConfig(ctx, "hotel-1", profile))

	profile.Campaigns[0].ID = "mutated"
	got, err := m.GetConfig(ctx, "hotel-1")

	require.NoError(t, err)
	assert.Equal(t, rates.CampaignID("a"), got.Campaigns[0].ID)
	_, err = m.GetConfig(ctx, "hotel-2")
	assert.ErrorIs(t, err, rates.ErrProfileNotFound)
}

func TestMemory_OverrideLog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d := rates.MustParseDate("2026-07-01")

	require.NoError(t, m.SaveCommitted(ctx, "hotel-1", []rates.Override{{Date: d.AddDays(1), Rate: decimal.NewFromInt(2)}, {Date: d, Rate: decimal.NewFromInt(1)}}))
	committed, err := m.LoadCommitted(ctx, "hotel-1")
	require.NoError(t, err)
	require.Len(t, committed, 2)
	assert.Equal(t, d, committed[0].Date)

	for _, id := range []string{"b1", "b2", "b3"} {
		require.NoError(t, m.RecordSubmission(ctx, rates.SubmissionRecord{BatchID: id, PropertyID: "hotel-1"}))
	}
	latest, err := m.ListSubmissions(ctx, "hotel-1", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b3", latest[0].BatchID)
	assert.Equal(t, "b2", latest[1].BatchID)
}
