package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/rates"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStore_Profiles(t *testing.T) {
	// GIVEN: an empty store
	// WHEN: a profile is saved twice
	// THEN: the latest one is returned and the version is 2
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetConfig(ctx, "hotel-1")
	assert.ErrorIs(t, err, rates.ErrProfileNotFound)
	v, err := s.ProfileVersion(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	profile := rates.DefaultProfile()
	profile.Multiplier = dec("1.3")
	profile.Campaigns = []rates.Campaign{{
		ID: "ed", Slug: rates.SlugEarlyDeal, DiscountPercent: dec("10"),
		StartDate: rates.MustParseDate("2026-03-01"), EndDate: rates.MustParseDate("2026-03-31"), Active: true,
	}}
	require.NoError(t, s.SaveConfig(ctx, "hotel-1", profile))
	profile.TaxMode = rates.TaxExclusive
	profile.TaxPercent = dec("8")
	require.NoError(t, s.SaveConfig(ctx, "hotel-1", profile))

	got, err := s.GetConfig(ctx, "hotel-1")
	require.NoError(t, err)
	assert.True(t, got.Multiplier.Equal(dec("1.3")))
	assert.Equal(t, rates.TaxExclusive, got.TaxMode)
	require.Len(t, got.Campaigns, 1)
	assert.Equal(t, rates.CampaignID("ed"), got.Campaigns[0].ID)

	v, err = s.ProfileVersion(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestStore_CommittedUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d1, d2 := rates.MustParseDate("2026-07-02"), rates.MustParseDate("2026-07-01")

	require.NoError(t, s.SaveCommitted(ctx, "hotel-1", []rates.Override{{Date: d1, Rate: dec("100")}, {Date: d2, Rate: dec("90")}}))
	require.NoError(t, s.SaveCommitted(ctx, "hotel-1", []rates.Override{{Date: d1, Rate: dec("110.50")}}))

	got, err := s.LoadCommitted(ctx, "hotel-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d2, got[0].Date, "ordered by date")
	assert.True(t, got[1].Rate.Equal(dec("110.5")))

	other, err := s.LoadCommitted(ctx, "hotel-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_SubmissionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"b1", "b2", "b3"} {
		record := rates.SubmissionRecord{
			BatchID:     id,
			PropertyID:  "hotel-1",
			Overrides:   []rates.Override{{Date: rates.MustParseDate("2026-07-10"), Rate: dec("120")}},
			Status:      rates.SubmissionSucceeded,
			SubmittedAt: base.Add(time.Duration(i) * 500 * time.Millisecond),
		}
		require.NoError(t, s.RecordSubmission(ctx, record))
	}
	require.NoError(t, s.RecordSubmission(ctx, rates.SubmissionRecord{
		BatchID:       "b4",
		PropertyID:    "hotel-1",
		PMSPropertyID: "pms-1",
		RoomTypeID:    "std",
		Status:        rates.SubmissionFailed,
		Error:         "timeout",
		SubmittedAt:   base.Add(2 * time.Second),
	}))

	all, err := s.ListSubmissions(ctx, "hotel-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"b4", "b3", "b2", "b1"}, []string{all[0].BatchID, all[1].BatchID, all[2].BatchID, all[3].BatchID})
	assert.Equal(t, rates.SubmissionFailed, all[0].Status)
	assert.Equal(t, "timeout", all[0].Error)
	assert.Equal(t, "pms-1", all[0].PMSPropertyID)
	assert.True(t, all[1].SubmittedAt.Equal(base.Add(time.Second)))
	require.Len(t, all[3].Overrides, 1)
	assert.True(t, all[3].Overrides[0].Rate.Equal(dec("120")))

	limited, err := s.ListSubmissions(ctx, "hotel-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConfig(ctx, "hotel-1", rates.DefaultProfile()))
	require.NoError(t, s.SaveCommitted(ctx, "hotel-1", []rates.Override{{Date: rates.MustParseDate("2026-07-01"), Rate: dec("1")}}))

	require.NoError(t, s.Reset(ctx))

	_, err := s.GetConfig(ctx, "hotel-1")
	assert.ErrorIs(t, err, rates.ErrProfileNotFound)
	committed, err := s.LoadCommitted(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Empty(t, committed)
}
