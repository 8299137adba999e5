package rates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rate-engine/pms"
	"github.com/warp/rate-engine/rates"
	"github.com/warp/rate-engine/rates/store"
)

func newTestSubmitter() (*rates.Submitter, *pms.Sandbox, *store.Memory) {
	sb := pms.NewSandbox()
	mem := store.NewMemory()
	s := rates.NewSubmitter(sb, mem, nil)
	s.NewBatchID = func() string { return "batch-1" }
	s.Now = func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) }
	return s, sb, mem
}

func TestSubmitter_Success(t *testing.T) {
	// GIVEN: two pending overrides
	// WHEN: the gateway accepts the batch
	// THEN: they are committed, persisted and audited
	s, sb, mem := newTestSubmitter()
	ctx := context.Background()
	book := rates.NewOverrideBook()
	book.SetPending(windowStart, dec("120"))
	book.SetPending(windowStart.AddDays(1), dec("130"))

	out, err := s.Submit(ctx, target, book)

	require.NoError(t, err)
	assert.Equal(t, "batch-1", out.BatchID)
	require.Len(t, out.Submitted, 2)
	assert.Empty(t, book.PendingOverrides())
	assert.Equal(t, rates.StateCommitted, book.State(windowStart))
	assert.False(t, s.InFlight(testProperty))

	sent := sb.Submitted()
	require.Len(t, sent, 1)
	assert.Equal(t, "batch-1", sent[0].BatchID)
	assert.Equal(t, "pms-1", sent[0].PMSPropertyID)
	assert.Equal(t, rates.RoomTypeID("std"), sent[0].RoomTypeID)
	assert.Len(t, sent[0].Overrides, 2)

	committed, err := mem.LoadCommitted(ctx, testProperty)
	require.NoError(t, err)
	assert.Len(t, committed, 2)

	records, err := mem.ListSubmissions(ctx, testProperty, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rates.SubmissionSucceeded, records[0].Status)
	assert.Empty(t, records[0].Error)
}

func TestSubmitter_FailureRestoresPending(t *testing.T) {
	// GIVEN: a committed rate and a pending edit on the same date
	// WHEN: the gateway rejects the batch
	// THEN: pending and committed are exactly as before the attempt
	s, sb, mem := newTestSubmitter()
	ctx := context.Background()
	book := rates.NewOverrideBook()
	book.SeedCommitted([]rates.Override{{Date: windowStart, Rate: dec("100")}})
	book.SetPending(windowStart, dec("120"))
	book.SetPending(windowStart.AddDays(2), dec("90"))
	cause := errors.New("pms unavailable")
	sb.Fail(pms.OpSubmit, cause)

	_, err := s.Submit(ctx, target, book)

	assert.ErrorIs(t, err, rates.ErrSubmissionFailed)
	assert.ErrorIs(t, err, cause)
	var subErr *rates.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, []rates.Date{windowStart, windowStart.AddDays(2)}, subErr.Dates)

	assert.Len(t, book.PendingOverrides(), 2)
	committed := book.CommittedOverrides()
	require.Len(t, committed, 1)
	assertRate(t, "100", committed[0].Rate)
	assert.Equal(t, rates.StatePending, book.State(windowStart.AddDays(2)))

	persisted, err := mem.LoadCommitted(ctx, testProperty)
	require.NoError(t, err)
	assert.Empty(t, persisted, "nothing persisted on failure")
	records, err := mem.ListSubmissions(ctx, testProperty, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rates.SubmissionFailed, records[0].Status)
	assert.Equal(t, "pms unavailable", records[0].Error)
	assert.Empty(t, sb.Submitted())
}

func TestSubmitter_RetryAfterFailure(t *testing.T) {
	s, sb, _ := newTestSubmitter()
	ctx := context.Background()
	book := rates.NewOverrideBook()
	book.SetPending(windowStart, dec("120"))
	sb.Fail(pms.OpSubmit, errors.New("timeout"))
	_, err := s.Submit(ctx, target, book)
	require.Error(t, err)

	sb.Fail(pms.OpSubmit, nil)
	s.NewBatchID = func() string { return "batch-2" }
	out, err := s.Submit(ctx, target, book)

	require.NoError(t, err)
	assert.Equal(t, "batch-2", out.BatchID)
	assert.Equal(t, rates.StateCommitted, book.State(windowStart))
}

func TestSubmitter_NothingPending(t *testing.T) {
	s, sb, mem := newTestSubmitter()

	out, err := s.Submit(context.Background(), target, rates.NewOverrideBook())

	require.NoError(t, err)
	assert.Empty(t, out.Submitted)
	assert.Empty(t, sb.Submitted())
	records, _ := mem.ListSubmissions(context.Background(), testProperty, 0)
	assert.Empty(t, records)
}

func TestSubmitter_OnePerPropertyInFlight(t *testing.T) {
	s, sb, _ := newTestSubmitter()
	ctx := context.Background()
	book := rates.NewOverrideBook()
	book.SetPending(windowStart, dec("120"))
	other := rates.NewOverrideBook()
	other.SetPending(windowStart, dec("70"))

	release := sb.HoldSubmits()
	defer release()
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, target, book)
		done <- err
	}()
	require.Eventually(t, func() bool { return s.InFlight(testProperty) }, 2*time.Second, 5*time.Millisecond)

	_, err := s.Submit(ctx, target, book)
	assert.ErrorIs(t, err, rates.ErrSubmissionInProgress)
	assert.True(t, rates.IsRetryable(err))

	release()
	require.NoError(t, <-done)
	assert.False(t, s.InFlight(testProperty))

	// A different property was never blocked.
	otherTarget := rates.SubmitTarget{PropertyID: "hotel-2"}
	_, err = s.Submit(ctx, otherTarget, other)
	assert.NoError(t, err)
}

func TestSubmitter_CancelledWhileInFlight(t *testing.T) {
	s, sb, _ := newTestSubmitter()
	book := rates.NewOverrideBook()
	book.SetPending(windowStart, dec("120"))
	release := sb.HoldSubmits()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Submit(ctx, target, book)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, rates.StatePending, book.State(windowStart))
}

// brokenLog accepts nothing.
type brokenLog struct{ *store.Memory }

func (brokenLog) SaveCommitted(context.Context, rates.PropertyID, []rates.Override) error {
	return errors.New("disk full")
}

func TestSubmitter_PersistenceFailureDoesNotFailSubmission(t *testing.T) {
	sb := pms.NewSandbox()
	s := rates.NewSubmitter(sb, brokenLog{store.NewMemory()}, nil)
	book := rates.NewOverrideBook()
	book.SetPending(windowStart, dec("120"))

	_, err := s.Submit(context.Background(), target, book)

	require.NoError(t, err, "the PMS acknowledged the batch")
	assert.Equal(t, rates.StateCommitted, book.State(windowStart))
}
