/*
submission.go - Batch submission of pending overrides to the PMS

PURPOSE:
  Flushes a property's pending overrides to the PMS gateway in one batch.

STEPS:
  1. Reject if a submission for the same property is already in flight
     (ErrSubmissionInProgress, before any network call)
  2. Snapshot the override book, minus any dates the caller holds back
  3. Nothing pending: no-op
  4. Promote the snapshot's dates to committed BEFORE the gateway answers
  5. Push (date, rate) pairs to the gateway under a fresh batch ID
  6. Success: keep the optimistic state, persist committed values
     Failure: Restore(snapshot), report SubmissionError

PARTIAL FAILURES:
  Not modeled. If the gateway fails, the whole batch counts as failed even
  if it applied some dates. Pushes are idempotent per date, so the retry
  simply resends them.

SEE ALSO:
  - overrides.go: Snapshot / Promote / Restore
  - ports.go: PMSGateway.SubmitOverrides, OverrideLog
*/
package rates

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubmitTarget identifies where a batch goes.
type SubmitTarget struct {
	PropertyID    PropertyID
	PMSPropertyID string
	RoomTypeID    RoomTypeID
}

// SubmitOutcome describes a finished submission. An empty Submitted slice
// means there was nothing pending. Held lists pending dates that were kept
// out of the batch.
type SubmitOutcome struct {
	BatchID   string
	Submitted []Override
	Held      []Date
}

// Submitter runs the submission pipeline. One in-flight batch per property.
type Submitter struct {
	Gateway    PMSGateway
	Log        OverrideLog // optional
	Logger     *slog.Logger
	Now        func() time.Time
	NewBatchID func() string

	mu       sync.Mutex
	inFlight map[PropertyID]bool
}

func NewSubmitter(gateway PMSGateway, log OverrideLog, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Submitter{
		Gateway:    gateway,
		Log:        log,
		Logger:     logger,
		Now:        time.Now,
		NewBatchID: uuid.NewString,
		inFlight:   make(map[PropertyID]bool),
	}
}

// InFlight reports whether a submission for the property is outstanding.
func (s *Submitter) InFlight(propertyID PropertyID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[propertyID]
}

func (s *Submitter) acquire(propertyID PropertyID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[propertyID] {
		return false
	}
	s.inFlight[propertyID] = true
	return true
}

func (s *Submitter) release(propertyID PropertyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, propertyID)
}

// Submit pushes every pending override in book to the gateway.
func (s *Submitter) Submit(ctx context.Context, target SubmitTarget, book *OverrideBook) (SubmitOutcome, error) {
	return s.SubmitExcept(ctx, target, book, nil)
}

// SubmitExcept is Submit with the dates for which hold returns true left
// pending and untouched. A nil hold submits everything.
func (s *Submitter) SubmitExcept(ctx context.Context, target SubmitTarget, book *OverrideBook, hold func(Date) bool) (SubmitOutcome, error) {
	if !s.acquire(target.PropertyID) {
		submissions.WithLabelValues("rejected").Inc()
		return SubmitOutcome{}, ErrSubmissionInProgress
	}
	defer s.release(target.PropertyID)

	snapshot := book.Snapshot()
	held := snapshot.holdBack(hold)
	if len(held) > 0 {
		s.Logger.Warn("pending overrides held back from submission",
			"property_id", target.PropertyID,
			"count", len(held),
		)
	}
	if snapshot.IsEmpty() {
		return SubmitOutcome{Held: held}, nil
	}

	batchID := s.NewBatchID()
	dates := snapshot.Dates()
	overrides := snapshot.Overrides()

	book.Promote(dates)
	book.markInFlight(dates, true)
	defer book.markInFlight(dates, false)

	err := s.Gateway.SubmitOverrides(ctx, SubmitRequest{
		PropertyID:    target.PropertyID,
		PMSPropertyID: target.PMSPropertyID,
		RoomTypeID:    target.RoomTypeID,
		BatchID:       batchID,
		Overrides:     overrides,
	})

	record := SubmissionRecord{
		BatchID:       batchID,
		PropertyID:    target.PropertyID,
		PMSPropertyID: target.PMSPropertyID,
		RoomTypeID:    target.RoomTypeID,
		Overrides:     overrides,
		Status:        SubmissionSucceeded,
		SubmittedAt:   s.Now(),
	}

	if err != nil {
		book.Restore(snapshot)
		submissions.WithLabelValues("failed").Inc()
		record.Status = SubmissionFailed
		record.Error = err.Error()
		s.record(ctx, record)
		s.Logger.Error("override submission failed, pending restored",
			"property_id", target.PropertyID,
			"batch_id", batchID,
			"count", len(overrides),
			"error", err,
		)
		return SubmitOutcome{BatchID: batchID, Held: held}, &SubmissionError{
			PropertyID: target.PropertyID,
			BatchID:    batchID,
			Dates:      dates,
			Err:        err,
		}
	}

	submissions.WithLabelValues("succeeded").Inc()
	submittedOverrides.Add(float64(len(overrides)))
	s.record(ctx, record)
	if s.Log != nil {
		if err := s.Log.SaveCommitted(ctx, target.PropertyID, overrides); err != nil {
			s.Logger.Warn("failed to persist committed overrides", "property_id", target.PropertyID, "batch_id", batchID, "error", err)
		}
	}
	s.Logger.Info("overrides submitted", "property_id", target.PropertyID, "batch_id", batchID, "count", len(overrides))
	return SubmitOutcome{BatchID: batchID, Submitted: overrides, Held: held}, nil
}

func (s *Submitter) record(ctx context.Context, record SubmissionRecord) {
	if s.Log == nil {
		return
	}
	if err := s.Log.RecordSubmission(ctx, record); err != nil {
		s.Logger.Warn("failed to record submission", "property_id", record.PropertyID, "batch_id", record.BatchID, "error", err)
	}
}
