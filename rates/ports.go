/*
ports.go - Interfaces to the engine's external collaborators

PURPOSE:
  The engine never talks to the network or a database directly. Everything
  outside the calculation and override state lives behind these interfaces:
  the PMS gateway, the report feeds and the asset configuration store.

KEY INTERFACES:
  PMSGateway:   Preview rates and batch override push
  MetricsFeed:  Daily occupancy/ADR figures
  PickupFeed:   Daily bookings delta vs. a lookback snapshot
  ConfigStore:  Calculator profile per property (asset)
  OverrideLog:  Optional persistence of committed overrides and submission attempts

IDEMPOTENCY:
  SubmitOverrides must be idempotent per date: re-sending the same override
  is safe. Implementations receive a batch ID usable as an idempotency key.

IMPLEMENTATIONS:
  - pms/client.go: HTTP gateway and feeds
  - pms/sandbox.go: In-memory gateway and feeds for demos and tests
  - store/sqlite/sqlite.go: ConfigStore and OverrideLog
  - rates/store/memory.go: In-memory ConfigStore and OverrideLog
*/
package rates

import (
	"context"
	"time"
)

// SubmitRequest identifies the target of a batch push.
type SubmitRequest struct {
	PropertyID    PropertyID
	PMSPropertyID string
	RoomTypeID    RoomTypeID
	BatchID       string
	Overrides     []Override
}

// PMSGateway is the property-management system as seen by the engine.
type PMSGateway interface {
	GetPreviewRates(ctx context.Context, propertyID PropertyID, baseRoomTypeID RoomTypeID, start Date, days int) ([]PreviewDay, error)
	SubmitOverrides(ctx context.Context, req SubmitRequest) error
}

// MetricsFeed returns daily figures for [start, end].
type MetricsFeed interface {
	GetDailyMetrics(ctx context.Context, propertyID PropertyID, start, end Date) ([]DailyMetrics, error)
}

// PickupFeed returns pickup per date for [start, end] vs. a snapshot lookbackDays old.
type PickupFeed interface {
	GetDailyPickup(ctx context.Context, propertyID PropertyID, start, end Date, lookbackDays PickupWindow) ([]DailyPickup, error)
}

// ConfigStore holds calculator profiles. GetConfig returns ErrProfileNotFound
// when nothing has been saved for the asset.
type ConfigStore interface {
	GetConfig(ctx context.Context, propertyID PropertyID) (CalculatorProfile, error)
	SaveConfig(ctx context.Context, propertyID PropertyID, profile CalculatorProfile) error
}

// =============================================================================
// OVERRIDE LOG - Optional persistence of submission outcomes
// =============================================================================

type SubmissionStatus string

const (
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// SubmissionRecord is one audited submission attempt.
type SubmissionRecord struct {
	BatchID       string
	PropertyID    PropertyID
	PMSPropertyID string
	RoomTypeID    RoomTypeID
	Overrides     []Override
	Status        SubmissionStatus
	Error         string
	SubmittedAt   time.Time
}

// OverrideLog persists what the PMS has acknowledged. Append-only for
// submissions; committed overrides are upserted per date.
type OverrideLog interface {
	SaveCommitted(ctx context.Context, propertyID PropertyID, overrides []Override) error
	LoadCommitted(ctx context.Context, propertyID PropertyID) ([]Override, error)
	RecordSubmission(ctx context.Context, record SubmissionRecord) error
	ListSubmissions(ctx context.Context, propertyID PropertyID, limit int) ([]SubmissionRecord, error)
}
