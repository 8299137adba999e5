/*
errors.go - Centralized error types for the rate engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses; nothing here is fatal to the
  process. The worst case is a refused action with an explanatory error.

ERROR CATEGORIES:
  1. Feed errors - a calendar source failed (whole load fails, no partial calendar)
  2. Calculation errors - inversion undefined (recoverable, handled inline)
  3. Edit errors - frozen dates, dates outside the loaded window
  4. Submission errors - gateway push failed, or another push is in flight

GUARDRAILS:
  A guardrail violation is NOT an error. The enforcer clamps and the caller
  receives a GuardrailWarning alongside the successful edit.

SEE ALSO:
  - calendar.go: Produces FeedError
  - submission.go: Produces SubmissionError
  - api/handlers.go: Maps errors to HTTP statuses
*/
package rates

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFeedFailure is returned when any calendar source fails or times out.
	ErrFeedFailure = errors.New("calendar feed failed")

	// ErrStaleLoad is returned when a newer load for the same property started
	// while this one was in flight. The stale result is discarded.
	ErrStaleLoad = errors.New("calendar load superseded by a newer load")

	// ErrCalendarNotLoaded is returned when an edit targets a property whose
	// calendar has never loaded successfully.
	ErrCalendarNotLoaded = errors.New("calendar not loaded")

	// ErrDateOutsideCalendar is returned when an edit targets a date the loaded
	// calendar does not cover.
	ErrDateOutsideCalendar = errors.New("date outside loaded calendar")

	// ErrFrozenDate is returned when an edit targets a frozen date.
	ErrFrozenDate = errors.New("date is frozen")

	// ErrInversionUndefined is returned when the forward factor is zero, so no
	// base rate can produce the requested sell rate.
	ErrInversionUndefined = errors.New("cannot satisfy target: rate factor is zero")

	// ErrInvalidRate is returned for negative rates.
	ErrInvalidRate = errors.New("rate must not be negative")

	// ErrSubmissionFailed is returned when the gateway rejects a batch push.
	ErrSubmissionFailed = errors.New("override submission failed")

	// ErrSubmissionInProgress is returned when a submission for the same
	// property is already in flight. Retry after it resolves.
	ErrSubmissionInProgress = errors.New("submission already in progress")

	// ErrProfileNotFound is returned when no calculator profile is stored.
	ErrProfileNotFound = errors.New("calculator profile not found")

	// ErrInvalidProfile is returned when a profile fails validation.
	ErrInvalidProfile = errors.New("invalid calculator profile")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FeedName identifies one of the four calendar sources.
type FeedName string

const (
	FeedPreview FeedName = "preview"
	FeedMetrics FeedName = "metrics"
	FeedPickup  FeedName = "pickup"
	FeedProfile FeedName = "profile"
)

// FeedError reports which source broke a calendar load.
type FeedError struct {
	Feed       FeedName
	PropertyID PropertyID
	Err        error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("%s feed failed for property %s: %v", e.Feed, e.PropertyID, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *FeedError) Unwrap() []error {
	return []error{ErrFeedFailure, e.Err}
}

// SubmissionError reports a failed batch push. The whole batch is treated as
// failed even if the gateway applied part of it.
type SubmissionError struct {
	PropertyID PropertyID
	BatchID    string
	Dates      []Date
	Err        error
}

func (e *SubmissionError) Error() string {
	dates := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		dates[i] = d.String()
	}
	return fmt.Sprintf("submission %s for property %s failed (%s): %v",
		e.BatchID, e.PropertyID, strings.Join(dates, ", "), e.Err)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same request may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSubmissionInProgress) ||
		errors.Is(err, ErrStaleLoad) ||
		errors.Is(err, ErrFeedFailure) ||
		errors.Is(err, ErrSubmissionFailed)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrFrozenDate) ||
		errors.Is(err, ErrDateOutsideCalendar) ||
		errors.Is(err, ErrInversionUndefined) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidProfile)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrCalendarNotLoaded)
}
