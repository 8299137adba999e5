/*
Package pms talks to the property-management system.

PURPOSE:
  Client implements rates.PMSGateway, rates.MetricsFeed and rates.PickupFeed
  over the PMS's JSON HTTP API. Sandbox implements the same ports in memory
  for demos and tests.

ENDPOINTS:
  GET  /properties/{id}/preview-rates?room_type_id=&start=&days=
  GET  /properties/{id}/metrics?start=&end=
  GET  /properties/{id}/pickup?start=&end=&lookback_days=
  POST /properties/{pms_id}/rate-overrides     (Idempotency-Key: batch ID)

RESILIENCE:
  - Outbound requests share a token-bucket limiter
  - 429 and 5xx are retried with exponential backoff and jitter; 429 honors
    Retry-After. Other 4xx fail immediately.
  - Override pushes carry the batch ID as Idempotency-Key, so a retried
    POST cannot double-apply.
*/
package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rate-engine/rates"
	"golang.org/x/time/rate"
)

// Config configures the HTTP client.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// DefaultConfig returns conservative limits for a shared PMS account.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
		MaxRetries:        3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
	}
}

// Client is the HTTP implementation of the PMS ports.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	Limiter *rate.Limiter
	Logger  *slog.Logger

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("pms: base url not configured")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("pms: invalid base url: %w", err)
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		HTTP:           &http.Client{Timeout: cfg.Timeout},
		BaseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:         cfg.APIKey,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		Logger:         logger,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}, nil
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type previewDayJSON struct {
	Date         rates.Date       `json:"date"`
	LiveRate     *decimal.Decimal `json:"live_rate"`
	PreviewRate  decimal.Decimal  `json:"preview_rate"`
	Source       string           `json:"source"`
	IsFrozen     bool             `json:"is_frozen"`
	GuardrailMin decimal.Decimal  `json:"guardrail_min"`
	FloorActive  bool             `json:"floor_active"`
}

type metricsJSON struct {
	Date        rates.Date      `json:"date"`
	RoomsSold   int             `json:"rooms_sold"`
	RoomsUnsold int             `json:"rooms_unsold"`
	ADR         decimal.Decimal `json:"adr"`
}

type pickupJSON struct {
	Date   rates.Date `json:"date"`
	Pickup int        `json:"pickup"`
}

type overrideJSON struct {
	Date rates.Date      `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}

type submitJSON struct {
	BatchID    string         `json:"batch_id"`
	PropertyID string         `json:"property_id"`
	RoomTypeID string         `json:"room_type_id,omitempty"`
	Overrides  []overrideJSON `json:"overrides"`
}

// =============================================================================
// PORTS
// =============================================================================

func (c *Client) GetPreviewRates(ctx context.Context, propertyID rates.PropertyID, baseRoomTypeID rates.RoomTypeID, start rates.Date, days int) ([]rates.PreviewDay, error) {
	q := url.Values{}
	q.Set("room_type_id", string(baseRoomTypeID))
	q.Set("start", start.String())
	q.Set("days", strconv.Itoa(days))

	var body []previewDayJSON
	if err := c.do(ctx, http.MethodGet, propertyPath(string(propertyID), "preview-rates"), q, nil, "", &body); err != nil {
		return nil, err
	}
	out := make([]rates.PreviewDay, len(body))
	for i, p := range body {
		out[i] = rates.PreviewDay{
			Date:         p.Date,
			LiveRate:     p.LiveRate,
			PreviewRate:  p.PreviewRate,
			Source:       parseSource(p.Source),
			IsFrozen:     p.IsFrozen,
			GuardrailMin: p.GuardrailMin,
			FloorActive:  p.FloorActive,
		}
	}
	return out, nil
}

func (c *Client) GetDailyMetrics(ctx context.Context, propertyID rates.PropertyID, start, end rates.Date) ([]rates.DailyMetrics, error) {
	q := url.Values{}
	q.Set("start", start.String())
	q.Set("end", end.String())

	var body []metricsJSON
	if err := c.do(ctx, http.MethodGet, propertyPath(string(propertyID), "metrics"), q, nil, "", &body); err != nil {
		return nil, err
	}
	out := make([]rates.DailyMetrics, len(body))
	for i, m := range body {
		out[i] = rates.DailyMetrics{Period: m.Date, RoomsSold: m.RoomsSold, RoomsUnsold: m.RoomsUnsold, ADR: m.ADR}
	}
	return out, nil
}

func (c *Client) GetDailyPickup(ctx context.Context, propertyID rates.PropertyID, start, end rates.Date, lookbackDays rates.PickupWindow) ([]rates.DailyPickup, error) {
	q := url.Values{}
	q.Set("start", start.String())
	q.Set("end", end.String())
	q.Set("lookback_days", strconv.Itoa(int(lookbackDays)))

	var body []pickupJSON
	if err := c.do(ctx, http.MethodGet, propertyPath(string(propertyID), "pickup"), q, nil, "", &body); err != nil {
		return nil, err
	}
	out := make([]rates.DailyPickup, len(body))
	for i, p := range body {
		out[i] = rates.DailyPickup{Date: p.Date, Pickup: p.Pickup}
	}
	return out, nil
}

// SubmitOverrides pushes a batch. The PMS property ID falls back to the
// engine's property ID when the asset has no separate PMS identifier.
func (c *Client) SubmitOverrides(ctx context.Context, req rates.SubmitRequest) error {
	pmsID := req.PMSPropertyID
	if pmsID == "" {
		pmsID = string(req.PropertyID)
	}
	payload := submitJSON{
		BatchID:    req.BatchID,
		PropertyID: pmsID,
		RoomTypeID: string(req.RoomTypeID),
		Overrides:  make([]overrideJSON, len(req.Overrides)),
	}
	for i, o := range req.Overrides {
		payload.Overrides[i] = overrideJSON{Date: o.Date, Rate: o.Rate}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, propertyPath(pmsID, "rate-overrides"), nil, body, req.BatchID, nil)
}

// parseSource maps the wire tag onto a RateSource regardless of case.
// Unknown tags pass through unchanged.
func parseSource(s string) rates.RateSource {
	for _, known := range []rates.RateSource{rates.SourceAI, rates.SourceManual, rates.SourceExternal} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return rates.RateSource(s)
}

func propertyPath(propertyID, resource string) string {
	return "/properties/" + url.PathEscape(propertyID) + "/" + resource
}

// =============================================================================
// TRANSPORT
// =============================================================================

// StatusError is a non-2xx answer from the PMS.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pms %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// RetryError is returned when every attempt failed with a retryable error.
type RetryError struct {
	Path     string
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("pms %s failed after %d attempts: %v", e.Path, e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

// IsRetryableStatus reports whether a status is worth another attempt: 429 and 5xx.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, idempotencyKey string, out any) error {
	var last error
	attempts := c.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt-1, last)
			c.Logger.Warn("retrying pms request", "method", method, "path", path, "attempt", attempt+1, "wait", wait, "error", last)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.once(ctx, method, path, query, body, idempotencyKey, out)
		if err == nil {
			return nil
		}
		last = err
		if !retryable(ctx, err) {
			return err
		}
	}
	return &RetryError{Path: path, Attempts: attempts, Last: last}
}

func (c *Client) once(ctx context.Context, method, path string, query url.Values, body []byte, idempotencyKey string, out any) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retryAfterError{
			StatusError: &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))},
			retryAfter:  resp.Header.Get("Retry-After"),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pms %s %s: decode response: %w", method, path, err)
	}
	return nil
}

// retryAfterError carries the Retry-After header alongside the status.
type retryAfterError struct {
	*StatusError
	retryAfter string
}

func (e *retryAfterError) Unwrap() error { return e.StatusError }

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return IsRetryableStatus(se.Status)
	}
	// Transport errors (connection reset, timeout) are retried.
	var ue *url.Error
	return errors.As(err, &ue)
}

// backoff is initial * 2^attempt capped at max, plus up to 25% jitter.
// A 429 with Retry-After in seconds waits that long instead.
func (c *Client) backoff(attempt int, last error) time.Duration {
	var ra *retryAfterError
	if errors.As(last, &ra) && ra.Status == http.StatusTooManyRequests && ra.retryAfter != "" {
		if seconds, err := strconv.Atoi(ra.retryAfter); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	delay := float64(c.initialBackoff) * math.Pow(2, float64(attempt))
	delay = math.Min(delay, float64(c.maxBackoff))
	return time.Duration(delay + rand.Float64()*0.25*delay)
}

var (
	_ rates.PMSGateway  = (*Client)(nil)
	_ rates.MetricsFeed = (*Client)(nil)
	_ rates.PickupFeed  = (*Client)(nil)
)
