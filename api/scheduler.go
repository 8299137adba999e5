/*
scheduler.go - Background calendar refresh

PURPOSE:
  Periodically reloads every property that has a calendar, so preview
  rates, occupancy and pickup do not go stale while an operator works.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Reloads reuse each property's last load request (window, pickup)
  - A failed reload keeps the previous calendar; it is logged and retried
    on the next tick
  - A reload superseded by an operator's own load is not an error

USAGE:
  scheduler := NewRefreshScheduler(desk, logger)
  scheduler.Interval = 15 * time.Minute
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/rate-engine/rates"
)

// RefreshScheduler reloads loaded calendars on a timer.
type RefreshScheduler struct {
	Desk     *rates.Desk
	Interval time.Duration
	Enabled  bool
	Timeout  time.Duration // per property reload
	Logger   *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(desk *rates.Desk, logger *slog.Logger) *RefreshScheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RefreshScheduler{
		Desk:     desk,
		Interval: 15 * time.Minute,
		Enabled:  true,
		Timeout:  time.Minute,
		Logger:   logger,
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("calendar refresh disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("calendar refresh started", "interval", rs.Interval)
}

// Stop stops the scheduler and waits for an in-progress refresh.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.Logger.Info("calendar refresh stopped")
}

func (rs *RefreshScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()
	for {
		select {
		case <-ticker.C:
			rs.RefreshAll(context.Background())
		case <-stop:
			return
		}
	}
}

// RefreshAll reloads every loaded property once and returns how many succeeded.
func (rs *RefreshScheduler) RefreshAll(ctx context.Context) int {
	refreshed := 0
	for _, pid := range rs.Desk.LoadedProperties() {
		reloadCtx, cancel := context.WithTimeout(ctx, rs.Timeout)
		_, err := rs.Desk.Reload(reloadCtx, pid)
		cancel()

		switch {
		case err == nil:
			refreshed++
		case errors.Is(err, rates.ErrStaleLoad):
			rs.Logger.Debug("refresh superseded by a newer load", "property_id", pid)
		default:
			rs.Logger.Warn("calendar refresh failed, keeping previous calendar", "property_id", pid, "error", err)
		}
	}
	return refreshed
}
