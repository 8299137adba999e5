package rates

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// calendarLoads counts calendar loads by outcome: ok, feed_failure, stale.
	calendarLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_engine_calendar_loads_total",
		Help: "Total number of calendar loads by outcome",
	}, []string{"outcome"})

	// calendarLoadDuration tracks how long the four-feed fetch takes.
	calendarLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rate_engine_calendar_load_duration_seconds",
		Help:    "Time taken to fetch and merge a calendar",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// guardrailClamps counts overrides raised to the guardrail floor.
	guardrailClamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_engine_guardrail_clamps_total",
		Help: "Total number of override edits clamped to the guardrail floor",
	})

	// submissions counts submission attempts by outcome: succeeded, failed, rejected.
	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_engine_submissions_total",
		Help: "Total number of override submissions by outcome",
	}, []string{"outcome"})

	// submittedOverrides counts dates pushed to the PMS and acknowledged.
	submittedOverrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_engine_submitted_overrides_total",
		Help: "Total number of override dates acknowledged by the PMS",
	})
)
