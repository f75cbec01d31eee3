package assist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_attempts_total",
			Help: "Generative-text provider attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assist_fallbacks_total",
			Help: "Requests answered with a static fallback after every attempt failed",
		},
		[]string{"call_site"},
	)

	attemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assist_attempt_duration_seconds",
			Help:    "Duration of single provider attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
