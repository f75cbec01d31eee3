package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	answersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_answers_total",
			Help: "Resolved questions by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	powerUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_powerups_total",
			Help: "Power-up activation attempts by effect and result",
		},
		[]string{"effect", "result"},
	)

	sessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_sessions_completed_total",
			Help: "Completed sessions by mode",
		},
		[]string{"mode"},
	)
)
