package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by kind and outcome",
		},
		[]string{"op", "outcome"},
	)

	xpMovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_xp_total",
			Help: "XP moved through the ledger",
		},
		[]string{"direction"},
	)

	reversalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_journal_reversals_total",
			Help: "Journal entries reversed after the store refused the update",
		},
	)
)
