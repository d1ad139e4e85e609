package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	expensesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settler_expenses_recorded_total",
		Help: "Number of expenses recorded, by split type.",
	}, []string{"split_type"})

	settlementsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settler_settlements_created_total",
		Help: "Number of settlements recorded.",
	})

	balanceComputeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settler_balance_compute_seconds",
		Help:    "Time spent computing group balance sheets.",
		Buckets: prometheus.DefBuckets,
	})
)
