package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "souqra_reconcile_runs_total",
		Help: "Product mutation requests by outcome.",
	}, []string{"outcome"})

	reconcileCartsPatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "souqra_reconcile_carts_patched_total",
		Help: "Carts patched by committed reconciliations.",
	})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "souqra_reconcile_duration_seconds",
		Help:    "Wall time of a reconciliation transaction.",
		Buckets: prometheus.DefBuckets,
	})
)
