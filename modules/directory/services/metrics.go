package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory_sync",
		Subsystem: "fetch",
		Name:      "total",
		Help:      "Total number of source fetches broken down by source, entity type and result.",
	}, []string{"source", "entity_type", "result"})

	fetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "directory_sync",
		Subsystem: "fetch",
		Name:      "latency_seconds",
		Help:      "Latency distribution of source fetches including retries.",
		Buckets: []float64{
			0.01, 0.05, 0.1, 0.5,
			1, 2, 5, 10, 30,
			60, 120, 300,
		},
	}, []string{"source", "result"})

	canonicalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory_sync",
		Subsystem: "canonicalize",
		Name:      "rows_total",
		Help:      "Total number of canonicalized rows broken down by entity type and result.",
	}, []string{"entity_type", "result"})

	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory_sync",
		Subsystem: "write",
		Name:      "ops_total",
		Help:      "Total number of target store writes broken down by entity type, op and result.",
	}, []string{"entity_type", "op", "result"})

	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory_sync",
		Subsystem: "pass",
		Name:      "skipped_total",
		Help:      "Total number of skipped reconcile/prune passes broken down by reason.",
	}, []string{"entity_type", "pass", "reason"})

	exportTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "directory_sync",
		Subsystem: "quarantine",
		Name:      "exports_total",
		Help:      "Total number of quarantine exports broken down by result.",
	}, []string{"result"})
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func recordFetch(src entity.Source, t entity.Type, err error, took time.Duration) {
	result := resultLabel(err)
	fetchTotal.WithLabelValues(string(src), string(t), result).Inc()
	fetchLatency.WithLabelValues(string(src), result).Observe(took.Seconds())
}

func recordCanonicalize(t entity.Type, ok bool) {
	result := "valid"
	if !ok {
		result = "invalid"
	}
	canonicalizeTotal.WithLabelValues(string(t), result).Inc()
}

func recordWrites(t entity.Type, ops []Op, err error) {
	result := resultLabel(err)
	for _, op := range ops {
		writesTotal.WithLabelValues(string(t), string(op.Kind), result).Inc()
	}
}

func recordSkip(t entity.Type, pass, reason string) {
	skippedTotal.WithLabelValues(string(t), pass, reason).Inc()
}

func recordExport(err error) {
	exportTotal.WithLabelValues(resultLabel(err)).Inc()
}
