package verifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_stage_total",
			Help: "Verification pipeline stage outcomes.",
		},
		[]string{"stage", "result"},
	)
	proofBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verify_proof_bytes",
			Help:    "Size of incoming proof requests in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
	)
)

func observeStage(stage string, err error) {
	result := "ok"
	if err != nil {
		result = "fail"
	}
	stageTotal.WithLabelValues(stage, result).Inc()
}
