// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package writebatch

import "github.com/prometheus/client_golang/prometheus"

// Collectors for batch execution.
var (
	BatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlrt_batches_total",
		Help: "Cumulative number of executed batches by status.",
	}, []string{"status"})
	ThunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sqlrt_batch_thunks_total",
		Help: "Cumulative number of thunks handed to the batch executor.",
	})
	BatchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "sqlrt_batch_duration_seconds",
		Help: "Time from writer checkout to the end of batch execution.",
	})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sqlrt_batch_queue_depth",
		Help: "Number of thunks waiting for a batch.",
	})
)

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// Collectors returns every collector of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{BatchesTotal, ThunksTotal, BatchDurationSeconds, QueueDepth}
}
