// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/sqlrt/lib/sqlfunc"
)

// Collectors for pool checkout and the per-connection statement cache.
var (
	CheckoutWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlrt_pool_checkout_wait_seconds",
		Help:    "Time spent waiting for a free connection.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"role"})
	StatementCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlrt_statement_cache_total",
		Help: "Cumulative number of statement cache lookups by result (hit, miss, evict).",
	}, []string{"result"})
	EngineErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlrt_engine_errors_total",
		Help: "Cumulative number of engine errors by primary result code.",
	}, []string{"code"})
)

// Collectors returns every collector of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{CheckoutWaitSeconds, StatementCacheTotal, EngineErrorsTotal}
}

// RegisterMetrics registers the collectors of this package and of
// sqlfunc with registerer. Collectors that are already registered are
// skipped.
func RegisterMetrics(registerer prometheus.Registerer) error {
	var errs []error
	for _, collector := range append(Collectors(), sqlfunc.Collectors()...) {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
