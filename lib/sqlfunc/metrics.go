// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import "github.com/prometheus/client_golang/prometheus"

// Collectors for application function calls, labeled by function name.
var (
	InvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlrt_function_invocations_total",
		Help: "Cumulative number of application function calls made by the engine.",
	}, []string{"function"})
	FailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlrt_function_failures_total",
		Help: "Cumulative number of application function calls that returned an error or panicked.",
	}, []string{"function"})
	RegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlrt_function_registrations_total",
		Help: "Cumulative number of registry mutations by operation.",
	}, []string{"op"})
)

// Collectors returns every collector of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{InvocationsTotal, FailuresTotal, RegistrationsTotal}
}
