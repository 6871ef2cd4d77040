// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// writeMetrics writes every metric family gathered from registry to w
// in the Prometheus text exposition format.
func writeMetrics(w io.Writer, registry *prometheus.Registry, logger *slog.Logger) {
	families, err := registry.Gather()
	if err != nil {
		logger.Error("gathering metrics", "error", err)
		return
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			logger.Error("writing metrics", "error", err)
			return
		}
	}
}
