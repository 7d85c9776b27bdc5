// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contextbuilder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchesTotal counts memory-service fetches by field and status.
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "context",
		Name:      "fetches_total",
		Help:      "Memory-service fetches by field and status",
	}, []string{"field", "status"})

	// fetchLatencySeconds measures per-fetch latency by field.
	fetchLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reasoning",
		Subsystem: "context",
		Name:      "fetch_latency_seconds",
		Help:      "Memory-service fetch latency by field",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3},
	}, []string{"field"})
)

// recordFetch records one memory-service fetch.
func recordFetch(field string, durationSec float64, err error) {
	status := "success"
	if err != nil {
		status = "degraded"
	}
	fetchesTotal.WithLabelValues(field, status).Inc()
	fetchLatencySeconds.WithLabelValues(field).Observe(durationSec)
}
