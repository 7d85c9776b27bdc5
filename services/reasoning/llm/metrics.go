// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// generationsTotal counts adapter calls by provider and status.
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "llm",
		Name:      "generations_total",
		Help:      "Total LLM generation calls by provider and status",
	}, []string{"provider", "status"})

	// generationLatencySeconds measures end-to-end generation latency.
	generationLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reasoning",
		Subsystem: "llm",
		Name:      "generation_latency_seconds",
		Help:      "LLM generation latency by provider",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})

	// generationTokensTotal counts completion tokens by provider.
	generationTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "llm",
		Name:      "generation_tokens_total",
		Help:      "Total completion tokens by provider",
	}, []string{"provider"})
)

// recordGeneration records one adapter call.
func recordGeneration(provider, status string, durationSec float64, tokens int) {
	generationsTotal.WithLabelValues(provider, status).Inc()
	generationLatencySeconds.WithLabelValues(provider).Observe(durationSec)
	if tokens > 0 {
		generationTokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
}
