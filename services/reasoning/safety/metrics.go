// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// validationsTotal counts validation outcomes by tool and status.
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "safety",
		Name:      "validations_total",
		Help:      "Total safety validations by tool and status",
	}, []string{"tool", "status"})

	// blockedTotal counts blocked calls by the component that blocked them.
	// Labels: blocked_by (block_list, allow_list, sanitizer, rate_limit, confirmation, abuse)
	blockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "safety",
		Name:      "blocked_total",
		Help:      "Total blocked tool calls by blocking component",
	}, []string{"blocked_by"})

	// riskScore observes computed risk scores by tool.
	riskScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reasoning",
		Subsystem: "safety",
		Name:      "risk_score",
		Help:      "Computed risk scores by tool",
		Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
	}, []string{"tool"})

	// confirmationsTotal counts confirmation token lifecycle events.
	// Labels: event (issued, redeemed)
	confirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "safety",
		Name:      "confirmations_total",
		Help:      "Confirmation token events",
	}, []string{"event"})
)

// recordValidation records one validation outcome.
func recordValidation(tool string, status Status, score float64) {
	validationsTotal.WithLabelValues(tool, string(status)).Inc()
	riskScore.WithLabelValues(tool).Observe(score)
}

// recordBlocked records which component blocked a call.
func recordBlocked(blockedBy string) {
	blockedTotal.WithLabelValues(blockedBy).Inc()
}

// recordConfirmation records a token lifecycle event.
func recordConfirmation(event string) {
	confirmationsTotal.WithLabelValues(event).Inc()
}
