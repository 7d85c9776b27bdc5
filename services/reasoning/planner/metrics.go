// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// plansTotal counts finished plans by outcome.
	// Labels: outcome (success, iteration_limit, llm_error, cancelled, abuse, unconfirmed, blocked)
	plansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "planner",
		Name:      "plans_total",
		Help:      "Finished plans by outcome",
	}, []string{"outcome"})

	// planIterations observes iterations used per plan.
	planIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reasoning",
		Subsystem: "planner",
		Name:      "iterations",
		Help:      "Iterations used per plan",
		Buckets:   []float64{1, 2, 3, 5, 7, 10},
	})

	// recoveredErrorsTotal counts recoverable loop errors by kind.
	// Labels: kind (parse_error, unknown_tool, missing_parameters)
	recoveredErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "planner",
		Name:      "recovered_errors_total",
		Help:      "Recoverable loop errors converted to observations",
	}, []string{"kind"})

	// scratchpadDroppedTotal counts scratchpad entries dropped for prompt fit.
	scratchpadDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reasoning",
		Subsystem: "planner",
		Name:      "scratchpad_dropped_total",
		Help:      "Scratchpad entries dropped to fit the context budget",
	})
)
