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
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

// Risk score weights. The tool's base class dominates; parameter content and
// user context refine it.
const (
	weightTool       = 0.5
	weightParameters = 0.3
	weightContext    = 0.2
)

// ValidationContext carries the user-history signals that feed contextual
// risk. All fields are derived from the audit log and an injectable clock,
// so identical inputs always score identically.
type ValidationContext struct {
	// FailedValidations is the count of blocked outcomes among the user's
	// last ten validations.
	FailedValidations int

	// RecentHighRisk is the count of HIGH/CRITICAL outcomes among the
	// user's last twenty validations.
	RecentHighRisk int

	// Hour is the local hour of day, 0-23.
	Hour int

	// UnusualAction flags an action atypical for the user.
	UnusualAction bool
}

// Scorer computes risk scores against a threshold table.
//
// Thread Safety: Read-only after construction; safe for concurrent use.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer creates a scorer with the given thresholds.
func NewScorer(thresholds Thresholds) *Scorer {
	return &Scorer{thresholds: thresholds}
}

// Calculate computes the risk score for one tool call.
//
// Description:
//
//	score = 0.5·tool + 0.3·parameters + 0.2·context, clipped to [0,1].
//	The level is derived by the threshold table, checked top-down.
//
// Inputs:
//   - spec: The resolved tool (base risk class).
//   - params: The sanitized parameters.
//   - vctx: User-history context signals.
//
// Outputs:
//   - RiskScore: Level, score, weighted contributions, and reasoning text.
func (s *Scorer) Calculate(spec *tools.Spec, params map[string]any, vctx ValidationContext) RiskScore {
	contributions := Contributions{
		Tool:       spec.Risk.BaseScore() * weightTool,
		Parameters: parameterRisk(params) * weightParameters,
		Context:    contextualRisk(vctx) * weightContext,
	}

	score := contributions.Tool + contributions.Parameters + contributions.Context
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	level := s.scoreToLevel(score)

	return RiskScore{
		Level:         level,
		Score:         score,
		Contributions: contributions,
		Reasoning:     reasoning(spec.Type, level, contributions),
	}
}

// scoreToLevel maps a score to its risk level, checking thresholds top-down.
func (s *Scorer) scoreToLevel(score float64) datatypes.RiskLevel {
	switch {
	case score >= s.thresholds.Critical:
		return datatypes.RiskCritical
	case score >= s.thresholds.High:
		return datatypes.RiskHigh
	case score >= s.thresholds.Medium:
		return datatypes.RiskMedium
	default:
		return datatypes.RiskLow
	}
}

// parameterRisk scores the riskiest signal found in the parameter values.
func parameterRisk(params map[string]any) float64 {
	var factors []float64

	for key, value := range params {
		switch v := value.(type) {
		case string:
			lower := strings.ToLower(v)

			switch strings.ToLower(key) {
			case "path", "file_path", "directory", "filename":
				for _, marker := range []string{"..", "~", "/etc", "/var", "c:\\windows"} {
					if strings.Contains(lower, marker) {
						factors = append(factors, 0.5)
						break
					}
				}
			case "command", "cmd", "script", "shell":
				if strings.ContainsAny(v, ";|&`$") {
					factors = append(factors, 0.6)
				}
			case "url", "link", "website", "uri":
				if strings.Contains(lower, "localhost") || strings.Contains(v, "127.0.0.1") {
					factors = append(factors, 0.4)
				}
			case "query", "sql", "statement":
				for _, kw := range []string{"drop", "delete", "insert", "update", "exec"} {
					if strings.Contains(lower, kw) {
						factors = append(factors, 0.7)
						break
					}
				}
			}

			if len(v) > 5000 {
				factors = append(factors, 0.3)
			}

		case float64:
			if v > 1_000_000 {
				factors = append(factors, 0.3)
			}
		case int:
			if v > 1_000_000 {
				factors = append(factors, 0.3)
			}
		}
	}

	max := 0.0
	for _, f := range factors {
		if f > max {
			max = f
		}
	}
	return max
}

// contextualRisk scores user-history and time-of-day signals.
func contextualRisk(vctx ValidationContext) float64 {
	risk := 0.0
	if vctx.FailedValidations > 5 {
		risk += 0.3
	}
	if vctx.RecentHighRisk > 3 {
		risk += 0.2
	}
	if vctx.Hour < 6 || vctx.Hour > 23 {
		risk += 0.1
	}
	if vctx.UnusualAction {
		risk += 0.2
	}
	if risk > 1 {
		risk = 1
	}
	return risk
}

// reasoning renders the human-readable risk explanation, largest
// contribution first.
func reasoning(tool datatypes.ToolType, level datatypes.RiskLevel, c Contributions) string {
	type factor struct {
		name  string
		value float64
	}
	factors := []factor{
		{"tool_type", c.Tool},
		{"parameters", c.Parameters},
		{"context", c.Context},
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].value > factors[j].value })

	lines := []string{fmt.Sprintf("Tool '%s' assessed as %s risk.", tool, level)}
	for _, f := range factors {
		if f.value > 0.05 {
			lines = append(lines, fmt.Sprintf("  - %s: %d%% contribution", f.name, int(f.value*100)))
		}
	}
	return strings.Join(lines, "\n")
}
