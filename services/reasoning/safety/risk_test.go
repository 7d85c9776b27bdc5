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
	"math"
	"testing"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

func TestScorer_WeightedSum(t *testing.T) {
	scorer := NewScorer(DefaultPolicies().Thresholds)
	spec := testSpec(t, "GET_WEATHER") // LOW base = 0.1

	score := scorer.Calculate(spec, map[string]any{"location": "Paris"}, ValidationContext{Hour: 12})

	// 0.5*0.1 + 0.3*0 + 0.2*0 = 0.05
	if math.Abs(score.Score-0.05) > 1e-9 {
		t.Errorf("score = %v, want 0.05", score.Score)
	}
	if score.Level != datatypes.RiskLow {
		t.Errorf("level = %s, want LOW", score.Level)
	}

	sum := score.Contributions.Tool + score.Contributions.Parameters + score.Contributions.Context
	if math.Abs(sum-score.Score) > 1e-9 {
		t.Errorf("contributions %v do not sum to score %v", score.Contributions, score.Score)
	}
}

func TestScorer_ThresholdTable(t *testing.T) {
	scorer := NewScorer(Thresholds{Medium: 0.25, High: 0.50, Critical: 0.75})

	cases := []struct {
		score float64
		want  datatypes.RiskLevel
	}{
		{0.0, datatypes.RiskLow},
		{0.24, datatypes.RiskLow},
		{0.25, datatypes.RiskMedium},
		{0.49, datatypes.RiskMedium},
		{0.50, datatypes.RiskHigh},
		{0.74, datatypes.RiskHigh},
		{0.75, datatypes.RiskCritical},
		{1.0, datatypes.RiskCritical},
	}
	for _, tc := range cases {
		if got := scorer.scoreToLevel(tc.score); got != tc.want {
			t.Errorf("scoreToLevel(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestScorer_ParameterSignals(t *testing.T) {
	scorer := NewScorer(DefaultPolicies().Thresholds)
	spec := testSpec(t, "DATABASE_QUERY") // HIGH base = 0.7

	// SQL keyword contributes 0.7 on the parameters axis:
	// 0.5*0.7 + 0.3*0.7 = 0.56 -> HIGH
	score := scorer.Calculate(spec, map[string]any{"query": "update users set name='x'"}, ValidationContext{Hour: 12})
	if score.Level != datatypes.RiskHigh {
		t.Errorf("level = %s (score %v), want HIGH", score.Level, score.Score)
	}
	if score.Contributions.Parameters == 0 {
		t.Error("SQL keyword should contribute parameter risk")
	}
}

func TestScorer_ContextSignals(t *testing.T) {
	scorer := NewScorer(DefaultPolicies().Thresholds)
	spec := testSpec(t, "GET_WEATHER")

	calm := scorer.Calculate(spec, nil, ValidationContext{Hour: 12})
	suspicious := scorer.Calculate(spec, nil, ValidationContext{
		FailedValidations: 6,
		RecentHighRisk:    4,
		Hour:              3,
		UnusualAction:     true,
	})

	if suspicious.Score <= calm.Score {
		t.Errorf("suspicious context (%v) should score above calm (%v)", suspicious.Score, calm.Score)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	scorer := NewScorer(DefaultPolicies().Thresholds)
	spec := testSpec(t, "SEND_EMAIL")
	params := map[string]any{"to": "a@b.com", "subject": "s", "body": "b"}
	vctx := ValidationContext{Hour: 12}

	first := scorer.Calculate(spec, params, vctx)
	second := scorer.Calculate(spec, params, vctx)
	if first != second {
		t.Errorf("identical inputs scored differently: %+v vs %+v", first, second)
	}
}

func TestScorer_ClipsToOne(t *testing.T) {
	scorer := NewScorer(DefaultPolicies().Thresholds)
	spec := &tools.Spec{Type: "ADMIN_COMMAND", Risk: datatypes.RiskCritical,
		Params: []tools.ParamSpec{{Name: "command", Type: "string", Format: tools.FormatCommand}}}

	score := scorer.Calculate(spec,
		map[string]any{"command": "rm; reboot"},
		ValidationContext{FailedValidations: 10, RecentHighRisk: 10, Hour: 2, UnusualAction: true},
	)
	if score.Score > 1.0 {
		t.Errorf("score %v exceeds 1.0", score.Score)
	}
	if score.Level != datatypes.RiskCritical {
		t.Errorf("level = %s, want CRITICAL", score.Level)
	}
}
