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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// FormatPlanSummary renders a plan as a human-readable summary for logs and
// the CLI.
func FormatPlanSummary(plan *datatypes.ExecutionPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Execution Plan for: %s\n", plan.RawQuery)
	fmt.Fprintf(&sb, "Intent: %s\n", plan.IntentName)
	fmt.Fprintf(&sb, "Iterations: %d\n", plan.Iterations)
	fmt.Fprintf(&sb, "Success: %t\n", plan.Success)

	if len(plan.Steps) > 0 {
		sb.WriteString("\nSteps:\n")
		for i, step := range plan.Steps {
			fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, step.Tool, step.Status)
			if step.Thought != "" {
				fmt.Fprintf(&sb, "   Thought: %s\n", clip(step.Thought, 100))
			}
			fmt.Fprintf(&sb, "   Params: %v\n", step.Parameters)
			if step.Observation != "" {
				fmt.Fprintf(&sb, "   Result: %s\n", clip(step.Observation, 100))
			}
		}
	}

	if plan.FinalAnswer != "" {
		fmt.Fprintf(&sb, "\nFinal Answer: %s\n", plan.FinalAnswer)
	}
	if plan.Error != nil {
		fmt.Fprintf(&sb, "\nError: %s\n", plan.Error.Error())
	}
	return sb.String()
}

// clip truncates s to n bytes with an ellipsis marker.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
