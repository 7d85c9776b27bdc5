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
	"context"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// Dispatcher turns an accepted tool call into an observation string.
//
// Description:
//
//	This is the single integration seam between the reasoning core and
//	the action executors. The core ships with SynthesizeObservation so it
//	can be developed and tested without executors; a host wiring the full
//	system swaps in a dispatcher that calls the appropriate executor and
//	stringifies its result. Nothing else changes.
type Dispatcher func(ctx context.Context, tool datatypes.ToolType, params map[string]any) (string, error)

// SynthesizeObservation is the default dispatcher: a canonical, fully
// deterministic observation. encoding/json sorts map keys, so identical
// parameters always yield identical observations.
func SynthesizeObservation(_ context.Context, tool datatypes.ToolType, params map[string]any) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encoding parameters for observation: %w", err)
	}
	return fmt.Sprintf("%s: executed with parameters %s", tool, encoded), nil
}
