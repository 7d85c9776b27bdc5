// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func TestCatalog_LookupCaseInsensitive(t *testing.T) {
	c := mustCatalog(t)

	for _, name := range []string{"GET_WEATHER", "get_weather", "Get_Weather", "  GET_WEATHER  "} {
		spec, err := c.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		// Canonical name is preserved regardless of input casing.
		if spec.Type != datatypes.ToolGetWeather {
			t.Errorf("Lookup(%q) = %s, want GET_WEATHER", name, spec.Type)
		}
	}
}

func TestCatalog_LookupUnknownToolNoFuzzyMatch(t *testing.T) {
	c := mustCatalog(t)

	// Near-misses must NOT resolve; the loop learns from the rejection.
	for _, name := range []string{"GET_WETHER", "WEATHER", "GETWEATHER", "", "open application"} {
		_, err := c.Lookup(name)
		var unknownErr *UnknownToolError
		if !errors.As(err, &unknownErr) {
			t.Errorf("Lookup(%q) should return UnknownToolError, got %v", name, err)
		}
	}
}

func TestCatalog_ManifestListsEveryTool(t *testing.T) {
	c := mustCatalog(t)
	manifest := c.Manifest()

	for _, spec := range c.Specs() {
		if !strings.Contains(manifest, string(spec.Type)) {
			t.Errorf("manifest missing tool %s", spec.Type)
		}
	}
}

func TestCatalog_CandidatesKnownAndUnknownIntents(t *testing.T) {
	c := mustCatalog(t)

	got := c.Candidates("open_application_and_search")
	if len(got) != 2 || got[0] != datatypes.ToolOpenApplication || got[1] != datatypes.ToolWebSearch {
		t.Errorf("candidates for open_application_and_search = %v", got)
	}

	if got := c.Candidates("no_such_intent"); len(got) != 0 {
		t.Errorf("unknown intent should have no candidates, got %v", got)
	}
}

func TestCatalog_ValidateParameters(t *testing.T) {
	c := mustCatalog(t)

	if err := c.ValidateParameters(datatypes.ToolGetWeather, map[string]any{"location": "Paris"}); err != nil {
		t.Errorf("valid parameters rejected: %v", err)
	}

	// Missing required parameter.
	if err := c.ValidateParameters(datatypes.ToolGetWeather, map[string]any{}); err == nil {
		t.Error("missing required parameter should fail schema validation")
	}

	// Wrong type.
	if err := c.ValidateParameters(datatypes.ToolVolumeControl, map[string]any{"level": "loud"}); err == nil {
		t.Error("string for integer parameter should fail schema validation")
	}

	// Unknown field.
	if err := c.ValidateParameters(datatypes.ToolGetWeather, map[string]any{"location": "Paris", "bogus": 1}); err == nil {
		t.Error("unknown field should fail schema validation")
	}

	// Integer-typed Go value must validate against "integer".
	if err := c.ValidateParameters(datatypes.ToolVolumeControl, map[string]any{"level": 50}); err != nil {
		t.Errorf("int value rejected for integer parameter: %v", err)
	}
}

func TestCatalog_DestructiveToolsAreResolvable(t *testing.T) {
	c := mustCatalog(t)

	// Destructive tools resolve so safety can reject them with a reason,
	// rather than the loop treating them as typos.
	spec, err := c.Lookup("SYSTEM_SHUTDOWN")
	if err != nil {
		t.Fatalf("Lookup(SYSTEM_SHUTDOWN): %v", err)
	}
	if spec.Risk != datatypes.RiskCritical {
		t.Errorf("SYSTEM_SHUTDOWN risk = %s, want CRITICAL", spec.Risk)
	}
}
