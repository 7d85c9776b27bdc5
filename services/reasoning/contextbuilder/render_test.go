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
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

func sampleContext() datatypes.Context {
	return datatypes.Context{
		Preferences: map[string]any{"timezone": "Europe/Paris", "language": "en"},
		RecentTurns: []datatypes.Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
		Knowledge: []datatypes.KnowledgeItem{
			{Text: "likes jazz", Relevance: 0.8},
		},
		Episodes: []datatypes.Episode{
			{Text: "asked about concerts", Similarity: 0.7},
		},
	}
}

func TestRenderContext_SectionOrder(t *testing.T) {
	out := RenderContext(sampleContext(), 1500)

	prefs := strings.Index(out, "User Preferences:")
	turns := strings.Index(out, "Recent Conversation:")
	knowledge := strings.Index(out, "Relevant Knowledge:")
	episodes := strings.Index(out, "Related Past Events:")

	for name, idx := range map[string]int{
		"preferences": prefs, "turns": turns, "knowledge": knowledge, "episodes": episodes,
	} {
		if idx < 0 {
			t.Fatalf("section %s missing:\n%s", name, out)
		}
	}
	if !(prefs < turns && turns < knowledge && knowledge < episodes) {
		t.Errorf("sections out of order: %d %d %d %d", prefs, turns, knowledge, episodes)
	}
}

func TestRenderContext_EmptyContext(t *testing.T) {
	if out := RenderContext(datatypes.Context{}, 1500); out != "" {
		t.Errorf("empty context should render empty, got %q", out)
	}
}

func TestRenderContext_Deterministic(t *testing.T) {
	// Map iteration order must not leak into the rendering.
	for i := 0; i < 20; i++ {
		if RenderContext(sampleContext(), 1500) != RenderContext(sampleContext(), 1500) {
			t.Fatal("identical contexts rendered differently")
		}
	}
}

func TestTruncateLongestFirst_DropsLongestAcrossLists(t *testing.T) {
	knowledge := []string{
		"  - short",
		"  - " + strings.Repeat("k", 100),
	}
	episodes := []string{
		"  - " + strings.Repeat("e", 200),
		"  - tiny",
	}

	gotK, gotE := truncateLongestFirst(knowledge, episodes, 50)

	// The 200-char episode goes first, then the 100-char knowledge item.
	if len(gotE) != 1 || gotE[0] != "  - tiny" {
		t.Errorf("episodes after truncation: %v", gotE)
	}
	if len(gotK) != 1 || gotK[0] != "  - short" {
		t.Errorf("knowledge after truncation: %v", gotK)
	}
}

func TestTruncateLongestFirst_ZeroBudgetDropsAll(t *testing.T) {
	k, e := truncateLongestFirst([]string{"a"}, []string{"b"}, 0)
	if k != nil || e != nil {
		t.Errorf("zero budget should drop everything, got %v %v", k, e)
	}
}

func TestTruncateLongestFirst_WithinBudgetUntouched(t *testing.T) {
	k, e := truncateLongestFirst([]string{"aa"}, []string{"bb"}, 100)
	if len(k) != 1 || len(e) != 1 {
		t.Errorf("items within budget should survive, got %v %v", k, e)
	}
}
