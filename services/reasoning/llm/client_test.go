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
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTrimStop_EarliestMatchWins(t *testing.T) {
	text := "Thought: check\nObservation: fake\n\n\nmore"
	got := TrimStop(text, []string{"Observation:", "\n\n\n"})
	if got != "Thought: check\n" {
		t.Errorf("TrimStop = %q", got)
	}
}

func TestTrimStop_NoMatch(t *testing.T) {
	text := "Final Answer: done"
	if got := TrimStop(text, []string{"Observation:"}); got != text {
		t.Errorf("TrimStop without match changed text: %q", got)
	}
}

func TestCleanText_InvalidUTF8Replaced(t *testing.T) {
	raw := "weather\xff\xfe in Paris"
	got := CleanText(raw, nil)
	if !utf8.ValidString(got) {
		t.Errorf("CleanText output is not valid UTF-8: %q", got)
	}
	if !strings.Contains(got, "weather") || !strings.Contains(got, "Paris") {
		t.Errorf("CleanText dropped content: %q", got)
	}
}

func TestScriptClient_ReplaysInOrder(t *testing.T) {
	client := NewScriptClient("first", "second")

	r1, err := client.Generate(context.Background(), &Request{Prompt: "p1"})
	if err != nil {
		t.Fatalf("Generate 1: %v", err)
	}
	r2, err := client.Generate(context.Background(), &Request{Prompt: "p2"})
	if err != nil {
		t.Fatalf("Generate 2: %v", err)
	}
	if r1.Text != "first" || r2.Text != "second" {
		t.Errorf("responses out of order: %q, %q", r1.Text, r2.Text)
	}
	if client.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", client.Calls())
	}
}

func TestScriptClient_ExhaustionFails(t *testing.T) {
	client := NewScriptClient("only")
	if _, err := client.Generate(context.Background(), &Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.Generate(context.Background(), &Request{}); err == nil {
		t.Error("exhausted script should error")
	}
}

func TestScriptClient_ErrOverridesScript(t *testing.T) {
	client := NewScriptClient("unused")
	client.Err = errors.New("backend down")
	if _, err := client.Generate(context.Background(), &Request{}); err == nil {
		t.Error("Err should be returned")
	}
}

func TestScriptClient_AppliesStopTrimming(t *testing.T) {
	client := NewScriptClient("Thought: t\nAction: X\nObservation: leaked")
	r, err := client.Generate(context.Background(), &Request{Stop: []string{"Observation:"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(r.Text, "Observation:") {
		t.Errorf("stop sequence leaked into response: %q", r.Text)
	}
}
