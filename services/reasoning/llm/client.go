// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm defines the single-request adapter interface between the
// planner and the language model, plus its backends.
//
// The adapter is deliberately minimal: one blocking Generate call per
// iteration, stop-sequence trimming, UTF-8 safety, and no internal retries —
// retry policy belongs to the planner. The core is agnostic to local versus
// remote inference; any backend satisfying Client is acceptable.
//
// Thread Safety:
//
//	All Client implementations in this package are safe for concurrent use.
package llm

import (
	"context"
	"strings"
)

// Request is a single generation request.
type Request struct {
	// Prompt is the full composed prompt text.
	Prompt string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// Stop lists sequences at which generation halts. The adapter trims
	// the matched sequence and anything after it from the returned text.
	Stop []string
}

// Result is the adapter's response.
type Result struct {
	// Text is the generated text: stop-trimmed, valid UTF-8, and
	// whitespace-trimmed.
	Text string

	// TokensUsed is the completion token count, estimated when the
	// backend does not report it.
	TokensUsed int
}

// Client is the planner-facing adapter interface.
type Client interface {
	// Generate produces a completion for the prompt. Blocking; the caller
	// enforces the request deadline through ctx.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Name identifies the backend (e.g. "ollama", "openai", "script").
	Name() string

	// Model identifies the model in use.
	Model() string

	// ContextWindow is the backend's context budget in tokens. The planner
	// truncates its prompt to fit this.
	ContextWindow() int
}

// TrimStop cuts text at the first occurrence of any stop sequence.
//
// Description:
//
//	Backends differ in whether they include the stop sequence in the
//	returned text; applying this uniformly guarantees the planner never
//	sees a stop marker. The earliest match across all sequences wins.
func TrimStop(text string, stop []string) string {
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if idx := strings.Index(text, s); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return text[:cut]
}

// CleanText applies the adapter guarantees to raw backend output: stop
// trimming, replacement of invalid UTF-8, and whitespace trimming.
func CleanText(text string, stop []string) string {
	text = TrimStop(text, stop)
	text = strings.ToValidUTF8(text, "�")
	return strings.TrimSpace(text)
}

// EstimateTokens approximates the token count of text. Used when a backend
// does not report usage; roughly one token per four bytes.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
