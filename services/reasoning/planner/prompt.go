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
	"encoding/json"
	"fmt"
	"strings"
)

// systemPreamble is the static instruction block at the top of every prompt.
const systemPreamble = `You are the reasoning engine of a voice assistant. Solve the user's request
step by step using the ReAct format.

For each step, write:
  Thought: your reasoning about what to do next
  Action: ONE tool name from the list below, exactly as written
  Action Input: a JSON object with the tool's parameters

After each Action you will receive an Observation with the result. When you
have enough information to answer, write:
  Thought: your final reasoning
  Final Answer: the answer for the user

Rules:
- Always end your response with either an Action or a Final Answer.
- Use only tools from the list. Do not invent tools.
- Action Input must be a single valid JSON object on one line.
- If a tool was Blocked, do not retry it with the same parameters.`

// promptTerminator invites the next thought.
const promptTerminator = "Thought:"

// ScratchpadEntry is one completed iteration in the running transcript.
type ScratchpadEntry struct {
	Thought     string
	Action      string
	ActionInput map[string]any
	Observation string
}

// render formats one scratchpad entry as it appeared in the dialogue.
func (e ScratchpadEntry) render() string {
	var sb strings.Builder
	sb.WriteString("Thought: ")
	sb.WriteString(e.Thought)
	sb.WriteByte('\n')
	if e.Action != "" {
		sb.WriteString("Action: ")
		sb.WriteString(e.Action)
		sb.WriteByte('\n')
		input, err := json.Marshal(e.ActionInput)
		if err != nil {
			input = []byte("{}")
		}
		sb.WriteString("Action Input: ")
		sb.Write(input)
		sb.WriteByte('\n')
	}
	sb.WriteString("Observation: ")
	sb.WriteString(e.Observation)
	sb.WriteByte('\n')
	return sb.String()
}

// Prompt assembles the per-iteration prompt under a character budget.
//
// Description:
//
//	Section order: static preamble, full tool manifest, candidate hint,
//	context sections, the user's query, the scratchpad in chronological
//	order, and the terminator. When the composed prompt exceeds the
//	budget, truncation proceeds in order: scratchpad entries oldest-first,
//	then the knowledge section, then the episodes section, then the stable
//	context. The preamble, manifest, query, and the most recent scratchpad
//	entry are never dropped — the budget is a hard constraint, not
//	advisory, so composition renders into the budget instead of hoping to
//	fit.
type Prompt struct {
	Manifest      string
	CandidateHint string

	// ContextStable holds preferences and recent turns; ContextKnowledge
	// and ContextEpisodes hold the retrieval sections. They truncate
	// independently (knowledge before episodes, per the drop order).
	ContextStable    string
	ContextKnowledge string
	ContextEpisodes  string

	RawQuery   string
	Scratchpad []ScratchpadEntry
}

// Render composes the prompt within budget characters.
//
// Outputs:
//   - string: The composed prompt.
//   - int: How many scratchpad entries were dropped.
func (p *Prompt) Render(budget int) (string, int) {
	entries := p.Scratchpad
	dropped := 0

	// sections toggles: [stable, knowledge, episodes]
	include := [3]bool{true, true, true}

	compose := func(entries []ScratchpadEntry) string {
		var sb strings.Builder
		sb.WriteString(systemPreamble)
		sb.WriteString("\n\n")
		sb.WriteString(p.Manifest)
		if p.CandidateHint != "" {
			sb.WriteByte('\n')
			sb.WriteString(p.CandidateHint)
		}
		for i, section := range []string{p.ContextStable, p.ContextKnowledge, p.ContextEpisodes} {
			if include[i] && section != "" {
				sb.WriteByte('\n')
				sb.WriteString(section)
				sb.WriteByte('\n')
			}
		}
		sb.WriteString("\nUser Query: ")
		sb.WriteString(p.RawQuery)
		sb.WriteString("\n\n")
		for _, e := range entries {
			sb.WriteString(e.render())
			sb.WriteByte('\n')
		}
		sb.WriteString(promptTerminator)
		return sb.String()
	}

	text := compose(entries)
	if budget <= 0 || len(text) <= budget {
		return text, dropped
	}

	// 1. Drop oldest scratchpad entries, keeping the most recent.
	for len(entries) > 1 && len(text) > budget {
		entries = entries[1:]
		dropped++
		text = compose(entries)
	}

	// 2. Drop knowledge, then episodes, then the stable context.
	for _, idx := range []int{1, 2, 0} {
		if len(text) <= budget {
			break
		}
		include[idx] = false
		text = compose(entries)
	}

	return text, dropped
}

// BudgetChars converts a token budget to a character budget, reserving room
// for the response. Roughly four characters per token.
func BudgetChars(contextWindow, maxResponseTokens int) int {
	budget := (contextWindow - maxResponseTokens) * 4
	if budget < 512 {
		budget = 512
	}
	return budget
}

// candidateHint renders the intent's candidate tools as a prompt hint.
// The full manifest stays present; the hint only nudges tool choice.
func candidateHint(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return fmt.Sprintf("Likely relevant tools for this request: %s\n", strings.Join(candidates, ", "))
}
