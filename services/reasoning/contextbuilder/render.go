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
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// RenderSections formats a Context as the three prompt sections.
//
// Description:
//
//	Preferences and recent turns form the stable section — high-signal
//	and rendered first. Knowledge and episodes are truncated together to
//	the character budget using a longest-first drop policy: while over
//	budget, the longest remaining item from either list is dropped.
//	Preference keys render sorted so identical contexts always render
//	identically.
//
// Inputs:
//   - context: The assembled context.
//   - budget: Combined character budget for knowledge + episode lines.
//     Zero or negative drops both retrieval sections entirely.
//
// Outputs:
//   - stable: Preferences and recent turns. Empty when both are empty.
//   - knowledge: The knowledge section, possibly truncated.
//   - episodes: The episodes section, possibly truncated.
func RenderSections(context datatypes.Context, budget int) (stable, knowledge, episodes string) {
	var stableSections []string

	if len(context.Preferences) > 0 {
		lines := []string{"User Preferences:"}
		keys := make([]string, 0, len(context.Preferences))
		for k := range context.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  - %s: %v", k, context.Preferences[k]))
		}
		stableSections = append(stableSections, strings.Join(lines, "\n"))
	}

	if len(context.RecentTurns) > 0 {
		lines := []string{"Recent Conversation:"}
		for _, turn := range context.RecentTurns {
			role := turn.Role
			if role == "" {
				role = "user"
			}
			lines = append(lines, fmt.Sprintf("  %s: %s", role, turn.Content))
		}
		stableSections = append(stableSections, strings.Join(lines, "\n"))
	}
	stable = strings.Join(stableSections, "\n\n")

	knowledgeLines := make([]string, 0, len(context.Knowledge))
	for _, item := range context.Knowledge {
		knowledgeLines = append(knowledgeLines, fmt.Sprintf("  - %s", item.Text))
	}
	episodeLines := make([]string, 0, len(context.Episodes))
	for _, item := range context.Episodes {
		episodeLines = append(episodeLines, fmt.Sprintf("  - %s", item.Text))
	}

	knowledgeLines, episodeLines = truncateLongestFirst(knowledgeLines, episodeLines, budget)

	if len(knowledgeLines) > 0 {
		knowledge = "Relevant Knowledge:\n" + strings.Join(knowledgeLines, "\n")
	}
	if len(episodeLines) > 0 {
		episodes = "Related Past Events:\n" + strings.Join(episodeLines, "\n")
	}
	return stable, knowledge, episodes
}

// RenderContext formats a Context as a single prompt block. Convenience
// composition of RenderSections, used by tests.
func RenderContext(context datatypes.Context, budget int) string {
	stable, knowledge, episodes := RenderSections(context, budget)
	var sections []string
	for _, s := range []string{stable, knowledge, episodes} {
		if s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n\n")
}

// truncateLongestFirst drops the longest remaining item from either list
// until the combined length fits the budget. Relative order within each
// list is preserved.
func truncateLongestFirst(knowledge, episodes []string, budget int) ([]string, []string) {
	if budget <= 0 {
		return nil, nil
	}

	total := func() int {
		n := 0
		for _, l := range knowledge {
			n += len(l)
		}
		for _, l := range episodes {
			n += len(l)
		}
		return n
	}

	for total() > budget && (len(knowledge) > 0 || len(episodes) > 0) {
		longestList := &knowledge
		longestIdx := -1
		longestLen := -1

		for i, l := range knowledge {
			if len(l) > longestLen {
				longestList, longestIdx, longestLen = &knowledge, i, len(l)
			}
		}
		for i, l := range episodes {
			if len(l) > longestLen {
				longestList, longestIdx, longestLen = &episodes, i, len(l)
			}
		}

		*longestList = append((*longestList)[:longestIdx], (*longestList)[longestIdx+1:]...)
	}

	return knowledge, episodes
}
