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
	"regexp"
	"strings"
)

// ResponseKind tags a parsed LLM response.
type ResponseKind int

const (
	// KindAction is a Thought/Action/Action Input triple.
	KindAction ResponseKind = iota

	// KindFinal is a Thought/Final Answer pair.
	KindFinal
)

// Parsed is the structured form of one LLM response.
type Parsed struct {
	Kind        ResponseKind
	Thought     string
	Action      string
	ActionInput map[string]any
	FinalAnswer string
}

// ParseError is a recoverable grammar violation. The planner converts it to
// an observation; it never aborts the plan.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("response did not match the expected format: %s", e.Reason)
}

var (
	thoughtPattern     = regexp.MustCompile(`(?s)Thought:\s*(.+?)(?:\nAction:|\nFinal Answer:|$)`)
	actionPattern      = regexp.MustCompile(`(?m)^\s*Action:\s*(\S+)\s*$`)
	finalAnswerMarker  = "Final Answer:"
	actionInputPattern = regexp.MustCompile(`(?s)Action Input:\s*(\{.*)`)
)

// ParseResponse parses one LLM response against the output grammar.
//
// Description:
//
//	The grammar accepts exactly two shapes:
//
//	  Thought: <free text>
//	  Action: <TOOL_NAME>
//	  Action Input: <JSON object>
//
//	  Thought: <free text>
//	  Final Answer: <free text>
//
//	Parsing is line-oriented and tolerant of surrounding whitespace. The
//	Action Input is decoded as a JSON object; decode failure is a parse
//	error. A Final Answer anywhere in the response terminates the loop,
//	matching the stochastic producer's habit of prefixing it with noise.
//
// Outputs:
//   - *Parsed: The structured response.
//   - error: *ParseError on any grammar violation.
func ParseResponse(response string) (*Parsed, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, &ParseError{Reason: "empty response"}
	}

	parsed := &Parsed{}
	if m := thoughtPattern.FindStringSubmatch(response); m != nil {
		parsed.Thought = strings.TrimSpace(m[1])
	}

	if idx := strings.Index(response, finalAnswerMarker); idx >= 0 {
		answer := strings.TrimSpace(response[idx+len(finalAnswerMarker):])
		if answer == "" {
			return nil, &ParseError{Reason: "Final Answer is empty"}
		}
		parsed.Kind = KindFinal
		parsed.FinalAnswer = answer
		return parsed, nil
	}

	actionMatch := actionPattern.FindStringSubmatch(response)
	if actionMatch == nil {
		return nil, &ParseError{Reason: "no Action or Final Answer found"}
	}
	parsed.Kind = KindAction
	parsed.Action = strings.TrimSpace(actionMatch[1])

	inputMatch := actionInputPattern.FindStringSubmatch(response)
	if inputMatch == nil {
		return nil, &ParseError{Reason: "Action without Action Input"}
	}

	object, err := decodeJSONObject(inputMatch[1])
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("Action Input is not a JSON object: %v", err)}
	}
	parsed.ActionInput = object

	return parsed, nil
}

// decodeJSONObject decodes the first balanced JSON object in text.
//
// The LLM often trails an object with prose; scanning for the balancing
// brace keeps the grammar line-oriented without a full JSON tokenizer for
// the tail.
func decodeJSONObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("expected an object")
	}

	depth := 0
	inString := false
	escaped := false
	end := -1
scan:
	for i, r := range text {
		switch {
		case escaped:
			escaped = false
		case inString:
			if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
		case r == '"':
			inString = true
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth == 0 {
				end = i
				break scan
			}
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("unbalanced braces")
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(text[:end+1]), &object); err != nil {
		return nil, err
	}
	return object, nil
}
