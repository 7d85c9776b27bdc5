// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools defines the closed tool catalog the planner plans against:
// one Spec per ToolType with a parameter schema, a base risk class, and a
// confirmation flag, plus the intent-to-candidates mapping used for prompt
// hinting and the parameter extraction rules.
//
// Thread Safety:
//
//	The Catalog is read-only after construction and safe for concurrent use.
package tools

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// ParamFormat refines a string parameter's meaning so the sanitizer and the
// PII scanner can route it to the right checks.
type ParamFormat string

const (
	FormatNone    ParamFormat = ""
	FormatEmail   ParamFormat = "email"
	FormatPhone   ParamFormat = "phone"
	FormatURL     ParamFormat = "url"
	FormatPath    ParamFormat = "path"
	FormatCommand ParamFormat = "command"
	FormatSQL     ParamFormat = "sql"
	FormatAppName ParamFormat = "app_name"
)

// ParamSpec describes one parameter of a tool.
type ParamSpec struct {
	Name        string
	Type        string // "string", "integer", "number", "boolean", "object", "array"
	Required    bool
	Format      ParamFormat
	Description string
}

// Spec is the catalog entry for a single tool.
type Spec struct {
	Type                 datatypes.ToolType
	Description          string
	Risk                 datatypes.RiskLevel
	RequiresConfirmation bool
	Params               []ParamSpec
}

// Param returns the ParamSpec with the given name, or nil.
func (s *Spec) Param(name string) *ParamSpec {
	for i := range s.Params {
		if s.Params[i].Name == name {
			return &s.Params[i]
		}
	}
	return nil
}

// UnknownToolError is returned by Lookup when the LLM emits an action name
// that is not in the catalog. There is deliberately no fuzzy resolution:
// hallucinated tools must be rejected so the loop can recover.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// MissingParametersError is returned by ExtractParameters when required
// parameters are present neither in the action input nor in the entities.
// The planner converts it to an observation; it never aborts the plan.
type MissingParametersError struct {
	Tool    datatypes.ToolType
	Missing []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("tool %s missing required parameters: %s",
		e.Tool, strings.Join(e.Missing, ", "))
}
