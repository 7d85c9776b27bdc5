// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared value types that flow between the
// reasoning core's components: the intent envelope coming in, the assembled
// memory context, and the execution plan going out.
//
// Everything here is a plain value. No type in this package performs I/O or
// holds locks; all mutation happens inside a single plan call and the
// resulting ExecutionPlan is immutable once returned to the caller.
package datatypes

import "fmt"

// IntentEnvelope is the classified request handed to the reasoning core by
// the upstream intent classifier. The core consumes it; it never classifies.
type IntentEnvelope struct {
	// UserID identifies the requesting user. Must be non-empty.
	UserID string `json:"user_id"`

	// IntentName is the discrete intent label (e.g. "get_weather").
	IntentName string `json:"intent_name"`

	// Entities are the structured slots extracted from the utterance
	// (e.g. location="Paris"). May be empty.
	Entities map[string]any `json:"entities"`

	// RawQuery is the user's original utterance, 1..4096 characters.
	RawQuery string `json:"raw_query"`

	// ConfirmationToken, when set, acknowledges a pending-confirmation step
	// from a previous plan for the same tool call.
	ConfirmationToken string `json:"confirmation_token,omitempty"`
}

// Message is a single conversation turn fetched from short-term memory.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// KnowledgeItem is a retrieved fact from long-term memory.
type KnowledgeItem struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

// Episode is a semantically retrieved past episode.
type Episode struct {
	Text       string  `json:"text"`
	Timestamp  int64   `json:"timestamp,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Context is the per-request memory context assembled by the context builder.
//
// Any subset of fields may be empty; a Context is always structurally valid.
// A failed fetch degrades its field to empty, it never fails the pipeline.
type Context struct {
	Preferences map[string]any  `json:"preferences"`
	RecentTurns []Message       `json:"recent_turns"`
	Knowledge   []KnowledgeItem `json:"knowledge"`
	Episodes    []Episode       `json:"episodes"`
}

// ToolType names one capability in the closed tool catalog. The zero value
// is not a valid tool; unknown action names from the LLM never map to a
// ToolType (they are carried through the scratchpad as observations instead).
type ToolType string

// The closed set of tools the planner may emit. The destructive variants at
// the bottom exist so that a hallucinated destructive action resolves to a
// known tool and is then rejected by the safety block list, rather than
// being indistinguishable from a typo.
const (
	ToolOpenApplication   ToolType = "OPEN_APPLICATION"
	ToolCloseApplication  ToolType = "CLOSE_APPLICATION"
	ToolSwitchApplication ToolType = "SWITCH_APPLICATION"
	ToolWebSearch         ToolType = "WEB_SEARCH"
	ToolFileSearch        ToolType = "FILE_SEARCH"
	ToolGetWeather        ToolType = "GET_WEATHER"
	ToolGetNews           ToolType = "GET_NEWS"
	ToolGetTime           ToolType = "GET_TIME"
	ToolCalculator        ToolType = "CALCULATOR"
	ToolSendEmail         ToolType = "SEND_EMAIL"
	ToolSendMessage       ToolType = "SEND_MESSAGE"
	ToolMakeCall          ToolType = "MAKE_CALL"
	ToolMediaPlayer       ToolType = "MEDIA_PLAYER"
	ToolVolumeControl     ToolType = "VOLUME_CONTROL"
	ToolBrightnessControl ToolType = "BRIGHTNESS_CONTROL"
	ToolScreenshot        ToolType = "SCREENSHOT"
	ToolSmartHomeControl  ToolType = "SMART_HOME_CONTROL"
	ToolNavigation        ToolType = "NAVIGATION"
	ToolCalendar          ToolType = "CALENDAR"
	ToolSetReminder       ToolType = "SET_REMINDER"
	ToolNoteTaking        ToolType = "NOTE_TAKING"
	ToolSetTimer          ToolType = "SET_TIMER"
	ToolSetAlarm          ToolType = "SET_ALARM"
	ToolUnitConverter     ToolType = "UNIT_CONVERTER"
	ToolSystemControl     ToolType = "SYSTEM_CONTROL"
	ToolDatabaseQuery     ToolType = "DATABASE_QUERY"
	ToolHelp              ToolType = "HELP"
	ToolClarification     ToolType = "CLARIFICATION"

	// Destructive operations. Resolvable, never executable.
	ToolSystemShutdown ToolType = "SYSTEM_SHUTDOWN"
	ToolFormatDrive    ToolType = "FORMAT_DRIVE"
	ToolDeleteFile     ToolType = "DELETE_FILE"
	ToolAdminCommand   ToolType = "ADMIN_COMMAND"
)

// RiskLevel classifies how dangerous a tool call is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// BaseScore returns the base risk contribution for a tool of this class.
func (r RiskLevel) BaseScore() float64 {
	switch r {
	case RiskLow:
		return 0.1
	case RiskMedium:
		return 0.4
	case RiskHigh:
		return 0.7
	case RiskCritical:
		return 1.0
	default:
		return 0.5 // unknown tools are treated as medium risk
	}
}

// StepStatus is the terminal safety state of a plan step.
type StepStatus string

const (
	// StepApproved passed the safety pipeline unchanged.
	StepApproved StepStatus = "approved"

	// StepSanitized passed with its parameters rewritten by the sanitizer.
	StepSanitized StepStatus = "sanitized"

	// StepPendingConfirmation is admitted to the plan but must not be
	// executed until the caller resubmits with the confirmation token.
	StepPendingConfirmation StepStatus = "pending_confirmation"

	// StepBlocked was rejected by the safety validator.
	StepBlocked StepStatus = "blocked"
)

// ToolCall is one validated step of an execution plan.
type ToolCall struct {
	Tool       ToolType       `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Thought    string         `json:"thought"`

	// Observation is the synthesized (or, in production wiring, real)
	// execution result. Empty until the step conceptually executed.
	Observation string `json:"observation,omitempty"`

	// Sanitized is true when Parameters are the sanitizer's rewritten form.
	Sanitized bool       `json:"sanitized"`
	Status    StepStatus `json:"status"`
	Warnings  []string   `json:"warnings,omitempty"`

	// ConfirmationID and ConfirmationMessage are set on
	// pending-confirmation steps; the caller resubmits the ID as the
	// envelope's ConfirmationToken to approve the step on replay.
	ConfirmationID      string `json:"confirmation_id,omitempty"`
	ConfirmationMessage string `json:"confirmation_message,omitempty"`
}

// FailureKind is the taxonomy of fatal plan failures. Recoverable conditions
// (parse errors, unknown tools, missing parameters, blocked steps) are
// carried as observations or step statuses instead.
type FailureKind string

const (
	FailIterationLimit  FailureKind = "IterationLimit"
	FailLLMError        FailureKind = "LLMError"
	FailCancelled       FailureKind = "Cancelled"
	FailBlockedBySafety FailureKind = "BlockedBySafety"
)

// PlanError is the fatal error attached to an unsuccessful plan.
type PlanError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ExecutionPlan is the reasoning core's output: the ordered, validated tool
// calls plus the natural-language final answer.
//
// Invariants:
//   - Iterations never exceeds the configured maximum.
//   - Steps appear in exactly the order the planner accepted them.
//   - Success implies a non-empty FinalAnswer, no blocked step, and no
//     unconfirmed pending-confirmation step.
type ExecutionPlan struct {
	UserID      string     `json:"user_id"`
	IntentName  string     `json:"intent_name"`
	RawQuery    string     `json:"raw_query"`
	Steps       []ToolCall `json:"steps"`
	FinalAnswer string     `json:"final_answer"`
	Iterations  int        `json:"iterations"`
	Success     bool       `json:"success"`
	Error       *PlanError `json:"error,omitempty"`
}

// HasBlockedStep reports whether any step was rejected by safety.
func (p *ExecutionPlan) HasBlockedStep() bool {
	for _, s := range p.Steps {
		if s.Status == StepBlocked {
			return true
		}
	}
	return false
}

// HasUnconfirmedStep reports whether any step still awaits confirmation.
func (p *ExecutionPlan) HasUnconfirmedStep() bool {
	for _, s := range p.Steps {
		if s.Status == StepPendingConfirmation {
			return true
		}
	}
	return false
}
