// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety gates every tool call the planner emits. It implements the
// ordered validation pipeline (allow/block lists, parameter sanitization,
// PII masking, risk scoring, rate limiting, confirmation policy), the
// per-user audit log, and the confirmation-token store.
//
// The validator owns the only process-wide mutable state in the reasoning
// core: audit rings and rate-limiter windows, serialized per user.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use unless documented
//	otherwise.
package safety

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// Status is the outcome of one validation.
type Status string

const (
	// StatusApproved means the call is safe to execute as-is.
	StatusApproved Status = "APPROVED"

	// StatusSanitized means the call is safe with the rewritten parameters.
	StatusSanitized Status = "SANITIZED"

	// StatusRequiresConfirmation means the caller must resubmit with the
	// confirmation token before the call may execute.
	StatusRequiresConfirmation Status = "REQUIRES_CONFIRMATION"

	// StatusBlocked means the call must not execute.
	StatusBlocked Status = "BLOCKED"
)

// Contributions is the weighted breakdown of a risk score.
type Contributions struct {
	Tool       float64 `json:"tool"`
	Parameters float64 `json:"parameters"`
	Context    float64 `json:"context"`
}

// RiskScore is the computed risk for one tool call.
//
// The score is 0.5·tool + 0.3·parameters + 0.2·context, clipped to [0,1];
// the level is derived from the configured threshold table.
type RiskScore struct {
	Level         datatypes.RiskLevel `json:"level"`
	Score         float64             `json:"score"`
	Contributions Contributions       `json:"contributions"`
	Reasoning     string              `json:"reasoning"`
}

// Result is the validator's decision for one tool call.
type Result struct {
	Status Status    `json:"status"`
	Risk   RiskScore `json:"risk_score"`

	// Parameters is the sanitized parameter map. Empty on Blocked.
	Parameters map[string]any `json:"sanitized_parameters"`

	Warnings      []string `json:"warnings,omitempty"`
	BlockedReason string   `json:"blocked_reason,omitempty"`

	// ConfirmationID is set on RequiresConfirmation results; the caller
	// resubmits it to approve the call.
	ConfirmationID      string `json:"confirmation_id,omitempty"`
	ConfirmationMessage string `json:"confirmation_message,omitempty"`

	// Confirmed is true when a valid confirmation token was redeemed for
	// this call.
	Confirmed bool `json:"confirmed,omitempty"`

	// Timestamp is when the decision was made (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`
}

// IsSafe reports whether execution may proceed without further input.
func (r *Result) IsSafe() bool {
	return r.Status == StatusApproved || r.Status == StatusSanitized
}

// Sentinel errors for blocked outcomes.
var (
	// ErrToolBlocked marks tools on the explicit block list.
	ErrToolBlocked = errors.New("safety: tool is on the blocked list")

	// ErrRateLimited marks calls rejected by the sliding-window limiter.
	ErrRateLimited = errors.New("safety: rate limit exceeded")

	// ErrAbuse marks users whose repeated blocked calls exceeded the
	// abuse window.
	ErrAbuse = errors.New("safety: abuse threshold exceeded")
)

// BlockError is the sanitizer's terminal rejection. It carries the category
// and the matched pattern so observations and audit entries can explain the
// decision.
type BlockError struct {
	Category string // "sql", "shell", "path", "url", "number"
	Pattern  string // the matched pattern, if any
	Reason   string
}

func (e *BlockError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("%s: %s (pattern %q)", e.Category, e.Reason, e.Pattern)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Reason)
}
