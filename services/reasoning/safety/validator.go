// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

// Options carries per-call validation inputs.
type Options struct {
	// ConfirmationToken, when set, attempts to redeem a pending
	// confirmation for this exact call.
	ConfirmationToken string
}

// BatchCall is one entry of a batch validation.
type BatchCall struct {
	Spec       *tools.Spec
	Parameters map[string]any
}

// Validator runs the ordered safety pipeline over tool calls.
//
// Description:
//
//	Pipeline order (first terminating outcome wins):
//	  1. Allow/block lists
//	  2. Parameter sanitization (injection block, XSS scrub, PII mask)
//	  3. Risk scoring
//	  4. Rate limiting (blocked calls never consume quota)
//	  5. Confirmation policy
//	Every outcome is appended to the per-user audit ring.
//
// Thread Safety: Safe for concurrent use. Policies are swapped atomically
// under the internal lock (see SetPolicies).
type Validator struct {
	mu        sync.RWMutex
	policies  *Policies
	sanitizer *Sanitizer
	scorer    *Scorer
	limiter   *RateLimiter

	audit  *AuditLog
	tokens *ConfirmationStore
	logger *slog.Logger
	now    func() time.Time
}

// NewValidator creates a validator.
//
// Inputs:
//   - policies: The policy set. Nil selects DefaultPolicies.
//   - tokens: The confirmation-token store. Must not be nil.
//   - logger: Structured logger. Nil selects slog.Default().
func NewValidator(policies *Policies, tokens *ConfirmationStore, logger *slog.Logger) *Validator {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{
		audit:  NewAuditLog(),
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
	v.SetPolicies(policies)
	return v
}

// SetPolicies swaps the active policy set and rebuilds the components
// derived from it. Rate-limiter windows reset on swap.
func (v *Validator) SetPolicies(policies *Policies) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.policies = policies
	v.sanitizer = NewSanitizer(policies)
	v.scorer = NewScorer(policies.Thresholds)
	v.limiter = NewRateLimiter(policies.RateLimits)
}

// components returns a consistent snapshot of the policy-derived parts.
func (v *Validator) components() (*Policies, *Sanitizer, *Scorer, *RateLimiter) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.policies, v.sanitizer, v.scorer, v.limiter
}

// Validate runs the full pipeline over one tool call.
//
// Inputs:
//   - ctx: Context for tracing. Validation itself is pure CPU.
//   - userID: The requesting user.
//   - spec: The resolved tool.
//   - params: Extracted parameters (pre-sanitization).
//   - opts: Per-call options.
//
// Outputs:
//   - Result: The decision. Never an error: failures surface as Blocked.
func (v *Validator) Validate(ctx context.Context, userID string, spec *tools.Spec, params map[string]any, opts Options) Result {
	_, span := otel.Tracer("aleutian.reasoning").Start(ctx, "safety.Validator.Validate",
		oteltrace.WithAttributes(
			attribute.String("tool", string(spec.Type)),
			attribute.String("user_id", userID),
		),
	)
	defer span.End()

	policies, sanitizer, scorer, limiter := v.components()
	timestamp := v.now().UnixMilli()
	var warnings []string

	finish := func(result Result) Result {
		result.Timestamp = timestamp
		v.audit.Append(userID, result)
		if result.Status != StatusBlocked {
			limiter.Record(userID, result.Risk.Level)
		}
		recordValidation(string(spec.Type), result.Status, result.Risk.Score)
		span.SetAttributes(
			attribute.String("status", string(result.Status)),
			attribute.String("risk_level", string(result.Risk.Level)),
		)
		if result.Status == StatusBlocked {
			v.logger.Warn("tool call blocked",
				slog.String("user_id", userID),
				slog.String("tool", string(spec.Type)),
				slog.String("reason", result.BlockedReason),
			)
		}
		return result
	}

	criticalBlock := func(blockedBy, reason string) Result {
		recordBlocked(blockedBy)
		return finish(Result{
			Status: StatusBlocked,
			Risk: RiskScore{
				Level:         datatypes.RiskCritical,
				Score:         1.0,
				Contributions: Contributions{Tool: 1.0},
				Reasoning:     reason,
			},
			Warnings:      warnings,
			BlockedReason: reason,
		})
	}

	// 1. Allow/block lists.
	toolName := string(spec.Type)
	if containsFold(policies.BlockedTools, toolName) {
		return criticalBlock("block_list", fmt.Sprintf("tool '%s' is on the blocked list", toolName))
	}
	if !containsFold(policies.AllowedTools, toolName) {
		if policies.StrictMode {
			recordBlocked("allow_list")
			return finish(Result{
				Status: StatusBlocked,
				Risk: RiskScore{
					Level:         datatypes.RiskHigh,
					Score:         0.8,
					Contributions: Contributions{Tool: 0.8},
					Reasoning:     fmt.Sprintf("tool '%s' not on allow list", toolName),
				},
				Warnings:      warnings,
				BlockedReason: fmt.Sprintf("tool '%s' not on allow list", toolName),
			})
		}
		warnings = append(warnings, fmt.Sprintf("tool '%s' not on allow list", toolName))
	}

	// 2. Parameter sanitization.
	sanitized, sanitizeWarnings, err := sanitizer.SanitizeParameters(spec, params)
	if err != nil {
		return criticalBlock("sanitizer", fmt.Sprintf("sanitization failed: %v", err))
	}
	warnings = append(warnings, sanitizeWarnings...)

	// Application allow list for app-typed parameters.
	warnings = append(warnings, v.checkApplications(policies, spec, sanitized)...)

	// 3. Risk scoring with user-history context.
	failed, highRisk := v.audit.RecentContext(userID)
	risk := scorer.Calculate(spec, sanitized, ValidationContext{
		FailedValidations: failed,
		RecentHighRisk:    highRisk,
		Hour:              v.now().Hour(),
	})

	// 4. Rate limiting. Blocked calls never consume quota, so a user
	// cannot be locked out by malformed input alone.
	if ok, retryAfter := limiter.Check(userID, risk.Level); !ok {
		recordBlocked("rate_limit")
		reason := fmt.Sprintf("rate limit exceeded for %s risk actions — retry after %v", risk.Level, retryAfter.Round(time.Millisecond))
		return finish(Result{
			Status:        StatusBlocked,
			Risk:          risk,
			Warnings:      warnings,
			BlockedReason: reason,
		})
	}

	// 5. Confirmation policy.
	needsConfirmation := spec.RequiresConfirmation ||
		risk.Level == datatypes.RiskHigh || risk.Level == datatypes.RiskCritical

	if needsConfirmation {
		if opts.ConfirmationToken != "" {
			redeemed, redeemErr := v.tokens.Redeem(userID, opts.ConfirmationToken, spec.Type, sanitized)
			if redeemErr != nil {
				v.logger.Warn("confirmation redeem failed",
					slog.String("user_id", userID),
					slog.String("error", redeemErr.Error()),
				)
			}
			if redeemed {
				recordConfirmation("redeemed")
				status := StatusApproved
				if len(sanitizeWarnings) > 0 {
					status = StatusSanitized
				}
				return finish(Result{
					Status:     status,
					Risk:       risk,
					Parameters: sanitized,
					Warnings:   warnings,
					Confirmed:  true,
				})
			}
		}

		confirmationID, issueErr := v.tokens.Issue(userID, spec.Type, sanitized)
		if issueErr != nil {
			// Without a token the caller could never confirm; refuse
			// rather than silently approving a high-risk call.
			return criticalBlock("confirmation", fmt.Sprintf("could not issue confirmation token: %v", issueErr))
		}
		recordConfirmation("issued")

		return finish(Result{
			Status:              StatusRequiresConfirmation,
			Risk:                risk,
			Parameters:          sanitized,
			Warnings:            warnings,
			ConfirmationID:      confirmationID,
			ConfirmationMessage: confirmationMessage(spec.Type, risk),
		})
	}

	// 6. Final status.
	status := StatusApproved
	if len(sanitizeWarnings) > 0 {
		status = StatusSanitized
	}
	return finish(Result{
		Status:     status,
		Risk:       risk,
		Parameters: sanitized,
		Warnings:   warnings,
	})
}

// ValidateBatch validates tool calls in order, stopping after a CRITICAL
// block.
func (v *Validator) ValidateBatch(ctx context.Context, userID string, calls []BatchCall, opts Options) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		result := v.Validate(ctx, userID, call.Spec, call.Parameters, opts)
		results = append(results, result)
		if result.Status == StatusBlocked && result.Risk.Level == datatypes.RiskCritical {
			break
		}
	}
	return results
}

// CheckAbuse reports whether the user's blocked outcomes within the abuse
// window have reached the limit. Reaching it short-circuits subsequent plans.
func (v *Validator) CheckAbuse(userID string) (bool, string) {
	policies, _, _, _ := v.components()
	blocked := v.audit.BlockedWithin(userID, policies.AbuseWindow.Std())
	if blocked >= policies.AbuseLimit {
		recordBlocked("abuse")
		return true, fmt.Sprintf("%d blocked calls within %v (limit %d): %v",
			blocked, policies.AbuseWindow.Std(), policies.AbuseLimit, ErrAbuse)
	}
	return false, ""
}

// UserStats returns the user's validation statistics.
func (v *Validator) UserStats(userID string) Stats {
	return v.audit.UserStats(userID)
}

// checkApplications warns about app-typed parameters whose value is not on
// the application allow list.
func (v *Validator) checkApplications(policies *Policies, spec *tools.Spec, params map[string]any) []string {
	var warnings []string
	for _, p := range spec.Params {
		if p.Format != tools.FormatAppName {
			continue
		}
		value, ok := params[p.Name].(string)
		if !ok || value == "" {
			continue
		}
		app := normalizeAppName(value)
		if !containsFold(policies.AllowedApps, app) {
			warnings = append(warnings, fmt.Sprintf("application '%s' not on allow list", value))
		}
	}
	return warnings
}

// normalizeAppName lowercases and strips common executable extensions.
func normalizeAppName(name string) string {
	app := strings.ToLower(strings.TrimSpace(name))
	for _, ext := range []string{".exe", ".app", ".dmg"} {
		app = strings.TrimSuffix(app, ext)
	}
	return app
}

// confirmationMessage renders the prompt shown to the user for a
// pending-confirmation call.
func confirmationMessage(tool datatypes.ToolType, risk RiskScore) string {
	return fmt.Sprintf("This action '%s' is classified as %s risk. Do you want to proceed?\n\nRisk assessment:\n%s",
		tool, risk.Level, risk.Reasoning)
}

// containsFold reports whether list contains s, case-insensitively.
func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
