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
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// newTestValidator builds a validator with an in-memory token store and a
// pinned clock so outcomes do not depend on the wall clock.
func newTestValidator(t *testing.T, policies *Policies) *Validator {
	t.Helper()
	store := openTestStore(t)
	v := NewValidator(policies, store, slog.Default())
	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return noon }
	v.audit.now = func() time.Time { return noon }
	return v
}

func TestValidator_BenignCallApproved(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "GET_WEATHER")

	result := v.Validate(context.Background(), "u1", spec, map[string]any{"location": "Paris"}, Options{})

	if result.Status != StatusApproved {
		t.Fatalf("status = %s, want APPROVED", result.Status)
	}
	if result.Risk.Level != datatypes.RiskLow {
		t.Errorf("risk level = %s, want LOW", result.Risk.Level)
	}
	if !result.IsSafe() {
		t.Error("an approved call is safe")
	}
	if result.Parameters["location"] != "Paris" {
		t.Errorf("parameters = %v", result.Parameters)
	}
}

func TestValidator_SQLInjectionBlockedCritical(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "DATABASE_QUERY")

	result := v.Validate(context.Background(), "u1", spec,
		map[string]any{"query": "SELECT * FROM users; DROP TABLE users;--"}, Options{})

	if result.Status != StatusBlocked {
		t.Fatalf("status = %s, want BLOCKED", result.Status)
	}
	if result.Risk.Level != datatypes.RiskCritical {
		t.Errorf("risk level = %s, want CRITICAL", result.Risk.Level)
	}
	if !strings.Contains(result.BlockedReason, "DROP TABLE") {
		t.Errorf("blocked reason %q should name the pattern", result.BlockedReason)
	}
	if len(result.Parameters) != 0 {
		t.Errorf("blocked result should carry no parameters: %v", result.Parameters)
	}
	if result.IsSafe() {
		t.Error("a blocked call is never safe")
	}
}

func TestValidator_BlockedToolList(t *testing.T) {
	v := newTestValidator(t, nil)

	for _, name := range []string{"SYSTEM_SHUTDOWN", "FORMAT_DRIVE", "DELETE_FILE", "ADMIN_COMMAND"} {
		spec := testSpec(t, name)
		result := v.Validate(context.Background(), "u1", spec, map[string]any{}, Options{})
		if result.Status != StatusBlocked {
			t.Errorf("%s should be blocked, got %s", name, result.Status)
		}
		if !strings.Contains(result.BlockedReason, "blocked list") {
			t.Errorf("%s blocked reason %q should cite the blocked list", name, result.BlockedReason)
		}
		if result.Risk.Level != datatypes.RiskCritical {
			t.Errorf("%s risk level = %s, want CRITICAL", name, result.Risk.Level)
		}
	}
}

func TestValidator_StrictModeBlocksUnlistedTools(t *testing.T) {
	policies := DefaultPolicies()
	policies.StrictMode = true
	policies.AllowedTools = []string{"GET_WEATHER"}
	v := newTestValidator(t, policies)

	result := v.Validate(context.Background(), "u1", testSpec(t, "WEB_SEARCH"),
		map[string]any{"query": "x"}, Options{})
	if result.Status != StatusBlocked {
		t.Fatalf("status = %s, want BLOCKED", result.Status)
	}
	if !strings.Contains(result.BlockedReason, "allow list") {
		t.Errorf("blocked reason %q should cite the allow list", result.BlockedReason)
	}
}

func TestValidator_XSSBecomesSanitized(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "WEB_SEARCH")

	result := v.Validate(context.Background(), "u1", spec,
		map[string]any{"query": "weather <script>alert(1)</script> Paris"}, Options{})

	if result.Status != StatusSanitized {
		t.Fatalf("status = %s, want SANITIZED", result.Status)
	}
	if strings.Contains(result.Parameters["query"].(string), "<script") {
		t.Errorf("sanitized parameters still contain markup: %v", result.Parameters)
	}
	if !result.IsSafe() {
		t.Error("a sanitized call is safe")
	}
}

func TestValidator_ConfirmationRoundTrip(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "SEND_EMAIL")
	params := map[string]any{"to": "boss@example.com", "subject": "Resign", "body": "It is time."}

	first := v.Validate(context.Background(), "u1", spec, params, Options{})
	if first.Status != StatusRequiresConfirmation {
		t.Fatalf("status = %s, want REQUIRES_CONFIRMATION", first.Status)
	}
	if first.ConfirmationID == "" {
		t.Fatal("no confirmation token issued")
	}
	if !strings.Contains(first.ConfirmationMessage, "SEND_EMAIL") {
		t.Errorf("confirmation message %q should name the tool", first.ConfirmationMessage)
	}
	if first.IsSafe() {
		t.Error("an unconfirmed call is not safe")
	}

	// Replay with the token: the step flips to Approved.
	second := v.Validate(context.Background(), "u1", spec, params, Options{
		ConfirmationToken: first.ConfirmationID,
	})
	if second.Status != StatusApproved {
		t.Fatalf("replay status = %s, want APPROVED", second.Status)
	}
	if !second.Confirmed {
		t.Error("replay should be marked confirmed")
	}

	// The token is single-use.
	third := v.Validate(context.Background(), "u1", spec, params, Options{
		ConfirmationToken: first.ConfirmationID,
	})
	if third.Status != StatusRequiresConfirmation {
		t.Errorf("spent token status = %s, want REQUIRES_CONFIRMATION", third.Status)
	}
}

func TestValidator_ConfirmationTokenBoundToParameters(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "SEND_EMAIL")

	first := v.Validate(context.Background(), "u1", spec,
		map[string]any{"to": "boss@example.com", "subject": "a", "body": "b"}, Options{})
	if first.Status != StatusRequiresConfirmation {
		t.Fatalf("status = %s, want REQUIRES_CONFIRMATION", first.Status)
	}

	// The same token must not confirm a different message.
	second := v.Validate(context.Background(), "u1", spec,
		map[string]any{"to": "other@example.com", "subject": "a", "body": "b"}, Options{
			ConfirmationToken: first.ConfirmationID,
		})
	if second.Status != StatusRequiresConfirmation {
		t.Errorf("mismatched replay status = %s, want REQUIRES_CONFIRMATION", second.Status)
	}
}

func TestValidator_RateLimitBoundary(t *testing.T) {
	policies := DefaultPolicies()
	policies.RateLimits[datatypes.RiskLow] = 3
	v := newTestValidator(t, policies)
	spec := testSpec(t, "GET_WEATHER")

	for i := 0; i < 3; i++ {
		result := v.Validate(context.Background(), "u1", spec, map[string]any{"location": "Paris"}, Options{})
		if result.Status != StatusApproved {
			t.Fatalf("request %d = %s, want APPROVED", i+1, result.Status)
		}
	}

	result := v.Validate(context.Background(), "u1", spec, map[string]any{"location": "Paris"}, Options{})
	if result.Status != StatusBlocked {
		t.Fatalf("request beyond the window = %s, want BLOCKED", result.Status)
	}
	if !strings.Contains(result.BlockedReason, "rate limit") {
		t.Errorf("blocked reason %q should cite the rate limit", result.BlockedReason)
	}
}

func TestValidator_BlockedCallsDoNotConsumeQuota(t *testing.T) {
	policies := DefaultPolicies()
	policies.RateLimits[datatypes.RiskLow] = 1
	v := newTestValidator(t, policies)
	badSpec := testSpec(t, "DATABASE_QUERY")
	goodSpec := testSpec(t, "GET_WEATHER")

	// Repeated malformed input is blocked by the sanitizer every time.
	for i := 0; i < 5; i++ {
		result := v.Validate(context.Background(), "u1", badSpec,
			map[string]any{"query": "x; DROP TABLE users"}, Options{})
		if result.Status != StatusBlocked {
			t.Fatalf("attempt %d = %s, want BLOCKED", i+1, result.Status)
		}
		if strings.Contains(result.BlockedReason, "rate limit") {
			t.Fatal("blocked input must not consume rate quota")
		}
	}

	// The user's first real LOW-risk call still fits the window of 1.
	result := v.Validate(context.Background(), "u1", goodSpec, map[string]any{"location": "Paris"}, Options{})
	if result.Status != StatusApproved {
		t.Errorf("status = %s, want APPROVED", result.Status)
	}
}

func TestValidator_BlockedIsMonotone(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "DATABASE_QUERY")
	params := map[string]any{"query": "SELECT 1; DROP TABLE users"}

	first := v.Validate(context.Background(), "u1", spec, params, Options{})
	second := v.Validate(context.Background(), "u1", spec, params, Options{})
	if first.Status != StatusBlocked || second.Status != StatusBlocked {
		t.Errorf("a blocked outcome never becomes approved on re-run: %s then %s",
			first.Status, second.Status)
	}
}

func TestValidator_AbuseWindow(t *testing.T) {
	policies := DefaultPolicies()
	policies.AbuseLimit = 3
	v := newTestValidator(t, policies)
	spec := testSpec(t, "DATABASE_QUERY")

	if abused, _ := v.CheckAbuse("u1"); abused {
		t.Fatal("fresh user should not be flagged")
	}

	for i := 0; i < 3; i++ {
		v.Validate(context.Background(), "u1", spec,
			map[string]any{"query": "1; DROP TABLE t"}, Options{})
	}

	abused, reason := v.CheckAbuse("u1")
	if !abused {
		t.Fatal("user should be flagged after repeated blocked calls")
	}
	if !strings.Contains(reason, "blocked") {
		t.Errorf("abuse reason %q should mention blocked calls", reason)
	}

	// Other users are unaffected.
	if abused, _ := v.CheckAbuse("u2"); abused {
		t.Error("abuse counters must be per-user")
	}
}

func TestValidator_ApplicationAllowListWarning(t *testing.T) {
	v := newTestValidator(t, nil)
	spec := testSpec(t, "OPEN_APPLICATION")

	known := v.Validate(context.Background(), "u1", spec, map[string]any{"app_name": "Chrome"}, Options{})
	if known.Status != StatusApproved {
		t.Errorf("known app status = %s, want APPROVED", known.Status)
	}

	unknown := v.Validate(context.Background(), "u1", spec, map[string]any{"app_name": "TotallyNewApp"}, Options{})
	if !unknown.IsSafe() {
		t.Fatalf("unlisted app should warn, not block: %s", unknown.Status)
	}
	if len(unknown.Warnings) == 0 {
		t.Error("unlisted app should raise a warning")
	}
}

func TestValidator_UserStats(t *testing.T) {
	v := newTestValidator(t, nil)

	v.Validate(context.Background(), "u1", testSpec(t, "GET_WEATHER"), map[string]any{"location": "Paris"}, Options{})
	v.Validate(context.Background(), "u1", testSpec(t, "DATABASE_QUERY"), map[string]any{"query": "1; DROP TABLE t"}, Options{})
	v.Validate(context.Background(), "u1", testSpec(t, "SEND_EMAIL"),
		map[string]any{"to": "a@b.com", "subject": "s", "body": "b"}, Options{})

	stats := v.UserStats("u1")
	if stats.TotalValidations != 3 {
		t.Errorf("TotalValidations = %d, want 3", stats.TotalValidations)
	}
	if stats.Approved != 1 || stats.Blocked != 1 || stats.RequiresConfirmation != 1 {
		t.Errorf("status counts wrong: %+v", stats)
	}
	if stats.AverageRiskScore <= 0 {
		t.Errorf("AverageRiskScore = %v, want > 0", stats.AverageRiskScore)
	}
}

func TestValidator_BatchStopsAtCriticalBlock(t *testing.T) {
	v := newTestValidator(t, nil)

	results := v.ValidateBatch(context.Background(), "u1", []BatchCall{
		{Spec: testSpec(t, "GET_WEATHER"), Parameters: map[string]any{"location": "Paris"}},
		{Spec: testSpec(t, "SYSTEM_SHUTDOWN"), Parameters: map[string]any{}},
		{Spec: testSpec(t, "WEB_SEARCH"), Parameters: map[string]any{"query": "never reached"}},
	}, Options{})

	if len(results) != 2 {
		t.Fatalf("batch returned %d results, want 2 (stops after a CRITICAL block)", len(results))
	}
	if results[0].Status != StatusApproved {
		t.Errorf("first result = %s, want APPROVED", results[0].Status)
	}
	if results[1].Status != StatusBlocked {
		t.Errorf("second result = %s, want BLOCKED", results[1].Status)
	}
}
