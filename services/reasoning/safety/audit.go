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
	"sync"
	"time"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// auditRingSize bounds the per-user audit history.
const auditRingSize = 1024

// Stats summarizes a user's validation history.
type Stats struct {
	TotalValidations     int     `json:"total_validations"`
	Approved             int     `json:"approved"`
	Sanitized            int     `json:"sanitized"`
	Blocked              int     `json:"blocked"`
	RequiresConfirmation int     `json:"requires_confirmation"`
	AverageRiskScore     float64 `json:"average_risk_score"`

	// RecentActions counts validations within the last minute.
	RecentActions int `json:"recent_actions"`
}

// userAudit is one user's bounded validation history. Guarded by its own
// mutex so unrelated users never contend.
type userAudit struct {
	mu      sync.Mutex
	entries []Result // ring buffer, len <= auditRingSize
	next    int      // write cursor once the ring is full
	full    bool
}

// AuditLog is the in-memory per-user validation history.
//
// Description:
//
//	Bounded ring of 1024 entries per user, one lock per user, with the
//	global user map guarded by a short-lived lock using a get-or-create
//	pattern. This is the one piece of process-wide mutable state in the
//	reasoning core (together with the rate-limiter windows).
//
// Thread Safety: Safe for concurrent use.
type AuditLog struct {
	mu    sync.Mutex
	users map[string]*userAudit
	now   func() time.Time
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{
		users: make(map[string]*userAudit),
		now:   time.Now,
	}
}

// forUser returns the user's audit record, creating it if absent.
func (a *AuditLog) forUser(userID string) *userAudit {
	a.mu.Lock()
	defer a.mu.Unlock()
	ua, ok := a.users[userID]
	if !ok {
		ua = &userAudit{}
		a.users[userID] = ua
	}
	return ua
}

// Append records one validation result for the user.
func (a *AuditLog) Append(userID string, result Result) {
	ua := a.forUser(userID)
	ua.mu.Lock()
	defer ua.mu.Unlock()

	if !ua.full {
		ua.entries = append(ua.entries, result)
		if len(ua.entries) == auditRingSize {
			ua.full = true
		}
		return
	}
	ua.entries[ua.next] = result
	ua.next = (ua.next + 1) % auditRingSize
}

// snapshot copies the user's entries in chronological order.
func (ua *userAudit) snapshot() []Result {
	if !ua.full {
		out := make([]Result, len(ua.entries))
		copy(out, ua.entries)
		return out
	}
	out := make([]Result, 0, auditRingSize)
	out = append(out, ua.entries[ua.next:]...)
	out = append(out, ua.entries[:ua.next]...)
	return out
}

// UserStats computes the user's validation statistics.
func (a *AuditLog) UserStats(userID string) Stats {
	ua := a.forUser(userID)
	ua.mu.Lock()
	entries := ua.snapshot()
	ua.mu.Unlock()

	stats := Stats{TotalValidations: len(entries)}
	if len(entries) == 0 {
		return stats
	}

	cutoff := a.now().UnixMilli() - 60_000
	var scoreSum float64
	for _, e := range entries {
		scoreSum += e.Risk.Score
		switch e.Status {
		case StatusApproved:
			stats.Approved++
		case StatusSanitized:
			stats.Sanitized++
		case StatusBlocked:
			stats.Blocked++
		case StatusRequiresConfirmation:
			stats.RequiresConfirmation++
		}
		if e.Timestamp > cutoff {
			stats.RecentActions++
		}
	}
	stats.AverageRiskScore = scoreSum / float64(len(entries))
	return stats
}

// RecentContext derives the risk-scoring context signals from the user's
// recent history: blocked outcomes among the last ten validations and
// HIGH/CRITICAL outcomes among the last twenty.
func (a *AuditLog) RecentContext(userID string) (failedValidations, recentHighRisk int) {
	ua := a.forUser(userID)
	ua.mu.Lock()
	entries := ua.snapshot()
	ua.mu.Unlock()

	start := len(entries) - 10
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		if e.Status == StatusBlocked {
			failedValidations++
		}
	}

	start = len(entries) - 20
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		if e.Risk.Level == datatypes.RiskHigh || e.Risk.Level == datatypes.RiskCritical {
			recentHighRisk++
		}
	}
	return failedValidations, recentHighRisk
}

// BlockedWithin counts the user's blocked outcomes inside the window.
// Feeds the abuse short-circuit: repeated blocked calls across separate
// plans must not turn the planner into a probe.
func (a *AuditLog) BlockedWithin(userID string, window time.Duration) int {
	ua := a.forUser(userID)
	ua.mu.Lock()
	entries := ua.snapshot()
	ua.mu.Unlock()

	cutoff := a.now().Add(-window).UnixMilli()
	count := 0
	for _, e := range entries {
		if e.Status == StatusBlocked && e.Timestamp > cutoff {
			count++
		}
	}
	return count
}
