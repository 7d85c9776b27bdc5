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
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

func TestAuditLog_StatsCounts(t *testing.T) {
	log := NewAuditLog()
	now := time.Now().UnixMilli()

	log.Append("u1", Result{Status: StatusApproved, Risk: RiskScore{Score: 0.1}, Timestamp: now})
	log.Append("u1", Result{Status: StatusSanitized, Risk: RiskScore{Score: 0.3}, Timestamp: now})
	log.Append("u1", Result{Status: StatusBlocked, Risk: RiskScore{Score: 1.0}, Timestamp: now})
	log.Append("u1", Result{Status: StatusRequiresConfirmation, Risk: RiskScore{Score: 0.6}, Timestamp: now})

	stats := log.UserStats("u1")
	if stats.TotalValidations != 4 {
		t.Errorf("TotalValidations = %d, want 4", stats.TotalValidations)
	}
	if stats.Approved != 1 || stats.Sanitized != 1 || stats.Blocked != 1 || stats.RequiresConfirmation != 1 {
		t.Errorf("status counts wrong: %+v", stats)
	}
	wantAvg := (0.1 + 0.3 + 1.0 + 0.6) / 4
	if diff := stats.AverageRiskScore - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AverageRiskScore = %v, want %v", stats.AverageRiskScore, wantAvg)
	}
	if stats.RecentActions != 4 {
		t.Errorf("RecentActions = %d, want 4", stats.RecentActions)
	}
}

func TestAuditLog_EmptyUser(t *testing.T) {
	log := NewAuditLog()
	stats := log.UserStats("nobody")
	if stats.TotalValidations != 0 || stats.AverageRiskScore != 0 {
		t.Errorf("empty user stats should be zero: %+v", stats)
	}
}

func TestAuditLog_RingBound(t *testing.T) {
	log := NewAuditLog()
	for i := 0; i < auditRingSize+100; i++ {
		log.Append("u1", Result{Status: StatusApproved})
	}
	stats := log.UserStats("u1")
	if stats.TotalValidations != auditRingSize {
		t.Errorf("ring should cap at %d entries, got %d", auditRingSize, stats.TotalValidations)
	}
}

func TestAuditLog_BlockedWithinWindow(t *testing.T) {
	log := NewAuditLog()
	base := time.Unix(1_700_000_000, 0)
	log.now = func() time.Time { return base }

	// Two blocked inside the window, one outside.
	log.Append("u1", Result{Status: StatusBlocked, Timestamp: base.Add(-10 * time.Minute).UnixMilli()})
	log.Append("u1", Result{Status: StatusBlocked, Timestamp: base.Add(-2 * time.Minute).UnixMilli()})
	log.Append("u1", Result{Status: StatusBlocked, Timestamp: base.Add(-1 * time.Minute).UnixMilli()})
	log.Append("u1", Result{Status: StatusApproved, Timestamp: base.UnixMilli()})

	if got := log.BlockedWithin("u1", 5*time.Minute); got != 2 {
		t.Errorf("BlockedWithin = %d, want 2", got)
	}
}

func TestAuditLog_RecentContext(t *testing.T) {
	log := NewAuditLog()
	for i := 0; i < 8; i++ {
		log.Append("u1", Result{Status: StatusApproved, Risk: RiskScore{Level: datatypes.RiskLow}})
	}
	for i := 0; i < 4; i++ {
		log.Append("u1", Result{Status: StatusBlocked, Risk: RiskScore{Level: datatypes.RiskCritical}})
	}

	failed, highRisk := log.RecentContext("u1")
	if failed != 4 {
		t.Errorf("failed validations in last 10 = %d, want 4", failed)
	}
	if highRisk != 4 {
		t.Errorf("high-risk in last 20 = %d, want 4", highRisk)
	}
}

func TestAuditLog_ConcurrentUsers(t *testing.T) {
	log := NewAuditLog()
	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		userID := string(rune('a' + u))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				log.Append(userID, Result{Status: StatusApproved})
			}
		}()
	}
	wg.Wait()

	for u := 0; u < 8; u++ {
		userID := string(rune('a' + u))
		if got := log.UserStats(userID).TotalValidations; got != 200 {
			t.Errorf("user %s has %d entries, want 200", userID, got)
		}
	}
}
