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
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

func TestRateLimiter_WindowBoundary(t *testing.T) {
	rl := NewRateLimiter(map[datatypes.RiskLevel]int{datatypes.RiskLow: 3})

	// The N-th request within the window succeeds; the N+1-th blocks.
	for i := 0; i < 3; i++ {
		ok, _ := rl.Check("u1", datatypes.RiskLow)
		if !ok {
			t.Fatalf("request %d should be within the limit", i+1)
		}
		rl.Record("u1", datatypes.RiskLow)
	}

	ok, retryAfter := rl.Check("u1", datatypes.RiskLow)
	if ok {
		t.Error("request beyond the window allowance should block")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want within (0, 1m]", retryAfter)
	}
}

func TestRateLimiter_CheckDoesNotConsume(t *testing.T) {
	rl := NewRateLimiter(map[datatypes.RiskLevel]int{datatypes.RiskCritical: 1})

	// Many checks without Record must not exhaust the window.
	for i := 0; i < 10; i++ {
		if ok, _ := rl.Check("u1", datatypes.RiskCritical); !ok {
			t.Fatal("Check alone must not consume quota")
		}
	}
	rl.Record("u1", datatypes.RiskCritical)
	if ok, _ := rl.Check("u1", datatypes.RiskCritical); ok {
		t.Error("window should be exhausted after one Record at limit 1")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(map[datatypes.RiskLevel]int{datatypes.RiskHigh: 1})

	current := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return current }

	rl.Record("u1", datatypes.RiskHigh)
	if ok, _ := rl.Check("u1", datatypes.RiskHigh); ok {
		t.Fatal("should be limited inside the window")
	}

	current = current.Add(61 * time.Second)
	if ok, _ := rl.Check("u1", datatypes.RiskHigh); !ok {
		t.Error("window should have slid past the old entry")
	}
}

func TestRateLimiter_UsersAndLevelsIndependent(t *testing.T) {
	rl := NewRateLimiter(map[datatypes.RiskLevel]int{
		datatypes.RiskLow:  1,
		datatypes.RiskHigh: 1,
	})

	rl.Record("u1", datatypes.RiskLow)

	if ok, _ := rl.Check("u1", datatypes.RiskHigh); !ok {
		t.Error("a different risk level must have its own window")
	}
	if ok, _ := rl.Check("u2", datatypes.RiskLow); !ok {
		t.Error("a different user must have their own window")
	}
}

func TestRateLimiter_UnconfiguredLevelUnlimited(t *testing.T) {
	rl := NewRateLimiter(map[datatypes.RiskLevel]int{})
	for i := 0; i < 100; i++ {
		if ok, _ := rl.Check("u1", datatypes.RiskLow); !ok {
			t.Fatal("unconfigured level should never limit")
		}
		rl.Record("u1", datatypes.RiskLow)
	}
}
