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

// RateLimiter implements a per-user sliding window keyed by risk level.
//
// Description:
//
//	Each (user, risk level) pair owns a one-minute window of timestamps.
//	Check inspects the window without consuming quota; Record appends.
//	The split exists because blocked calls must not consume quota — the
//	validator records only after a non-blocked decision.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[datatypes.RiskLevel]int
	windows map[string][]int64 // timestamps in Unix milliseconds
	now     func() time.Time
}

// NewRateLimiter creates a limiter with per-level limits (requests/minute).
// Levels absent from the map are not limited.
func NewRateLimiter(limitsPerMin map[datatypes.RiskLevel]int) *RateLimiter {
	limits := make(map[datatypes.RiskLevel]int, len(limitsPerMin))
	for k, v := range limitsPerMin {
		limits[k] = v
	}
	return &RateLimiter{
		limits:  limits,
		windows: make(map[string][]int64),
		now:     time.Now,
	}
}

// Check reports whether another request at this risk level is within the
// user's window. Does not consume quota.
//
// Outputs:
//   - bool: True if the request is within the limit.
//   - time.Duration: When limited, how long until the window frees up.
func (r *RateLimiter) Check(userID string, level datatypes.RiskLevel) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, exists := r.limits[level]
	if !exists || limit == 0 {
		return true, 0
	}

	key := userID + "/" + string(level)
	now := r.now().UnixMilli()
	pruned := r.prune(key, now)

	if len(pruned) >= limit {
		oldestInWindow := pruned[0]
		retryAfter := time.Duration(oldestInWindow+60_000-now) * time.Millisecond
		return false, retryAfter
	}
	return true, 0
}

// Record consumes one unit of quota for the user at the given level.
func (r *RateLimiter) Record(userID string, level datatypes.RiskLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit, exists := r.limits[level]; !exists || limit == 0 {
		return
	}

	key := userID + "/" + string(level)
	now := r.now().UnixMilli()
	r.windows[key] = append(r.prune(key, now), now)
}

// prune drops window entries older than one minute. Caller holds the lock.
func (r *RateLimiter) prune(key string, now int64) []int64 {
	windowStart := now - 60_000
	timestamps := r.windows[key]
	pruned := make([]int64, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts > windowStart {
			pruned = append(pruned, ts)
		}
	}
	r.windows[key] = pruned
	return pruned
}
