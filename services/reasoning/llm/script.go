// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptClient replays a fixed sequence of responses.
//
// Description:
//
//	Returns its scripted responses in order, one per Generate call, with
//	the same stop-trimming and UTF-8 guarantees as a real backend. Once
//	the script runs out, further calls return an error. Used for
//	deterministic planner tests and for mock mode when no backend is
//	configured.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type ScriptClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
	window    int

	// Err, when non-nil, is returned by every Generate call instead of a
	// scripted response. Set it to exercise adapter-failure paths.
	Err error

	// Requests records every request received, for assertion in tests.
	Requests []Request
}

// NewScriptClient creates a scripted client with the given responses.
func NewScriptClient(responses ...string) *ScriptClient {
	return &ScriptClient{responses: responses, window: 4096}
}

// WithContextWindow overrides the reported context window. Returns the
// receiver for chaining.
func (c *ScriptClient) WithContextWindow(tokens int) *ScriptClient {
	c.window = tokens
	return c
}

// Generate implements Client.Generate by replaying the script.
func (c *ScriptClient) Generate(_ context.Context, req *Request) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req != nil {
		c.Requests = append(c.Requests, *req)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if c.calls >= len(c.responses) {
		return nil, fmt.Errorf("script exhausted after %d responses", len(c.responses))
	}

	raw := c.responses[c.calls]
	c.calls++

	var stop []string
	if req != nil {
		stop = req.Stop
	}
	text := CleanText(raw, stop)
	return &Result{Text: text, TokensUsed: EstimateTokens(text)}, nil
}

// Calls returns how many Generate calls have been served.
func (c *ScriptClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Name implements Client.Name.
func (c *ScriptClient) Name() string { return "script" }

// Model implements Client.Model.
func (c *ScriptClient) Model() string { return "scripted" }

// ContextWindow implements Client.ContextWindow.
func (c *ScriptClient) ContextWindow() int { return c.window }
