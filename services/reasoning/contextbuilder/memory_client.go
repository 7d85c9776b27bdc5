// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contextbuilder assembles the per-request memory context by
// querying the external memory service. The four fetches (preferences,
// recent turns, knowledge, episodes) run concurrently under a shared
// deadline; any failure degrades that field to empty and never fails the
// pipeline.
package contextbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps memory-service response bodies. Oversize payloads
// are treated as fetch failures, not as context.
const maxResponseBytes = 1 << 20 // 1 MiB

// MemoryClient speaks the memory service's HTTP API.
//
// Description:
//
//	All responses are treated as untrusted input: missing fields default,
//	extra fields are ignored, malformed JSON is a fetch error. The client
//	performs no retries; the builder's degradation policy handles failure.
//
// Thread Safety: Safe for concurrent use (http.Client is).
type MemoryClient struct {
	baseURL string
	http    *http.Client
}

// NewMemoryClient creates a client for the memory service at baseURL.
func NewMemoryClient(baseURL string) *MemoryClient {
	return &MemoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// FetchPreferences retrieves the user's preference map.
//
// GET /long-term/preferences/{user_id}
func (c *MemoryClient) FetchPreferences(ctx context.Context, userID string) (map[string]any, error) {
	var out map[string]any
	err := c.getJSON(ctx, fmt.Sprintf("/long-term/preferences/%s", url.PathEscape(userID)), &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// conversationMessage is one short-term memory turn. Unknown fields in the
// response are ignored; missing fields default.
type conversationMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// FetchConversation retrieves the user's recent turns, newest last.
//
// GET /short-term/conversation/{user_id}?limit={n}
func (c *MemoryClient) FetchConversation(ctx context.Context, userID string, limit int) ([]conversationMessage, error) {
	path := fmt.Sprintf("/short-term/conversation/%s?limit=%d", url.PathEscape(userID), limit)
	var out []conversationMessage
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type knowledgeItem struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

// QueryKnowledge retrieves up to k relevant facts.
//
// POST /long-term/knowledge/query {user_id, query, k}
func (c *MemoryClient) QueryKnowledge(ctx context.Context, userID, query string, k int) ([]knowledgeItem, error) {
	body := map[string]any{"user_id": userID, "query": query, "k": k}
	var out []knowledgeItem
	if err := c.postJSON(ctx, "/long-term/knowledge/query", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type episodeItem struct {
	Text       string  `json:"text"`
	Timestamp  int64   `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// QueryEpisodes retrieves up to n semantically similar past episodes.
//
// POST /episodic/query {user_id, query_text, n_results}
func (c *MemoryClient) QueryEpisodes(ctx context.Context, userID, queryText string, n int) ([]episodeItem, error) {
	body := map[string]any{"user_id": userID, "query_text": queryText, "n_results": n}
	var out []episodeItem
	if err := c.postJSON(ctx, "/episodic/query", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON issues a GET and decodes the response into out.
func (c *MemoryClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request %s: %w", path, err)
	}
	return c.do(req, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (c *MemoryClient) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("building request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and decodes the bounded response body.
func (c *MemoryClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("memory service request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused, then fail.
		io.CopyN(io.Discard, resp.Body, 512)
		return fmt.Errorf("memory service %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("reading memory service response %s: %w", req.URL.Path, err)
	}
	if len(raw) > maxResponseBytes {
		return fmt.Errorf("memory service response %s exceeds %d bytes", req.URL.Path, maxResponseBytes)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding memory service response %s: %w", req.URL.Path, err)
	}
	return nil
}

// withTimeout wraps ctx with the per-fetch deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
