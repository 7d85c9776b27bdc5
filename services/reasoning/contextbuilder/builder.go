// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contextbuilder

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/telemetry"
)

// Fetch sizes fixed by the context contract.
const (
	recentTurnsLimit = 5
	knowledgeLimit   = 5
	episodesLimit    = 3
)

// Config holds the builder's deadlines and budgets.
type Config struct {
	// PerFetchTimeout bounds each memory-service request. Default 2s.
	PerFetchTimeout time.Duration

	// BuildTimeout bounds the whole context assembly. Default 3s.
	BuildTimeout time.Duration

	// RenderBudget is the combined character budget for knowledge and
	// episodes in the rendered prompt block. Default 1500.
	RenderBudget int
}

// DefaultConfig returns the standard deadlines.
func DefaultConfig() Config {
	return Config{
		PerFetchTimeout: 2 * time.Second,
		BuildTimeout:    3 * time.Second,
		RenderBudget:    1500,
	}
}

// Builder assembles a Context per request.
//
// Thread Safety: Safe for concurrent use.
type Builder struct {
	client *MemoryClient
	config Config
	logger *slog.Logger
}

// NewBuilder creates a context builder.
//
// Inputs:
//   - client: The memory-service client. Must not be nil.
//   - config: Deadlines and budgets; zero fields take defaults.
//   - logger: Structured logger. Nil selects slog.Default().
func NewBuilder(client *MemoryClient, config Config, logger *slog.Logger) *Builder {
	defaults := DefaultConfig()
	if config.PerFetchTimeout <= 0 {
		config.PerFetchTimeout = defaults.PerFetchTimeout
	}
	if config.BuildTimeout <= 0 {
		config.BuildTimeout = defaults.BuildTimeout
	}
	if config.RenderBudget <= 0 {
		config.RenderBudget = defaults.RenderBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{client: client, config: config, logger: logger}
}

// RenderBudget exposes the configured knowledge/episodes character budget.
func (b *Builder) RenderBudget() int { return b.config.RenderBudget }

// BuildTimeout exposes the whole-build deadline; the planner folds it into
// its soft plan budget.
func (b *Builder) BuildTimeout() time.Duration { return b.config.BuildTimeout }

// BuildContext assembles the memory context for one request.
//
// Description:
//
//	Issues the four memory fetches in parallel and joins them under the
//	whole-build deadline. A failure or timeout on any sub-fetch degrades
//	that field to empty with a logged warning; it never cancels the other
//	fetches and never fails the call. The returned Context is therefore
//	always structurally valid.
//
// Inputs:
//   - ctx: Caller context; cancellation is honored at every fetch.
//   - userID: The requesting user.
//   - rawQuery: The user's utterance, used as the retrieval query.
//
// Outputs:
//   - datatypes.Context: The assembled context. Never nil fields beyond
//     empty slices/maps.
func (b *Builder) BuildContext(ctx context.Context, userID, rawQuery string) datatypes.Context {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "contextbuilder.Builder.BuildContext",
	)
	defer span.End()

	buildCtx, cancel := context.WithTimeout(ctx, b.config.BuildTimeout)
	defer cancel()

	logger := telemetry.LoggerWithTrace(ctx, b.logger)

	var result datatypes.Context

	// The group context is deliberately not passed to the fetches: one
	// fetch failing must not cancel the others. Each fetch gets its own
	// per-fetch deadline derived from the build deadline, and every
	// goroutine returns nil so the group never short-circuits.
	g := new(errgroup.Group)

	g.Go(func() error {
		fetchCtx, fetchCancel := withTimeout(buildCtx, b.config.PerFetchTimeout)
		defer fetchCancel()
		start := time.Now()
		prefs, err := b.client.FetchPreferences(fetchCtx, userID)
		recordFetch("preferences", time.Since(start).Seconds(), err)
		if err != nil {
			logger.Warn("preferences fetch degraded to empty", slog.String("error", err.Error()))
			return nil
		}
		result.Preferences = prefs
		return nil
	})

	g.Go(func() error {
		fetchCtx, fetchCancel := withTimeout(buildCtx, b.config.PerFetchTimeout)
		defer fetchCancel()
		start := time.Now()
		messages, err := b.client.FetchConversation(fetchCtx, userID, recentTurnsLimit)
		recordFetch("conversation", time.Since(start).Seconds(), err)
		if err != nil {
			logger.Warn("conversation fetch degraded to empty", slog.String("error", err.Error()))
			return nil
		}
		turns := make([]datatypes.Message, 0, len(messages))
		for _, m := range messages {
			turns = append(turns, datatypes.Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
		}
		result.RecentTurns = turns
		return nil
	})

	g.Go(func() error {
		fetchCtx, fetchCancel := withTimeout(buildCtx, b.config.PerFetchTimeout)
		defer fetchCancel()
		start := time.Now()
		items, err := b.client.QueryKnowledge(fetchCtx, userID, rawQuery, knowledgeLimit)
		recordFetch("knowledge", time.Since(start).Seconds(), err)
		if err != nil {
			logger.Warn("knowledge query degraded to empty", slog.String("error", err.Error()))
			return nil
		}
		knowledge := make([]datatypes.KnowledgeItem, 0, len(items))
		for _, item := range items {
			knowledge = append(knowledge, datatypes.KnowledgeItem{Text: item.Text, Relevance: item.Relevance})
		}
		result.Knowledge = knowledge
		return nil
	})

	g.Go(func() error {
		fetchCtx, fetchCancel := withTimeout(buildCtx, b.config.PerFetchTimeout)
		defer fetchCancel()
		start := time.Now()
		items, err := b.client.QueryEpisodes(fetchCtx, userID, rawQuery, episodesLimit)
		recordFetch("episodes", time.Since(start).Seconds(), err)
		if err != nil {
			logger.Warn("episodic query degraded to empty", slog.String("error", err.Error()))
			return nil
		}
		episodes := make([]datatypes.Episode, 0, len(items))
		for _, item := range items {
			episodes = append(episodes, datatypes.Episode{Text: item.Text, Timestamp: item.Timestamp, Similarity: item.Similarity})
		}
		result.Episodes = episodes
		return nil
	})

	// All goroutines return nil; Wait only joins.
	_ = g.Wait()

	if result.Preferences == nil {
		result.Preferences = map[string]any{}
	}

	span.SetAttributes(
		attribute.Int("preferences_count", len(result.Preferences)),
		attribute.Int("recent_turns", len(result.RecentTurns)),
		attribute.Int("knowledge_count", len(result.Knowledge)),
		attribute.Int("episodes_count", len(result.Episodes)),
	)
	return result
}
