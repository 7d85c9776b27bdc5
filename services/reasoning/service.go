// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reasoning wires the ReAct reasoning core: context builder, tool
// catalog, LLM adapter, planner, and safety validator, behind a service
// facade with a gin HTTP surface.
package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/contextbuilder"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/llm"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/planner"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/safety"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

// Service owns the reasoning core's components for one process.
//
// Thread Safety: Safe for concurrent use; Plan calls are independent tasks.
type Service struct {
	config    ServiceConfig
	catalog   *tools.Catalog
	validator *safety.Validator
	builder   *contextbuilder.Builder
	planner   *planner.Planner
	tokens    *safety.ConfirmationStore
	logger    *slog.Logger
}

// NewService assembles the reasoning core.
//
// Inputs:
//   - config: Service configuration (validated by the caller or loader).
//   - llmClient: The LLM adapter. Must not be nil.
//   - dispatch: Observation dispatcher. Nil selects the synthesizer.
//   - logger: Structured logger. Nil selects slog.Default().
//
// Outputs:
//   - *Service: The assembled service. Callers must Close it.
//   - error: Non-nil if any component fails to construct.
func NewService(config ServiceConfig, llmClient llm.Client, dispatch planner.Dispatcher, logger *slog.Logger) (*Service, error) {
	if llmClient == nil {
		return nil, fmt.Errorf("llmClient must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := tools.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("building tool catalog: %w", err)
	}

	policies := safety.DefaultPolicies()
	if config.Safety.PoliciesPath != "" {
		policies, err = safety.LoadPolicies(config.Safety.PoliciesPath)
		if err != nil {
			return nil, err
		}
	}

	tokens, err := safety.OpenConfirmationStore(config.Safety.TokenDir,
		time.Duration(config.Safety.TokenTTLMs)*time.Millisecond)
	if err != nil {
		return nil, err
	}

	validator := safety.NewValidator(policies, tokens, logger)

	builder := contextbuilder.NewBuilder(
		contextbuilder.NewMemoryClient(config.Memory.ServiceURL),
		contextbuilder.Config{
			PerFetchTimeout: time.Duration(config.Memory.PerFetchTimeoutMs) * time.Millisecond,
			BuildTimeout:    time.Duration(config.Memory.ContextDeadlineMs) * time.Millisecond,
			RenderBudget:    config.Memory.ContextCharBudget,
		},
		logger,
	)

	p, err := planner.New(llmClient, builder, catalog, validator, dispatch, planner.Config{
		MaxIterations:    config.MaxIterations,
		Temperature:      config.LLM.Temperature,
		FinalTemperature: config.LLM.FinalTemperature,
		MaxTokens:        config.LLM.MaxTokens,
		LLMTimeout:       time.Duration(config.LLM.TimeoutMs) * time.Millisecond,
	}, logger)
	if err != nil {
		tokens.Close()
		return nil, err
	}

	return &Service{
		config:    config,
		catalog:   catalog,
		validator: validator,
		builder:   builder,
		planner:   p,
		tokens:    tokens,
		logger:    logger,
	}, nil
}

// Plan produces an execution plan for one envelope.
func (s *Service) Plan(ctx context.Context, envelope datatypes.IntentEnvelope) *datatypes.ExecutionPlan {
	return s.planner.Plan(ctx, envelope)
}

// Stats returns the user's validation statistics.
func (s *Service) Stats(userID string) safety.Stats {
	return s.validator.UserStats(userID)
}

// Catalog exposes the tool catalog for the tools endpoint and CLI.
func (s *Service) Catalog() *tools.Catalog {
	return s.catalog
}

// StartPolicyWatcher begins hot-reloading the policy file, when configured.
// No-op when no policy file is set or watching is disabled.
func (s *Service) StartPolicyWatcher(ctx context.Context) error {
	if s.config.Safety.PoliciesPath == "" || !s.config.Safety.WatchPolicies {
		return nil
	}
	return safety.WatchPolicies(ctx, s.config.Safety.PoliciesPath, s.logger, s.validator.SetPolicies)
}

// Close releases the service's resources.
func (s *Service) Close() error {
	return s.tokens.Close()
}
