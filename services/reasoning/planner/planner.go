// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner drives the bounded Thought→Action→Observation loop that
// turns an intent envelope into a validated execution plan.
//
// The loop is an explicit state machine, not a coroutine pipeline: the only
// suspension points are the memory fetches (inside the context builder) and
// the per-iteration LLM call. Parsing, tool resolution, and safety
// validation are pure in-memory CPU between those edges.
//
// Thread Safety:
//
//	A Planner is safe for concurrent use; each Plan call owns all of its
//	per-request state.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/contextbuilder"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/llm"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/safety"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/telemetry"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

// stopSequences halt generation before the model hallucinates its own
// observation.
var stopSequences = []string{"Observation:", "\n\n\n"}

// Config holds the planner's loop parameters.
type Config struct {
	// MaxIterations bounds the reasoning loop. Default 10.
	MaxIterations int

	// Temperature is the sampling temperature for all but the final
	// permitted iteration. Default 0.7.
	Temperature float64

	// FinalTemperature is used on the last permitted iteration to reduce
	// variance when the model must produce a Final Answer. Default 0.2.
	FinalTemperature float64

	// MaxTokens bounds each LLM response. Default 512.
	MaxTokens int

	// LLMTimeout bounds each LLM call. Default 30s.
	LLMTimeout time.Duration
}

// DefaultConfig returns the standard loop parameters.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    10,
		Temperature:      0.7,
		FinalTemperature: 0.2,
		MaxTokens:        512,
		LLMTimeout:       30 * time.Second,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Temperature <= 0 {
		c.Temperature = d.Temperature
	}
	if c.FinalTemperature <= 0 {
		c.FinalTemperature = d.FinalTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = d.LLMTimeout
	}
	return c
}

// status is the loop's internal state.
type status int

const (
	statusRunning status = iota
	statusFinal
	statusFailed
)

// Planner produces execution plans.
type Planner struct {
	llm       llm.Client
	builder   *contextbuilder.Builder
	catalog   *tools.Catalog
	validator *safety.Validator
	dispatch  Dispatcher
	config    Config
	logger    *slog.Logger
}

// New creates a planner.
//
// Inputs:
//   - llmClient: The LLM adapter. Must not be nil.
//   - builder: The context builder. Must not be nil.
//   - catalog: The tool catalog. Must not be nil.
//   - validator: The safety validator. Must not be nil.
//   - dispatch: Observation dispatcher. Nil selects SynthesizeObservation.
//   - config: Loop parameters; zero fields take defaults.
//   - logger: Structured logger. Nil selects slog.Default().
func New(
	llmClient llm.Client,
	builder *contextbuilder.Builder,
	catalog *tools.Catalog,
	validator *safety.Validator,
	dispatch Dispatcher,
	config Config,
	logger *slog.Logger,
) (*Planner, error) {
	if llmClient == nil {
		return nil, fmt.Errorf("llmClient must not be nil")
	}
	if builder == nil {
		return nil, fmt.Errorf("builder must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog must not be nil")
	}
	if validator == nil {
		return nil, fmt.Errorf("validator must not be nil")
	}
	if dispatch == nil {
		dispatch = SynthesizeObservation
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		llm:       llmClient,
		builder:   builder,
		catalog:   catalog,
		validator: validator,
		dispatch:  dispatch,
		config:    config.withDefaults(),
		logger:    logger,
	}, nil
}

// Plan runs the ReAct loop for one envelope.
//
// Description:
//
//	Terminal conditions: a parseable Final Answer, the iteration limit, an
//	LLM adapter error, caller cancellation, or the per-user abuse
//	short-circuit. Recoverable conditions (parse errors, unknown tools,
//	missing parameters, blocked steps) become observations and the loop
//	continues. The returned plan is always well-formed; the core never
//	panics past this boundary.
//
// Outputs:
//   - *datatypes.ExecutionPlan: The finished plan. Never nil.
func (p *Planner) Plan(ctx context.Context, envelope datatypes.IntentEnvelope) *datatypes.ExecutionPlan {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "planner.Planner.Plan",
		oteltrace.WithAttributes(
			attribute.String("user_id", envelope.UserID),
			attribute.String("intent", envelope.IntentName),
		),
	)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, p.logger)
	plan := &datatypes.ExecutionPlan{
		UserID:     envelope.UserID,
		IntentName: envelope.IntentName,
		RawQuery:   envelope.RawQuery,
	}

	fail := func(kind datatypes.FailureKind, message, outcome string) *datatypes.ExecutionPlan {
		plan.Success = false
		plan.Error = &datatypes.PlanError{Kind: kind, Message: message}
		span.SetStatus(codes.Error, message)
		plansTotal.WithLabelValues(outcome).Inc()
		planIterations.Observe(float64(plan.Iterations))
		return plan
	}

	// Abuse short-circuit: repeated blocked calls across separate plans
	// must not let a user use the planner as a probe.
	if abused, reason := p.validator.CheckAbuse(envelope.UserID); abused {
		logger.Warn("plan short-circuited by abuse counter",
			slog.String("user_id", envelope.UserID),
		)
		return fail(datatypes.FailBlockedBySafety, reason, "abuse")
	}

	// Soft whole-plan budget, checked against a monotonic deadline before
	// each iteration.
	planBudget := time.Duration(p.config.MaxIterations)*p.config.LLMTimeout + p.builder.BuildTimeout()
	deadline := time.Now().Add(planBudget)

	// Assemble the context. Degrades to empty on memory-service failure.
	memoryContext := p.builder.BuildContext(ctx, envelope.UserID, envelope.RawQuery)
	stable, knowledge, episodes := contextbuilder.RenderSections(memoryContext, p.builder.RenderBudget())

	candidates := p.catalog.Candidates(envelope.IntentName)
	candidateNames := make([]string, 0, len(candidates))
	for _, c := range candidates {
		candidateNames = append(candidateNames, string(c))
	}

	prompt := &Prompt{
		Manifest:         p.catalog.Manifest(),
		CandidateHint:    candidateHint(candidateNames),
		ContextStable:    stable,
		ContextKnowledge: knowledge,
		ContextEpisodes:  episodes,
		RawQuery:         envelope.RawQuery,
	}
	budgetChars := BudgetChars(p.llm.ContextWindow(), p.config.MaxTokens)

	state := statusRunning
	blockedSeen := false

	for i := 0; i < p.config.MaxIterations && state == statusRunning; i++ {
		if err := ctx.Err(); err != nil {
			return fail(datatypes.FailCancelled, fmt.Sprintf("plan cancelled: %v", err), "cancelled")
		}
		if time.Now().After(deadline) {
			return fail(datatypes.FailIterationLimit,
				fmt.Sprintf("plan exceeded its time budget of %v", planBudget), "iteration_limit")
		}

		temperature := p.config.Temperature
		if i == p.config.MaxIterations-1 {
			// Last chance: sample conservatively so the model converges
			// on a Final Answer instead of exploring.
			temperature = p.config.FinalTemperature
		}

		text, droppedEntries := prompt.Render(budgetChars)
		if droppedEntries > 0 {
			scratchpadDroppedTotal.Add(float64(droppedEntries))
		}

		llmCtx, cancel := context.WithTimeout(ctx, p.config.LLMTimeout)
		result, err := p.llm.Generate(llmCtx, &llm.Request{
			Prompt:      text,
			MaxTokens:   p.config.MaxTokens,
			Temperature: temperature,
			Stop:        stopSequences,
		})
		cancel()
		plan.Iterations = i + 1

		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return fail(datatypes.FailCancelled, fmt.Sprintf("plan cancelled: %v", ctx.Err()), "cancelled")
			}
			return fail(datatypes.FailLLMError, fmt.Sprintf("LLM adapter failed: %v", err), "llm_error")
		}

		parsed, parseErr := ParseResponse(result.Text)
		if parseErr != nil {
			recoveredErrorsTotal.WithLabelValues("parse_error").Inc()
			prompt.Scratchpad = append(prompt.Scratchpad, ScratchpadEntry{
				Thought:     firstLine(result.Text),
				Observation: fmt.Sprintf("Error: %v. Respond with an Action and Action Input, or a Final Answer.", parseErr),
			})
			continue
		}

		if parsed.Kind == KindFinal {
			plan.FinalAnswer = parsed.FinalAnswer
			state = statusFinal
			break
		}

		spec, lookupErr := p.catalog.Lookup(parsed.Action)
		if lookupErr != nil {
			recoveredErrorsTotal.WithLabelValues("unknown_tool").Inc()
			prompt.Scratchpad = append(prompt.Scratchpad, ScratchpadEntry{
				Thought:     parsed.Thought,
				Observation: fmt.Sprintf("Error: %v. Choose a tool from the Available Tools list.", lookupErr),
			})
			continue
		}

		params, extractErr := tools.ExtractParameters(spec, envelope.Entities, parsed.ActionInput)
		if extractErr != nil {
			recoveredErrorsTotal.WithLabelValues("missing_parameters").Inc()
			prompt.Scratchpad = append(prompt.Scratchpad, ScratchpadEntry{
				Thought:     parsed.Thought,
				Action:      string(spec.Type),
				ActionInput: parsed.ActionInput,
				Observation: fmt.Sprintf("Error: %v. Provide the missing parameters in Action Input.", extractErr),
			})
			continue
		}

		decision := p.validator.Validate(ctx, envelope.UserID, spec, params, safety.Options{
			ConfirmationToken: envelope.ConfirmationToken,
		})

		switch decision.Status {
		case safety.StatusBlocked:
			blockedSeen = true
			observation := fmt.Sprintf("Blocked: %s", decision.BlockedReason)
			plan.Steps = append(plan.Steps, datatypes.ToolCall{
				Tool:        spec.Type,
				Parameters:  map[string]any{},
				Thought:     parsed.Thought,
				Observation: observation,
				Status:      datatypes.StepBlocked,
				Warnings:    decision.Warnings,
			})
			prompt.Scratchpad = append(prompt.Scratchpad, ScratchpadEntry{
				Thought:     parsed.Thought,
				Action:      string(spec.Type),
				ActionInput: parsed.ActionInput,
				Observation: observation,
			})

		case safety.StatusRequiresConfirmation:
			observation := fmt.Sprintf("%s: awaiting user confirmation before execution", spec.Type)
			plan.Steps = append(plan.Steps, datatypes.ToolCall{
				Tool:                spec.Type,
				Parameters:          decision.Parameters,
				Thought:             parsed.Thought,
				Observation:         observation,
				Status:              datatypes.StepPendingConfirmation,
				Warnings:            decision.Warnings,
				ConfirmationID:      decision.ConfirmationID,
				ConfirmationMessage: decision.ConfirmationMessage,
			})
			prompt.Scratchpad = append(prompt.Scratchpad, ScratchpadEntry{
				Thought:     parsed.Thought,
				Action:      string(spec.Type),
				ActionInput: parsed.ActionInput,
				Observation: observation,
			})

		default: // Approved or Sanitized
			observation, dispatchErr := p.dispatch(ctx, spec.Type, decision.Parameters)
			if dispatchErr != nil {
				observation = fmt.Sprintf("Error: tool execution failed: %v", dispatchErr)
			}
			status := datatypes.StepApproved
			if decision.Status == safety.StatusSanitized {
				status = datatypes.StepSanitized
			}
			plan.Steps = append(plan.Steps, datatypes.ToolCall{
				Tool:        spec.Type,
				Parameters:  decision.Parameters,
				Thought:     parsed.Thought,
				Observation: observation,
				Sanitized:   decision.Status == safety.StatusSanitized,
				Status:      status,
				Warnings:    decision.Warnings,
			})
			prompt.Scratchpad = append(prompt.Scratchpad, ScratchpadEntry{
				Thought:     parsed.Thought,
				Action:      string(spec.Type),
				ActionInput: parsed.ActionInput,
				Observation: observation,
			})
		}
	}

	if state != statusFinal {
		return fail(datatypes.FailIterationLimit,
			fmt.Sprintf("no final answer within %d iterations", p.config.MaxIterations), "iteration_limit")
	}

	plan.Success = plan.FinalAnswer != "" && !blockedSeen && !plan.HasUnconfirmedStep()
	outcome := "success"
	switch {
	case blockedSeen:
		outcome = "blocked"
	case plan.HasUnconfirmedStep():
		outcome = "unconfirmed"
	}

	span.SetAttributes(
		attribute.Int("iterations", plan.Iterations),
		attribute.Int("steps", len(plan.Steps)),
		attribute.Bool("success", plan.Success),
	)
	span.SetStatus(codes.Ok, "")
	plansTotal.WithLabelValues(outcome).Inc()
	planIterations.Observe(float64(plan.Iterations))

	logger.Info("plan finished",
		slog.String("user_id", envelope.UserID),
		slog.String("intent", envelope.IntentName),
		slog.Int("iterations", plan.Iterations),
		slog.Int("steps", len(plan.Steps)),
		slog.Bool("success", plan.Success),
	)
	return plan
}

// firstLine extracts the first non-empty line of malformed output for the
// scratchpad's thought slot.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return "(empty response)"
}
