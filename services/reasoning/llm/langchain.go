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
	"time"

	"github.com/awnumar/memguard"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// LangChainClient adapts a langchaingo model to the Client interface.
//
// Description:
//
//	Wraps any llms.Model (Ollama for local inference, an OpenAI-compatible
//	endpoint for remote). Stop trimming and UTF-8 cleanup are applied on
//	top of whatever the backend returns, so the planner's guarantees hold
//	regardless of backend behavior. No retries: a failed call surfaces to
//	the planner, which owns retry policy.
//
// Thread Safety: Safe for concurrent use (llms.Model backends are).
type LangChainClient struct {
	model         llms.Model
	name          string
	modelName     string
	contextWindow int
}

// NewOllamaClient creates an adapter backed by a local Ollama server.
//
// Inputs:
//   - serverURL: Ollama base URL, e.g. "http://localhost:11434".
//   - model: Model name, e.g. "mistral:7b-instruct".
//   - contextWindow: Context budget in tokens. Zero selects 4096.
//
// Outputs:
//   - *LangChainClient: The configured adapter.
//   - error: Non-nil if the backend cannot be constructed.
func NewOllamaClient(serverURL, model string, contextWindow int) (*LangChainClient, error) {
	backend, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama backend: %w", err)
	}
	return newLangChainClient(backend, "ollama", model, contextWindow), nil
}

// NewOpenAIClient creates an adapter backed by an OpenAI-compatible endpoint.
//
// Description:
//
//	The API key is supplied as a memguard enclave so the plaintext secret
//	lives in locked memory and is wiped immediately after the backend
//	client captures it.
//
// Inputs:
//   - baseURL: API base URL. Empty selects the provider default.
//   - model: Model name.
//   - contextWindow: Context budget in tokens. Zero selects 4096.
//   - apiKey: Enclave holding the API key. Must not be nil.
//
// Outputs:
//   - *LangChainClient: The configured adapter.
//   - error: Non-nil if the key cannot be opened or the backend fails.
func NewOpenAIClient(baseURL, model string, contextWindow int, apiKey *memguard.Enclave) (*LangChainClient, error) {
	if apiKey == nil {
		return nil, fmt.Errorf("apiKey enclave must not be nil")
	}

	buf, err := apiKey.Open()
	if err != nil {
		return nil, fmt.Errorf("opening API key enclave: %w", err)
	}
	defer buf.Destroy()

	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(buf.String()),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	backend, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai backend: %w", err)
	}
	return newLangChainClient(backend, "openai", model, contextWindow), nil
}

func newLangChainClient(model llms.Model, name, modelName string, contextWindow int) *LangChainClient {
	if contextWindow <= 0 {
		contextWindow = 4096
	}
	return &LangChainClient{
		model:         model,
		name:          name,
		modelName:     modelName,
		contextWindow: contextWindow,
	}
}

// Generate implements Client.Generate.
func (c *LangChainClient) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("llm: request must not be nil")
	}

	ctx, span := otel.Tracer("aleutian.reasoning").Start(ctx, "llm.LangChainClient.Generate",
		oteltrace.WithAttributes(
			attribute.String("provider", c.name),
			attribute.String("model", c.modelName),
			attribute.Int("prompt_len", len(req.Prompt)),
			attribute.Int("max_tokens", req.MaxTokens),
		),
	)
	defer span.End()

	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(req.Stop))
	}

	start := time.Now()
	raw, err := llms.GenerateFromSinglePrompt(ctx, c.model, req.Prompt, opts...)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordGeneration(c.name, "error", duration.Seconds(), 0)
		return nil, fmt.Errorf("llm generate via %s: %w", c.name, err)
	}

	text := CleanText(raw, req.Stop)
	tokens := EstimateTokens(text)

	span.SetAttributes(
		attribute.Int("response_len", len(text)),
		attribute.Int("tokens_used", tokens),
	)
	recordGeneration(c.name, "success", duration.Seconds(), tokens)

	return &Result{Text: text, TokensUsed: tokens}, nil
}

// Name implements Client.Name.
func (c *LangChainClient) Name() string { return c.name }

// Model implements Client.Model.
func (c *LangChainClient) Model() string { return c.modelName }

// ContextWindow implements Client.ContextWindow.
func (c *LangChainClient) ContextWindow() int { return c.contextWindow }
