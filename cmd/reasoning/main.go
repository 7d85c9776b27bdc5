// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command reasoning starts the AleutianVoice reasoning API server.
//
// The reasoning service turns classified intents into validated execution
// plans using a bounded ReAct loop over an LLM, with memory context from
// the memory service and a safety pipeline over every produced tool call.
//
// Usage:
//
//	go run ./cmd/reasoning
//	go run ./cmd/reasoning -port 9090 -config config/reasoning.yaml
//
// With Ollama:
//
//	OLLAMA_BASE_URL=http://localhost:11434 go run ./cmd/reasoning
//
// Without any LLM backend (scripted mock mode):
//
//	go run ./cmd/reasoning -mock
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8085/v1/reason/health
//
//	# List the tool catalog
//	curl http://localhost:8085/v1/reason/tools | jq
//
//	# Generate a plan
//	curl -X POST http://localhost:8085/v1/reason/plan \
//	  -H "Content-Type: application/json" \
//	  -d '{"user_id":"u1","intent_name":"get_weather","entities":{"location":"Paris"},"raw_query":"What is the weather in Paris?"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianVoice/services/reasoning"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/llm"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/telemetry"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	configPath := flag.String("config", "", "Path to YAML service config")
	debug := flag.Bool("debug", false, "Enable debug mode")
	mock := flag.Bool("mock", false, "Run with a scripted LLM instead of a real backend")
	traceStdout := flag.Bool("trace-stdout", false, "Export OTel spans to stdout")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := telemetry.Init("aleutian-reasoning", *traceStdout)
	if err != nil {
		slog.Error("Failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg := reasoning.DefaultServiceConfig()
	if *configPath != "" {
		cfg, err = reasoning.LoadServiceConfig(*configPath)
		if err != nil {
			slog.Error("Failed to load config", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.BaseURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.Model = model
	}
	if *mock {
		cfg.LLM.Provider = "script"
	}

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		slog.Error("Failed to create LLM client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("LLM backend configured",
		slog.String("provider", llmClient.Name()),
		slog.String("model", llmClient.Model()),
	)

	svc, err := reasoning.NewService(cfg, llmClient, nil, slog.Default())
	if err != nil {
		slog.Error("Failed to assemble reasoning service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.StartPolicyWatcher(ctx); err != nil {
		slog.Warn("Policy watcher unavailable, hot-reload disabled",
			slog.String("error", err.Error()))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-reasoning"))
	if *debug {
		router.Use(gin.Logger())
	}

	handlers := reasoning.NewHandlers(svc, slog.Default())
	v1 := router.Group("/v1")
	reasoning.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down reasoning server")
		if err := svc.Close(); err != nil {
			slog.Warn("Failed to close service", slog.String("error", err.Error()))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("Failed to flush traces", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting AleutianVoice reasoning server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildLLMClient constructs the configured LLM backend.
//
// Description:
//
//	"ollama" talks to a local Ollama server; "openai" talks to any
//	OpenAI-compatible endpoint with the API key read once from the
//	configured environment variable into a memguard enclave; "script"
//	runs without a backend, answering every query with a fixed plan —
//	useful for wiring tests and demos.
func buildLLMClient(cfg reasoning.ServiceConfig) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return llm.NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.ContextWindow)

	case "openai":
		key := os.Getenv(cfg.LLM.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.LLM.APIKeyEnv)
		}
		enclave := memguard.NewEnclave([]byte(key))
		return llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.ContextWindow, enclave)

	case "script":
		return llm.NewScriptClient(
			"Thought: No backend is configured, so I can only acknowledge the request.\nFinal Answer: The reasoning service is running in mock mode; configure an LLM backend to generate real plans.",
		).WithContextWindow(cfg.LLM.ContextWindow), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}
