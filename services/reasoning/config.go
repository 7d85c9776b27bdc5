// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reasoning

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LLMConfig selects and tunes the LLM backend.
type LLMConfig struct {
	// Provider is the backend: "ollama", "openai", or "script" (mock).
	Provider string `yaml:"provider" validate:"oneof=ollama openai script"`

	// BaseURL is the backend endpoint. Empty selects the provider default.
	BaseURL string `yaml:"base_url"`

	// Model is the model identifier.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key for
	// remote providers.
	APIKeyEnv string `yaml:"api_key_env"`

	Temperature      float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	FinalTemperature float64 `yaml:"final_temperature" validate:"gte=0,lte=2"`
	MaxTokens        int     `yaml:"max_tokens" validate:"gt=0"`
	ContextWindow    int     `yaml:"context_window" validate:"gt=0"`
	TimeoutMs        int     `yaml:"timeout_ms" validate:"gt=0"`
}

// MemoryConfig points at the memory service.
type MemoryConfig struct {
	ServiceURL        string `yaml:"service_url" validate:"required,url"`
	PerFetchTimeoutMs int    `yaml:"per_fetch_timeout_ms" validate:"gt=0"`
	ContextDeadlineMs int    `yaml:"context_deadline_ms" validate:"gt=0"`

	// ContextCharBudget bounds the knowledge+episodes prompt sections.
	ContextCharBudget int `yaml:"context_char_budget" validate:"gt=0"`
}

// SafetyConfig points at the safety policy file and token store.
type SafetyConfig struct {
	// PoliciesPath is the YAML policy file. Empty uses built-in defaults.
	PoliciesPath string `yaml:"policies_path"`

	// WatchPolicies enables fsnotify hot-reload of the policy file.
	WatchPolicies bool `yaml:"watch_policies"`

	// TokenDir is the confirmation-token store directory. Empty selects
	// the in-memory store.
	TokenDir string `yaml:"token_dir"`

	// TokenTTLMs is the confirmation-token lifetime.
	TokenTTLMs int `yaml:"token_ttl_ms" validate:"gt=0"`
}

// ServiceConfig is the reasoning service's full configuration.
type ServiceConfig struct {
	Port          int          `yaml:"port" validate:"gt=0,lte=65535"`
	MaxIterations int          `yaml:"max_iterations" validate:"gt=0"`
	LLM           LLMConfig    `yaml:"llm"`
	Memory        MemoryConfig `yaml:"memory"`
	Safety        SafetyConfig `yaml:"safety"`
}

// DefaultServiceConfig returns the standard configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Port:          8085,
		MaxIterations: 10,
		LLM: LLMConfig{
			Provider:         "ollama",
			BaseURL:          "http://localhost:11434",
			Model:            "mistral:7b-instruct",
			APIKeyEnv:        "REASONING_LLM_API_KEY",
			Temperature:      0.7,
			FinalTemperature: 0.2,
			MaxTokens:        512,
			ContextWindow:    4096,
			TimeoutMs:        30_000,
		},
		Memory: MemoryConfig{
			ServiceURL:        "http://localhost:8001",
			PerFetchTimeoutMs: 2_000,
			ContextDeadlineMs: 3_000,
			ContextCharBudget: 1_500,
		},
		Safety: SafetyConfig{
			TokenTTLMs: 600_000,
		},
	}
}

// Validate checks the configuration's structural constraints.
func (c *ServiceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid service config: %w", err)
	}
	return nil
}

// LoadServiceConfig reads a YAML config file over the defaults.
//
// Description:
//
//	Starts from DefaultServiceConfig and overlays the file, so a partial
//	config only overrides the fields it mentions.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	config := DefaultServiceConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
