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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// Duration wraps time.Duration so policy files can write "5m" instead of
// nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler accepting Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Thresholds are the minimum scores for each derived risk level.
type Thresholds struct {
	Medium   float64 `yaml:"medium" validate:"gte=0,lte=1"`
	High     float64 `yaml:"high" validate:"gte=0,lte=1,gtefield=Medium"`
	Critical float64 `yaml:"critical" validate:"gte=0,lte=1,gtefield=High"`
}

// MaxLengths bound string parameters per sanitizer category.
type MaxLengths struct {
	SQL     int `yaml:"sql" validate:"gt=0"`
	Command int `yaml:"command" validate:"gt=0"`
	Path    int `yaml:"path" validate:"gt=0"`
	URL     int `yaml:"url" validate:"gt=0"`
}

// Policies is the safety configuration: lists, patterns, limits, thresholds.
//
// Loaded from YAML with defaults in code; hot-reloadable via WatchPolicies.
type Policies struct {
	// StrictMode blocks tools absent from the allow list instead of
	// warning about them.
	StrictMode bool `yaml:"strict_mode"`

	// AllowHTTPLocalhost permits plain-HTTP localhost URLs. True in
	// development, false in production.
	AllowHTTPLocalhost bool `yaml:"allow_http_localhost"`

	AllowedTools []string `yaml:"allowed_tools" validate:"min=1"`
	BlockedTools []string `yaml:"blocked_tools"`

	// AllowedApps is the application allow list for OPEN_APPLICATION and
	// friends, lowercase, without extensions.
	AllowedApps []string `yaml:"allowed_apps"`

	// BlockedDomains are substrings that reject any URL containing them.
	BlockedDomains []string `yaml:"blocked_domains"`

	Thresholds Thresholds `yaml:"thresholds"`

	// RateLimits map risk level to requests per minute per user.
	RateLimits map[datatypes.RiskLevel]int `yaml:"rate_limits" validate:"min=1"`

	// AbuseLimit is the number of blocked outcomes within AbuseWindow that
	// short-circuits subsequent plans for the user.
	AbuseLimit  int           `yaml:"abuse_limit" validate:"gt=0"`
	AbuseWindow Duration `yaml:"abuse_window" validate:"gt=0"`

	MaxLengths MaxLengths `yaml:"max_lengths"`
}

// DefaultPolicies returns the built-in policy set.
func DefaultPolicies() *Policies {
	return &Policies{
		StrictMode:         false,
		AllowHTTPLocalhost: true,
		AllowedTools: []string{
			"OPEN_APPLICATION", "CLOSE_APPLICATION", "SWITCH_APPLICATION",
			"WEB_SEARCH", "FILE_SEARCH", "GET_WEATHER", "GET_NEWS", "GET_TIME",
			"CALCULATOR", "SEND_EMAIL", "SEND_MESSAGE", "MAKE_CALL",
			"MEDIA_PLAYER", "VOLUME_CONTROL", "BRIGHTNESS_CONTROL",
			"SCREENSHOT", "SMART_HOME_CONTROL", "NAVIGATION", "CALENDAR",
			"SET_REMINDER", "NOTE_TAKING", "SET_TIMER", "SET_ALARM",
			"UNIT_CONVERTER", "SYSTEM_CONTROL", "DATABASE_QUERY",
			"HELP", "CLARIFICATION",
		},
		BlockedTools: []string{
			"SYSTEM_SHUTDOWN", "FORMAT_DRIVE", "DELETE_FILE", "ADMIN_COMMAND",
		},
		AllowedApps: []string{
			"chrome", "firefox", "safari", "edge", "terminal", "finder",
			"notes", "calendar", "mail", "spotify", "slack", "calculator",
			"vscode", "code",
		},
		BlockedDomains: []string{
			"malware.example", "phishing.example",
		},
		Thresholds: Thresholds{Medium: 0.25, High: 0.50, Critical: 0.75},
		RateLimits: map[datatypes.RiskLevel]int{
			datatypes.RiskLow:      60,
			datatypes.RiskMedium:   30,
			datatypes.RiskHigh:     10,
			datatypes.RiskCritical: 1,
		},
		AbuseLimit:  10,
		AbuseWindow: Duration(5 * time.Minute),
		MaxLengths:  MaxLengths{SQL: 500, Command: 200, Path: 260, URL: 2000},
	}
}

// Validate checks the policy set's structural constraints.
func (p *Policies) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid safety policies: %w", err)
	}
	return nil
}

// LoadPolicies reads a YAML policy file over the defaults.
//
// Description:
//
//	Starts from DefaultPolicies and overlays whatever the file defines, so
//	a partial policies file only overrides the sections it mentions.
//
// Inputs:
//   - path: The YAML file path.
//
// Outputs:
//   - *Policies: The merged, validated policy set.
//   - error: Non-nil on read, parse, or validation failure.
func LoadPolicies(path string) (*Policies, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policies file %s: %w", path, err)
	}

	policies := DefaultPolicies()
	if err := yaml.Unmarshal(raw, policies); err != nil {
		return nil, fmt.Errorf("parsing policies file %s: %w", path, err)
	}
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	return policies, nil
}

// WatchPolicies hot-reloads the policy file on change.
//
// Description:
//
//	Watches the file's directory (editors replace files rather than write
//	in place) and calls apply with the freshly loaded policies on every
//	write or create event for the file. A file that fails to load is
//	logged and skipped; the previous policies stay active. Returns when
//	ctx is cancelled.
//
// Inputs:
//   - ctx: Cancellation for the watch loop.
//   - path: The YAML file to watch.
//   - logger: Structured logger for reload outcomes.
//   - apply: Called with each successfully loaded policy set.
//
// Outputs:
//   - error: Non-nil if the watcher cannot be established.
func WatchPolicies(ctx context.Context, path string, logger *slog.Logger, apply func(*Policies)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching policy directory %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				policies, loadErr := LoadPolicies(path)
				if loadErr != nil {
					logger.Warn("policy reload failed, keeping previous policies",
						slog.String("path", path),
						slog.String("error", loadErr.Error()),
					)
					continue
				}
				apply(policies)
				logger.Info("safety policies reloaded", slog.String("path", path))
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("policy watcher error", slog.String("error", watchErr.Error()))
			}
		}
	}()

	return nil
}
