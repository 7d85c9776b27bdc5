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
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/tools"
)

// sqlBlockedPatterns are substrings that terminate a SQL-typed parameter.
// Matching is case-insensitive; the canonical form is reported in the block
// reason.
// Ordered most-specific first so the reported pattern names the attack
// rather than its comment suffix.
var sqlBlockedPatterns = []string{
	"DROP TABLE",
	"DROP DATABASE",
	"UNION SELECT",
	"DELETE FROM",
	"INSERT INTO",
	"TRUNCATE",
	"ALTER TABLE",
	"EXEC ",
	"XP_",
	"' OR '1'='1",
	";--",
	"--",
}

// shellMetacharacters terminate command-typed parameters of OS-class tools.
var shellMetacharacters = []string{";", "|", "&", "`", "$(", ">", "<"}

// pathBlockedPatterns terminate path-typed parameters.
var pathBlockedPatterns = []string{"..", "/etc", "/root", "c:\\windows"}

// XSS scrub patterns. Applied to every string parameter; hits are removed
// rather than blocked.
var (
	xssScriptTag  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	xssScriptOpen = regexp.MustCompile(`(?i)<script[^>]*>`)
	xssJSProto    = regexp.MustCompile(`(?i)javascript:`)
	xssEventAttr  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// privateHostPatterns reject URLs pointing into the local network.
var privateHostPatterns = []string{
	"localhost", "127.0.0.1", "0.0.0.0", "10.", "192.168.",
	"172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.",
	"172.22.", "172.23.", "172.24.", "172.25.", "172.26.", "172.27.",
	"172.28.", "172.29.", "172.30.", "172.31.",
}

// piiPattern pairs a detection regex with its replacement mask. Masks are
// chosen so they never re-match the pattern, which makes masking idempotent.
type piiPattern struct {
	category string
	re       *regexp.Regexp
	mask     string
}

var piiPatterns = []piiPattern{
	{"credit_card", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`), "****-****-****-****"},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "***-**-****"},
	{"email", regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`), "***@***.***"},
	{"phone", regexp.MustCompile(`\b\d{3}[-\s.]\d{3}[-\s.]\d{4}\b`), "***-***-****"},
}

// Sanitizer rewrites or rejects tool parameters before risk scoring.
//
// Description:
//
//	Injection-shaped input (SQL, shell, path traversal, unsafe URLs)
//	blocks the call; XSS fragments and PII are scrubbed or masked in
//	place. Sanitization is idempotent: applying it twice yields the same
//	parameters and no new warnings of the same category.
//
// Thread Safety: Read-only after construction; safe for concurrent use.
type Sanitizer struct {
	policies *Policies
}

// NewSanitizer creates a sanitizer bound to a policy set.
func NewSanitizer(policies *Policies) *Sanitizer {
	return &Sanitizer{policies: policies}
}

// SanitizeParameters sanitizes every parameter of one tool call.
//
// Inputs:
//   - spec: The resolved tool (drives per-parameter category routing).
//   - params: The extracted parameters.
//
// Outputs:
//   - map[string]any: The sanitized parameter map. Nil when blocked.
//   - []string: Warnings for scrubbed or masked values.
//   - error: *BlockError when a parameter must terminate the call.
func (s *Sanitizer) SanitizeParameters(spec *tools.Spec, params map[string]any) (map[string]any, []string, error) {
	sanitized := make(map[string]any, len(params))
	var warnings []string

	for key, value := range params {
		switch v := value.(type) {
		case string:
			clean, paramWarnings, err := s.sanitizeString(spec, key, v)
			if err != nil {
				return nil, warnings, err
			}
			sanitized[key] = clean
			warnings = append(warnings, paramWarnings...)

		case float64:
			if err := checkNumber(key, v); err != nil {
				return nil, warnings, err
			}
			sanitized[key] = v

		case int:
			sanitized[key] = v

		case map[string]any:
			nested, nestedWarnings, err := s.SanitizeParameters(spec, v)
			if err != nil {
				return nil, warnings, err
			}
			sanitized[key] = nested
			warnings = append(warnings, nestedWarnings...)

		case []any:
			items := make([]any, len(v))
			for i, item := range v {
				str, ok := item.(string)
				if !ok {
					items[i] = item
					continue
				}
				clean, itemWarnings, err := s.sanitizeString(spec, key, str)
				if err != nil {
					return nil, warnings, err
				}
				items[i] = clean
				warnings = append(warnings, itemWarnings...)
			}
			sanitized[key] = items

		default:
			sanitized[key] = value
		}
	}

	return sanitized, warnings, nil
}

// sanitizeString routes one string parameter through its category checks.
func (s *Sanitizer) sanitizeString(spec *tools.Spec, key, value string) (string, []string, error) {
	var warnings []string

	switch paramCategory(spec, key) {
	case "sql":
		if err := s.checkSQL(value); err != nil {
			return "", nil, err
		}
	case "command":
		if err := s.checkCommand(value); err != nil {
			return "", nil, err
		}
	case "path":
		if err := s.checkPath(value); err != nil {
			return "", nil, err
		}
	case "url":
		if err := s.checkURL(value); err != nil {
			return "", nil, err
		}
	}

	clean := scrubXSS(value)
	if clean != value {
		warnings = append(warnings, fmt.Sprintf("xss: scrubbed unsafe markup from parameter %q", key))
	}

	if !piiExempt(spec, key) {
		masked, categories := maskPII(clean)
		if len(categories) > 0 {
			clean = masked
			warnings = append(warnings, fmt.Sprintf("pii: masked %s in parameter %q",
				strings.Join(categories, ", "), key))
		}
	}

	return clean, warnings, nil
}

// paramCategory picks the sanitizer category for a parameter, preferring
// the schema's declared format over key-name heuristics.
func paramCategory(spec *tools.Spec, key string) string {
	if p := spec.Param(key); p != nil {
		switch p.Format {
		case tools.FormatSQL:
			return "sql"
		case tools.FormatCommand, tools.FormatAppName:
			return "command"
		case tools.FormatPath:
			return "path"
		case tools.FormatURL:
			return "url"
		}
	}

	switch strings.ToLower(key) {
	case "query", "sql", "statement":
		if spec.Type == "DATABASE_QUERY" {
			return "sql"
		}
		return ""
	case "command", "cmd", "script", "shell":
		return "command"
	case "path", "file_path", "directory", "filename":
		return "path"
	case "url", "link", "website", "uri":
		return "url"
	}
	return ""
}

// piiExempt reports whether a parameter legitimately carries contact
// details. Masking the recipient of SEND_EMAIL would break the tool.
func piiExempt(spec *tools.Spec, key string) bool {
	if p := spec.Param(key); p != nil {
		return p.Format == tools.FormatEmail || p.Format == tools.FormatPhone
	}
	return false
}

func (s *Sanitizer) checkSQL(value string) error {
	if max := s.policies.MaxLengths.SQL; len(value) > max {
		return &BlockError{Category: "sql", Reason: fmt.Sprintf("query exceeds max length %d", max)}
	}
	upper := strings.ToUpper(value)
	for _, pattern := range sqlBlockedPatterns {
		if strings.Contains(upper, strings.ToUpper(pattern)) {
			return &BlockError{
				Category: "sql",
				Pattern:  strings.ToUpper(strings.TrimSpace(pattern)),
				Reason:   "query contains blocked pattern",
			}
		}
	}
	return nil
}

func (s *Sanitizer) checkCommand(value string) error {
	if max := s.policies.MaxLengths.Command; len(value) > max {
		return &BlockError{Category: "shell", Reason: fmt.Sprintf("command exceeds max length %d", max)}
	}
	for _, meta := range shellMetacharacters {
		if strings.Contains(value, meta) {
			return &BlockError{
				Category: "shell",
				Pattern:  meta,
				Reason:   "argument contains shell metacharacter",
			}
		}
	}
	return nil
}

func (s *Sanitizer) checkPath(value string) error {
	if max := s.policies.MaxLengths.Path; len(value) > max {
		return &BlockError{Category: "path", Reason: fmt.Sprintf("path exceeds max length %d", max)}
	}
	lower := strings.ToLower(value)
	for _, pattern := range pathBlockedPatterns {
		if strings.Contains(lower, pattern) {
			return &BlockError{
				Category: "path",
				Pattern:  pattern,
				Reason:   "path contains blocked pattern",
			}
		}
	}
	return nil
}

func (s *Sanitizer) checkURL(value string) error {
	if max := s.policies.MaxLengths.URL; len(value) > max {
		return &BlockError{Category: "url", Reason: fmt.Sprintf("URL exceeds max length %d", max)}
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return &BlockError{Category: "url", Reason: "URL does not parse"}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &BlockError{
			Category: "url",
			Pattern:  scheme + "://",
			Reason:   "URL scheme not allowed",
		}
	}

	host := strings.ToLower(parsed.Hostname())
	isLocal := host == "localhost" || host == "127.0.0.1"

	if scheme == "http" && !(isLocal && s.policies.AllowHTTPLocalhost) {
		return &BlockError{Category: "url", Reason: "plain HTTP is not allowed"}
	}

	for _, pattern := range privateHostPatterns {
		if host == pattern || strings.HasPrefix(host, pattern) {
			if isLocal && s.policies.AllowHTTPLocalhost {
				continue
			}
			return &BlockError{
				Category: "url",
				Pattern:  pattern,
				Reason:   "URL targets a private or local address",
			}
		}
	}

	lower := strings.ToLower(value)
	for _, domain := range s.policies.BlockedDomains {
		if strings.Contains(lower, strings.ToLower(domain)) {
			return &BlockError{
				Category: "url",
				Pattern:  domain,
				Reason:   "URL contains blocked domain",
			}
		}
	}

	return nil
}

// checkNumber rejects non-finite and absurdly large numeric parameters.
func checkNumber(key string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &BlockError{Category: "number", Reason: fmt.Sprintf("parameter %q is not a finite number", key)}
	}
	if math.Abs(value) > 1e15 {
		return &BlockError{Category: "number", Reason: fmt.Sprintf("parameter %q is too large", key)}
	}
	return nil
}

// scrubXSS removes script tags, javascript: protocols, and inline event
// handlers. Removal is idempotent.
func scrubXSS(value string) string {
	value = xssScriptTag.ReplaceAllString(value, "")
	value = xssScriptOpen.ReplaceAllString(value, "")
	value = xssJSProto.ReplaceAllString(value, "")
	value = xssEventAttr.ReplaceAllString(value, "")
	return value
}

// maskPII masks PII categories in place and returns which matched.
func maskPII(value string) (string, []string) {
	var categories []string
	for _, p := range piiPatterns {
		if p.re.MatchString(value) {
			value = p.re.ReplaceAllString(value, p.mask)
			categories = append(categories, p.category)
		}
	}
	return value, categories
}

// DetectPII reports which PII categories appear in text without masking.
func DetectPII(text string) []string {
	var categories []string
	for _, p := range piiPatterns {
		if p.re.MatchString(text) {
			categories = append(categories, p.category)
		}
	}
	return categories
}
