// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ExtractParameters assembles the parameter map for one tool call.
//
// Description:
//
//	Starts from the LLM's Action Input object. For required parameters the
//	LLM omitted, falls back to same-named fields in the envelope entities.
//	Unknown fields are dropped, and every kept value is coerced to the
//	schema's declared type.
//
// Inputs:
//   - spec: The resolved tool.
//   - entities: Entities from the intent envelope. May be nil.
//   - actionInput: The decoded Action Input JSON object. May be nil.
//
// Outputs:
//   - map[string]any: The typed parameter map. Never nil on success.
//   - error: *MissingParametersError when required parameters are absent
//     from both sources, or a coercion error for irreconcilable types.
func ExtractParameters(spec *Spec, entities, actionInput map[string]any) (map[string]any, error) {
	params := make(map[string]any, len(spec.Params))
	var missing []string

	for _, p := range spec.Params {
		value, ok := actionInput[p.Name]
		if !ok || isEmptyValue(value) {
			value, ok = entities[p.Name]
		}
		if !ok || isEmptyValue(value) {
			if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}

		coerced, err := coerceValue(value, p.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q of %s: %w", p.Name, spec.Type, err)
		}
		params[p.Name] = coerced
	}

	if len(missing) > 0 {
		return nil, &MissingParametersError{Tool: spec.Type, Missing: missing}
	}
	return params, nil
}

// isEmptyValue treats nil and empty strings as absent so that entity
// fallback can fill them in.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// coerceValue converts a decoded-JSON value to the schema's declared type.
func coerceValue(value any, typ string) (any, error) {
	switch typ {
	case "string":
		switch v := value.(type) {
		case string:
			return v, nil
		case float64, bool:
			return fmt.Sprint(v), nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to string", value)
		}

	case "integer":
		switch v := value.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("value %v is not an integer", v)
			}
			return int(v), nil
		case int:
			return v, nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as integer", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to integer", value)
		}

	case "number":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as number", v)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to number", value)
		}

	case "boolean":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as boolean", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to boolean", value)
		}

	case "object":
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to object", value)

	case "array":
		if a, ok := value.([]any); ok {
			return a, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to array", value)

	default:
		return value, nil
	}
}
