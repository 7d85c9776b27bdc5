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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// Catalog is the closed set of tools exposed to the planner.
//
// Description:
//
//	Holds one Spec per ToolType, a compiled JSON Schema per tool for
//	parameter validation, and the static intent-to-candidates mapping.
//	The candidate list is used only for prompt hinting; the tool actually
//	invoked each iteration is whatever the LLM emits, validated here.
//
// Thread Safety: Read-only after NewCatalog; safe for concurrent use.
type Catalog struct {
	specs   []Spec
	byName  map[string]*Spec
	schemas map[datatypes.ToolType]*jsonschema.Schema
	intents map[string][]datatypes.ToolType
}

// NewCatalog builds the catalog and compiles every tool's parameter schema.
//
// Outputs:
//   - *Catalog: The ready catalog.
//   - error: Non-nil if any parameter schema fails to compile.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{
		specs:   defaultSpecs(),
		byName:  make(map[string]*Spec),
		schemas: make(map[datatypes.ToolType]*jsonschema.Schema),
		intents: defaultIntentMap(),
	}

	for i := range c.specs {
		spec := &c.specs[i]
		c.byName[string(spec.Type)] = spec

		schema, err := compileParamSchema(spec)
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", spec.Type, err)
		}
		c.schemas[spec.Type] = schema
	}

	return c, nil
}

// Lookup resolves an action name emitted by the LLM to its Spec.
//
// Description:
//
//	Case-insensitive exact match on the canonical tool name. Surrounding
//	whitespace is tolerated. There is no fuzzy matching: a misspelled or
//	hallucinated name returns UnknownToolError so the loop learns from the
//	resulting observation.
//
// Inputs:
//   - name: The action name as emitted by the LLM.
//
// Outputs:
//   - *Spec: The catalog entry with its canonical name preserved.
//   - error: *UnknownToolError if the name does not resolve.
func (c *Catalog) Lookup(name string) (*Spec, error) {
	canonical := strings.ToUpper(strings.TrimSpace(name))
	if spec, ok := c.byName[canonical]; ok {
		return spec, nil
	}
	return nil, &UnknownToolError{Name: name}
}

// Candidates returns the ordered candidate tools for an intent name, or an
// empty slice for an unknown intent.
func (c *Catalog) Candidates(intentName string) []datatypes.ToolType {
	return c.intents[intentName]
}

// Specs returns the catalog entries in declaration order.
func (c *Catalog) Specs() []Spec {
	return c.specs
}

// Manifest renders the full tool list for the planner prompt.
//
// Description:
//
//	Every tool appears, one line each, regardless of the classified intent.
//	Exposing the full catalog lets the planner recover from a
//	mis-classified intent by choosing a different tool.
func (c *Catalog) Manifest() string {
	var sb strings.Builder
	sb.WriteString("Available Tools:\n")
	for i := range c.specs {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", c.specs[i].Type, c.specs[i].Description))
	}
	return sb.String()
}

// ValidateParameters checks params against the tool's compiled JSON Schema.
//
// Description:
//
//	The value is round-tripped through encoding/json first so that Go
//	integer values validate against "integer" typed properties the same
//	way decoded JSON would.
//
// Outputs:
//   - error: Non-nil when the parameters do not satisfy the schema.
func (c *Catalog) ValidateParameters(tool datatypes.ToolType, params map[string]any) error {
	schema, ok := c.schemas[tool]
	if !ok {
		return &UnknownToolError{Name: string(tool)}
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding parameters for %s: %w", tool, err)
	}
	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decoding parameters for %s: %w", tool, err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("parameters for %s failed schema validation: %w", tool, err)
	}
	return nil
}

// compileParamSchema builds and compiles the JSON Schema for one tool.
func compileParamSchema(spec *Spec) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(spec.Params))
	required := make([]any, 0, len(spec.Params))

	for _, p := range spec.Params {
		properties[p.Name] = map[string]any{"type": p.Type}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("%s.json", strings.ToLower(string(spec.Type)))
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}

// defaultSpecs declares the closed tool set.
func defaultSpecs() []Spec {
	return []Spec{
		{
			Type:        datatypes.ToolOpenApplication,
			Description: "Open or launch an application",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "app_name", Type: "string", Required: true, Format: FormatAppName, Description: "Application to open"},
			},
		},
		{
			Type:        datatypes.ToolCloseApplication,
			Description: "Close or quit an application",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "app_name", Type: "string", Required: true, Format: FormatAppName, Description: "Application to close"},
			},
		},
		{
			Type:        datatypes.ToolSwitchApplication,
			Description: "Switch focus to a running application",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "app_name", Type: "string", Required: true, Format: FormatAppName, Description: "Application to focus"},
			},
		},
		{
			Type:        datatypes.ToolWebSearch,
			Description: "Search the internet",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "query", Type: "string", Required: true, Description: "Search query"},
			},
		},
		{
			Type:        datatypes.ToolFileSearch,
			Description: "Search local files by name or content",
			Risk:        datatypes.RiskMedium,
			Params: []ParamSpec{
				{Name: "query", Type: "string", Required: true, Description: "Search query"},
				{Name: "path", Type: "string", Format: FormatPath, Description: "Directory to search in"},
			},
		},
		{
			Type:        datatypes.ToolGetWeather,
			Description: "Get current weather or a forecast",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "location", Type: "string", Required: true, Description: "City or place name"},
			},
		},
		{
			Type:        datatypes.ToolGetNews,
			Description: "Fetch news headlines",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "topic", Type: "string", Description: "News topic"},
			},
		},
		{
			Type:        datatypes.ToolGetTime,
			Description: "Get the current time or date",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "timezone", Type: "string", Description: "IANA timezone name"},
			},
		},
		{
			Type:        datatypes.ToolCalculator,
			Description: "Evaluate a mathematical expression",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "expression", Type: "string", Required: true, Description: "Expression to evaluate"},
			},
		},
		{
			Type:                 datatypes.ToolSendEmail,
			Description:          "Send an email message",
			Risk:                 datatypes.RiskHigh,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "to", Type: "string", Required: true, Format: FormatEmail, Description: "Recipient address"},
				{Name: "subject", Type: "string", Required: true, Description: "Subject line"},
				{Name: "body", Type: "string", Required: true, Description: "Message body"},
			},
		},
		{
			Type:                 datatypes.ToolSendMessage,
			Description:          "Send a text message",
			Risk:                 datatypes.RiskHigh,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "to", Type: "string", Required: true, Format: FormatPhone, Description: "Recipient number or contact"},
				{Name: "body", Type: "string", Required: true, Description: "Message body"},
			},
		},
		{
			Type:                 datatypes.ToolMakeCall,
			Description:          "Place a phone call",
			Risk:                 datatypes.RiskHigh,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "to", Type: "string", Required: true, Format: FormatPhone, Description: "Number or contact to call"},
			},
		},
		{
			Type:        datatypes.ToolMediaPlayer,
			Description: "Control media playback (play, pause, skip)",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "action", Type: "string", Required: true, Description: "play, pause, resume, stop, next, previous"},
				{Name: "media_title", Type: "string", Description: "Title to play"},
				{Name: "artist", Type: "string", Description: "Artist name"},
			},
		},
		{
			Type:        datatypes.ToolVolumeControl,
			Description: "Adjust system volume",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "action", Type: "string", Description: "increase, decrease, mute, unmute, set"},
				{Name: "level", Type: "integer", Description: "Target level 0-100"},
			},
		},
		{
			Type:        datatypes.ToolBrightnessControl,
			Description: "Adjust screen brightness",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "level", Type: "integer", Description: "Target level 0-100"},
			},
		},
		{
			Type:        datatypes.ToolScreenshot,
			Description: "Capture a screenshot",
			Risk:        datatypes.RiskMedium,
		},
		{
			Type:        datatypes.ToolSmartHomeControl,
			Description: "Control smart home devices (lights, thermostat, locks)",
			Risk:        datatypes.RiskMedium,
			Params: []ParamSpec{
				{Name: "device", Type: "string", Required: true, Description: "Device name"},
				{Name: "action", Type: "string", Required: true, Description: "Action to perform"},
				{Name: "temperature", Type: "number", Description: "Target temperature"},
			},
		},
		{
			Type:        datatypes.ToolNavigation,
			Description: "Get directions or find places",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "destination", Type: "string", Required: true, Description: "Where to go"},
				{Name: "origin", Type: "string", Description: "Starting point"},
			},
		},
		{
			Type:        datatypes.ToolCalendar,
			Description: "Manage calendar events",
			Risk:        datatypes.RiskMedium,
			Params: []ParamSpec{
				{Name: "action", Type: "string", Required: true, Description: "create, list, delete"},
				{Name: "title", Type: "string", Description: "Event title"},
				{Name: "time", Type: "string", Description: "Event time"},
			},
		},
		{
			Type:        datatypes.ToolSetReminder,
			Description: "Create or manage reminders",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "text", Type: "string", Required: true, Description: "Reminder text"},
				{Name: "time", Type: "string", Description: "When to remind"},
			},
		},
		{
			Type:        datatypes.ToolNoteTaking,
			Description: "Take and manage notes",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "action", Type: "string", Required: true, Description: "create, read, append"},
				{Name: "text", Type: "string", Description: "Note content"},
			},
		},
		{
			Type:        datatypes.ToolSetTimer,
			Description: "Set a countdown timer",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "duration", Type: "string", Required: true, Description: "Timer duration, e.g. \"10 minutes\""},
			},
		},
		{
			Type:        datatypes.ToolSetAlarm,
			Description: "Set an alarm",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "time", Type: "string", Required: true, Description: "Alarm time"},
			},
		},
		{
			Type:        datatypes.ToolUnitConverter,
			Description: "Convert between units",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "value", Type: "number", Required: true, Description: "Value to convert"},
				{Name: "from", Type: "string", Required: true, Description: "Source unit"},
				{Name: "to", Type: "string", Required: true, Description: "Target unit"},
			},
		},
		{
			Type:                 datatypes.ToolSystemControl,
			Description:          "Control system operations (lock screen, sleep)",
			Risk:                 datatypes.RiskHigh,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "command", Type: "string", Required: true, Format: FormatCommand, Description: "System command"},
			},
		},
		{
			Type:        datatypes.ToolDatabaseQuery,
			Description: "Run a read-only database query",
			Risk:        datatypes.RiskHigh,
			Params: []ParamSpec{
				{Name: "query", Type: "string", Required: true, Format: FormatSQL, Description: "SQL query"},
			},
		},
		{
			Type:        datatypes.ToolHelp,
			Description: "Provide help and assistance",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "topic", Type: "string", Description: "Help topic"},
			},
		},
		{
			Type:        datatypes.ToolClarification,
			Description: "Ask the user a clarifying question",
			Risk:        datatypes.RiskLow,
			Params: []ParamSpec{
				{Name: "question", Type: "string", Required: true, Description: "Question for the user"},
			},
		},
		{
			Type:                 datatypes.ToolSystemShutdown,
			Description:          "Shut down the machine",
			Risk:                 datatypes.RiskCritical,
			RequiresConfirmation: true,
		},
		{
			Type:                 datatypes.ToolFormatDrive,
			Description:          "Format a storage drive",
			Risk:                 datatypes.RiskCritical,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "drive", Type: "string", Required: true, Description: "Drive identifier"},
			},
		},
		{
			Type:                 datatypes.ToolDeleteFile,
			Description:          "Delete a file",
			Risk:                 datatypes.RiskCritical,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "path", Type: "string", Required: true, Format: FormatPath, Description: "File to delete"},
			},
		},
		{
			Type:                 datatypes.ToolAdminCommand,
			Description:          "Run a privileged administrative command",
			Risk:                 datatypes.RiskCritical,
			RequiresConfirmation: true,
			Params: []ParamSpec{
				{Name: "command", Type: "string", Required: true, Format: FormatCommand, Description: "Command to run"},
			},
		},
	}
}

// defaultIntentMap declares the static intent-to-candidates mapping.
// Unknown intents resolve to no candidates; the prompt then carries only the
// full manifest and the LLM picks freely.
func defaultIntentMap() map[string][]datatypes.ToolType {
	return map[string][]datatypes.ToolType{
		"open_app":                    {datatypes.ToolOpenApplication},
		"close_app":                   {datatypes.ToolCloseApplication},
		"switch_app":                  {datatypes.ToolSwitchApplication},
		"open_application_and_search": {datatypes.ToolOpenApplication, datatypes.ToolWebSearch},
		"search_web":                  {datatypes.ToolWebSearch},
		"search_files":                {datatypes.ToolFileSearch},
		"get_weather":                 {datatypes.ToolGetWeather},
		"get_news":                    {datatypes.ToolGetNews},
		"get_time":                    {datatypes.ToolGetTime},
		"calculate":                   {datatypes.ToolCalculator},
		"send_email":                  {datatypes.ToolSendEmail},
		"send_message":                {datatypes.ToolSendMessage},
		"make_call":                   {datatypes.ToolMakeCall},
		"play_music":                  {datatypes.ToolMediaPlayer},
		"play_video":                  {datatypes.ToolMediaPlayer},
		"pause_media":                 {datatypes.ToolMediaPlayer},
		"resume_media":                {datatypes.ToolMediaPlayer},
		"next_track":                  {datatypes.ToolMediaPlayer},
		"previous_track":              {datatypes.ToolMediaPlayer},
		"stop_media":                  {datatypes.ToolMediaPlayer},
		"increase_volume":             {datatypes.ToolVolumeControl},
		"decrease_volume":             {datatypes.ToolVolumeControl},
		"mute_volume":                 {datatypes.ToolVolumeControl},
		"unmute_volume":               {datatypes.ToolVolumeControl},
		"increase_brightness":         {datatypes.ToolBrightnessControl},
		"decrease_brightness":         {datatypes.ToolBrightnessControl},
		"take_screenshot":             {datatypes.ToolScreenshot},
		"turn_on_lights":              {datatypes.ToolSmartHomeControl},
		"turn_off_lights":             {datatypes.ToolSmartHomeControl},
		"dim_lights":                  {datatypes.ToolSmartHomeControl},
		"set_temperature":             {datatypes.ToolSmartHomeControl},
		"lock_door":                   {datatypes.ToolSmartHomeControl},
		"unlock_door":                 {datatypes.ToolSmartHomeControl},
		"get_directions":              {datatypes.ToolNavigation},
		"find_location":               {datatypes.ToolNavigation},
		"find_nearby":                 {datatypes.ToolNavigation},
		"schedule_meeting":            {datatypes.ToolCalendar},
		"check_calendar":              {datatypes.ToolCalendar},
		"create_reminder":             {datatypes.ToolSetReminder},
		"list_reminders":              {datatypes.ToolSetReminder},
		"delete_reminder":             {datatypes.ToolSetReminder},
		"take_note":                   {datatypes.ToolNoteTaking},
		"read_note":                   {datatypes.ToolNoteTaking},
		"set_timer":                   {datatypes.ToolSetTimer},
		"set_alarm":                   {datatypes.ToolSetAlarm},
		"convert_units":               {datatypes.ToolUnitConverter},
		"lock_screen":                 {datatypes.ToolSystemControl},
		"database_query":              {datatypes.ToolDatabaseQuery},
		"help":                        {datatypes.ToolHelp},
		"requires_clarification":      {datatypes.ToolClarification},
	}
}
