// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command voicectl is the operator CLI for the reasoning service.
//
// Usage:
//
//	voicectl plan --user u1 --intent get_weather --entity location=Paris "What's the weather in Paris?"
//	voicectl plan --user u1 --intent send_email --confirm <token> "Email my boss"
//	voicectl plan --plain --user u1 "What's the weather?" > plan.txt
//	voicectl tools
//	voicectl stats u1
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/planner"
)

var (
	serverURL string
	userID    string
	intent    string
	entities  []string
	confirm   string
	plain     bool
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stepBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

func main() {
	root := &cobra.Command{
		Use:   "voicectl",
		Short: "Operator CLI for the AleutianVoice reasoning service",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8085", "Reasoning server base URL")

	planCmd := &cobra.Command{
		Use:   "plan [query]",
		Short: "Generate an execution plan for a query",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	planCmd.Flags().StringVar(&userID, "user", "cli", "User ID")
	planCmd.Flags().StringVar(&intent, "intent", "", "Intent name from the classifier")
	planCmd.Flags().StringArrayVar(&entities, "entity", nil, "Entity as key=value (repeatable)")
	planCmd.Flags().StringVar(&confirm, "confirm", "", "Confirmation token from a previous plan")
	planCmd.Flags().BoolVar(&plain, "plain", false, "Plain-text summary instead of styled output (for pipes and logs)")

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	statsCmd := &cobra.Command{
		Use:   "stats [user_id]",
		Short: "Show a user's validation statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}

	root.AddCommand(planCmd, toolsCmd, statsCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPlan(_ *cobra.Command, args []string) error {
	entityMap := make(map[string]any, len(entities))
	for _, e := range entities {
		key, value, found := strings.Cut(e, "=")
		if !found {
			return fmt.Errorf("entity %q is not key=value", e)
		}
		entityMap[key] = value
	}

	payload := map[string]any{
		"user_id":     userID,
		"intent_name": intent,
		"entities":    entityMap,
		"raw_query":   args[0],
	}
	if confirm != "" {
		payload["confirmation_token"] = confirm
	}

	var plan datatypes.ExecutionPlan
	if err := postJSON(serverURL+"/v1/reason/plan", payload, &plan); err != nil {
		return err
	}

	if plain {
		fmt.Print(planner.FormatPlanSummary(&plan))
		return nil
	}
	renderPlan(&plan)
	return nil
}

func renderPlan(plan *datatypes.ExecutionPlan) {
	fmt.Println(titleStyle.Render("Execution Plan"))
	fmt.Println(dimStyle.Render(fmt.Sprintf("query: %s | intent: %s | iterations: %d",
		plan.RawQuery, plan.IntentName, plan.Iterations)))

	for i, step := range plan.Steps {
		header := fmt.Sprintf("%d. %s", i+1, step.Tool)
		switch step.Status {
		case datatypes.StepBlocked:
			header += "  " + failStyle.Render("BLOCKED")
		case datatypes.StepPendingConfirmation:
			header += "  " + warnStyle.Render("NEEDS CONFIRMATION")
		case datatypes.StepSanitized:
			header += "  " + warnStyle.Render("SANITIZED")
		default:
			header += "  " + okStyle.Render("OK")
		}

		var body strings.Builder
		body.WriteString(header)
		if step.Thought != "" {
			body.WriteString("\n" + dimStyle.Render("thought: "+step.Thought))
		}
		params, _ := json.Marshal(step.Parameters)
		body.WriteString("\nparams: " + string(params))
		if step.Observation != "" {
			body.WriteString("\n" + step.Observation)
		}
		if step.ConfirmationID != "" {
			body.WriteString("\n" + warnStyle.Render("confirmation token: "+step.ConfirmationID))
		}
		fmt.Println(stepBoxStyle.Render(body.String()))
	}

	if plan.FinalAnswer != "" {
		fmt.Println(okStyle.Render("Final Answer: ") + plan.FinalAnswer)
	}
	if plan.Error != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("Error: %s", plan.Error.Error())))
	}
	if plan.Success {
		fmt.Println(okStyle.Render("success"))
	} else {
		fmt.Println(failStyle.Render("not successful"))
	}
}

func runTools(_ *cobra.Command, _ []string) error {
	var out struct {
		Tools []struct {
			Name                 string `json:"name"`
			Description          string `json:"description"`
			Risk                 string `json:"risk"`
			RequiresConfirmation bool   `json:"requires_confirmation"`
		} `json:"tools"`
	}
	if err := getJSON(serverURL+"/v1/reason/tools", &out); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Tool Catalog"))
	for _, t := range out.Tools {
		risk := t.Risk
		switch t.Risk {
		case "HIGH", "CRITICAL":
			risk = failStyle.Render(t.Risk)
		case "MEDIUM":
			risk = warnStyle.Render(t.Risk)
		default:
			risk = okStyle.Render(t.Risk)
		}
		confirmMark := ""
		if t.RequiresConfirmation {
			confirmMark = warnStyle.Render(" [confirm]")
		}
		fmt.Printf("  %-22s %s%s  %s\n", t.Name, risk, confirmMark, dimStyle.Render(t.Description))
	}
	return nil
}

func runStats(_ *cobra.Command, args []string) error {
	var stats map[string]any
	if err := getJSON(serverURL+"/v1/reason/stats/"+args[0], &stats); err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Validation Stats: " + args[0]))
	encoded, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func postJSON(url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out any) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}
