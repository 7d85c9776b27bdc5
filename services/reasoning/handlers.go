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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
	"github.com/AleutianAI/AleutianVoice/services/reasoning/telemetry"
)

// PlanRequest is the HTTP payload for the plan endpoint.
type PlanRequest struct {
	UserID            string         `json:"user_id" binding:"required"`
	IntentName        string         `json:"intent_name"`
	Entities          map[string]any `json:"entities"`
	RawQuery          string         `json:"raw_query" binding:"required,min=1,max=4096"`
	ConfirmationToken string         `json:"confirmation_token"`
}

// toolInfo is one entry of the tools endpoint response.
type toolInfo struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	Risk                 string      `json:"risk"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
	Parameters           []paramInfo `json:"parameters,omitempty"`
}

type paramInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Handlers exposes the reasoning service over HTTP.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// HandlePlan runs the planner for one request.
//
// POST /v1/reason/plan
func (h *Handlers) HandlePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request",
			"code":    "BAD_REQUEST",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	requestID := uuid.New().String()
	logger := telemetry.LoggerWithTrace(ctx, h.logger)
	logger.Info("plan request",
		slog.String("request_id", requestID),
		slog.String("user_id", req.UserID),
		slog.String("intent", req.IntentName),
	)

	plan := h.service.Plan(ctx, datatypes.IntentEnvelope{
		UserID:            req.UserID,
		IntentName:        req.IntentName,
		Entities:          req.Entities,
		RawQuery:          req.RawQuery,
		ConfirmationToken: req.ConfirmationToken,
	})

	c.JSON(http.StatusOK, plan)
}

// HandleStats returns a user's validation statistics.
//
// GET /v1/reason/stats/:user_id
func (h *Handlers) HandleStats(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required", "code": "BAD_REQUEST"})
		return
	}
	c.JSON(http.StatusOK, h.service.Stats(userID))
}

// HandleTools lists the tool catalog.
//
// GET /v1/reason/tools
func (h *Handlers) HandleTools(c *gin.Context) {
	specs := h.service.Catalog().Specs()
	out := make([]toolInfo, 0, len(specs))
	for _, spec := range specs {
		info := toolInfo{
			Name:                 string(spec.Type),
			Description:          spec.Description,
			Risk:                 string(spec.Risk),
			RequiresConfirmation: spec.RequiresConfirmation,
		}
		for _, p := range spec.Params {
			info.Parameters = append(info.Parameters, paramInfo{
				Name: p.Name, Type: p.Type, Required: p.Required,
			})
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"tools": out, "count": len(out)})
}

// HandleHealth is the liveness probe.
//
// GET /v1/reason/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "reasoning"})
}

// HandleReady is the readiness probe.
//
// GET /v1/reason/ready
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
