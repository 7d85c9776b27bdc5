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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all reasoning routes with the router group.
//
// Description:
//
//	Registers all /v1/reason/* endpoints. The router group should already
//	have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/reason/plan - Generate an execution plan for an intent envelope
//	GET  /v1/reason/tools - List the tool catalog
//	GET  /v1/reason/stats/:user_id - Per-user validation statistics
//	GET  /v1/reason/health - Health check
//	GET  /v1/reason/ready - Readiness check
//
// Example:
//
//	svc, _ := reasoning.NewService(reasoning.DefaultServiceConfig(), client, nil, nil)
//	handlers := reasoning.NewHandlers(svc, nil)
//
//	v1 := router.Group("/v1")
//	reasoning.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	reason := rg.Group("/reason")
	{
		reason.POST("/plan", handlers.HandlePlan)
		reason.GET("/tools", handlers.HandleTools)
		reason.GET("/stats/:user_id", handlers.HandleStats)
		reason.GET("/health", handlers.HandleHealth)
		reason.GET("/ready", handlers.HandleReady)
	}
}
