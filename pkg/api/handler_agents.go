package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/database"
	"github.com/specforge/specforge/pkg/llm/breaker"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/workflow"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// executeStreamHandler handles POST /api/v1/agents/workflow/execute-stream:
// it starts the full four-stage workflow and streams its events back on
// the same connection. The workflow itself runs detached — a dropped
// client stops the stream, not the run.
func (s *Server) executeStreamHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req models.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id is required")
	}
	if req.IdeaDescription == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "idea_description is required")
	}

	if err := s.projects.Authorize(c.Request().Context(), id, req.ProjectID, auth.PermAgentExecute); err != nil {
		return mapServiceError(err)
	}

	// Subscribe before launching so no event is missed.
	streamCtx := c.Request().Context()
	events, cancel, err := s.events.Subscribe(streamCtx, id.TenantID, req.ProjectID)
	if err != nil {
		s.logger.Error("Failed to subscribe to project events",
			"tenant_id", id.TenantID, "project_id", req.ProjectID, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream unavailable")
	}
	defer cancel()

	resCh := make(chan *workflow.Result, 1)
	go func() {
		// Detached from the request: client disconnects must not cancel
		// the workflow.
		resCh <- s.engine.Execute(context.WithoutCancel(streamCtx), id.TenantID, id.UserID, req)
	}()

	sseHeaders(c)

	var workflowID string
	terminals := make(map[string]bool)
	for {
		select {
		case <-streamCtx.Done():
			return nil
		case res := <-resCh:
			workflowID = res.WorkflowID
			resCh = nil
			if terminals[workflowID] {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(c, ev); err != nil {
				return nil // client went away; the workflow keeps running
			}
			if ev.Type == models.EventTypeComplete || ev.Type == models.EventTypeError {
				terminals[ev.WorkflowID] = true
				if workflowID != "" && ev.WorkflowID == workflowID {
					return nil
				}
			}
		}
	}
}

// agentsHealthHandler handles GET /api/v1/agents/health: a depth check
// covering the relational store, the KV store, and the per-provider
// circuit breakers. Open breakers degrade but do not fail the check.
func (s *Server) agentsHealthHandler(c echo.Context) error {
	reqCtx, cancelCheck := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancelCheck()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if s.db != nil {
		dbHealth, err := database.Health(reqCtx, s.db.DB())
		if err != nil {
			status = healthStatusUnhealthy
			checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["database"] = HealthCheck{Status: healthStatusHealthy, Latency: dbHealth.Latency.String()}
		}
	}

	if s.kv != nil {
		if err := s.kv.Ping(reqCtx); err != nil {
			// Rate limiting fails open and blacklisting fails closed, so a
			// down KV store degrades rather than kills the API.
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			checks["kv_store"] = HealthCheck{Status: healthStatusDegraded, Message: err.Error()}
		} else {
			checks["kv_store"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	providers := make(map[string]string)
	if s.breakers != nil {
		for name, state := range s.breakers.States() {
			providers[name] = string(state)
			if state != breaker.StateClosed && status == healthStatusHealthy {
				status = healthStatusDegraded
			}
		}
	}
	for _, name := range s.providers {
		if _, ok := providers[name]; !ok {
			providers[name] = string(breaker.StateClosed) // not yet exercised
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:    status,
		Checks:    checks,
		Providers: providers,
	})
}
