package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
)

// writeSSE emits one event in text/event-stream framing and flushes it.
func writeSSE(c echo.Context, ev models.WorkflowEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", payload); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

// sseHeaders prepares the response for streaming.
func sseHeaders(c echo.Context) {
	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
}

// eventsHandler handles GET /api/v1/projects/:id/events: an open-ended
// SSE stream of the project's workflow events. A dropped client cancels
// only the stream, never an in-flight workflow.
func (s *Server) eventsHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	projectID := c.PathParam("id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}
	if err := s.projects.Authorize(c.Request().Context(), id, projectID, auth.PermAgentRead); err != nil {
		return mapServiceError(err)
	}

	ctx := c.Request().Context()
	events, cancel, err := s.events.Subscribe(ctx, id.TenantID, projectID)
	if err != nil {
		s.logger.Error("Failed to subscribe to project events",
			"tenant_id", id.TenantID, "project_id", projectID, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream unavailable")
	}
	defer cancel()

	sseHeaders(c)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(c, ev); err != nil {
				return nil // client went away
			}
		}
	}
}
