package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/agent"
	"github.com/specforge/specforge/pkg/llm"
	"github.com/specforge/specforge/pkg/services"
)

// mapServiceError maps service-layer errors to HTTP error responses.
// Adapter internals never reach the client; raw errors are logged.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	var precondErr *services.PreconditionError
	if errors.As(err, &precondErr) {
		return echo.NewHTTPError(http.StatusConflict, precondErr.Error())
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, services.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPrecondition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAuthRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, services.ErrAuthFailed):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, services.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, "permission denied")
	case errors.Is(err, services.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	// Agent failures surface with their correlation id so the client can
	// find the execution record.
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		slog.Error("Agent execution failed",
			"agent_type", agentErr.AgentType,
			"correlation_id", agentErr.CorrelationID,
			"error", err)
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("agent execution failed (correlation_id: %s)", agentErr.CorrelationID))
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		slog.Error("LLM request failed", "kind", llmErr.Kind, "provider", llmErr.Provider, "error", err)
		if llmErr.Kind == llm.KindAllProvidersFailed || llmErr.Kind == llm.KindNotConfigured {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no language model provider available")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "language model request failed")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
