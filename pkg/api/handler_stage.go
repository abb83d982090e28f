package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
)

// stepHandler handles POST /api/v1/projects/:id/step{N}: one synchronous
// stage invocation. Prerequisite documents come from storage, so stages
// can be re-run individually after a full workflow.
func (s *Server) stepHandler(stage models.Stage) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := identity(c)
		if err != nil {
			return err
		}
		projectID := c.PathParam("id")
		if projectID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
		}

		var req models.StageRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		if err := s.projects.Authorize(c.Request().Context(), id, projectID, auth.PermAgentExecute); err != nil {
			return mapServiceError(err)
		}

		result, err := s.engine.ExecuteSingleStage(c.Request().Context(), id.TenantID, id.UserID, projectID, stage, req)
		if err != nil {
			return mapServiceError(err)
		}

		return c.JSON(http.StatusOK, &stageResultResponse{
			Stage:         int(result.Stage),
			AgentType:     result.Stage.AgentType(),
			Document:      result.Document,
			EpicDocuments: result.EpicDocuments,
			ExecutionID:   result.ExecutionID,
			Output:        result.Output,
		})
	}
}
