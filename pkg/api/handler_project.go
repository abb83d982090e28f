package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/models"
)

// createProjectHandler handles POST /api/v1/projects.
func (s *Server) createProjectHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req models.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	project, err := s.projects.Create(c.Request().Context(), id, req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, project)
}

// listProjectsHandler handles GET /api/v1/projects.
func (s *Server) listProjectsHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	status := models.ProjectStatus(c.QueryParam("status"))
	result, err := s.projects.List(c.Request().Context(), id, status)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// getProjectHandler handles GET /api/v1/projects/:id.
func (s *Server) getProjectHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	projectID := c.PathParam("id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}

	project, err := s.projects.Get(c.Request().Context(), id, projectID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, project)
}

// updateProjectHandler handles PUT /api/v1/projects/:id.
func (s *Server) updateProjectHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	projectID := c.PathParam("id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}

	var req models.UpdateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	project, err := s.projects.Update(c.Request().Context(), id, projectID, req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, project)
}

// deleteProjectHandler handles DELETE /api/v1/projects/:id.
func (s *Server) deleteProjectHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	projectID := c.PathParam("id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}

	if err := s.projects.Delete(c.Request().Context(), id, projectID); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// progressHandler handles GET /api/v1/projects/:id/progress.
func (s *Server) progressHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	projectID := c.PathParam("id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}

	snapshot, err := s.projects.Progress(c.Request().Context(), id, projectID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, snapshot)
}
