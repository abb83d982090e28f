package api

import (
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
)

// createExportHandler handles POST /api/v1/projects/:id/export: queues a
// deferred ZIP export of the project's latest documents.
func (s *Server) createExportHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	projectID := c.PathParam("id")
	if projectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project id is required")
	}

	var req models.CreateExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.projects.Authorize(c.Request().Context(), id, projectID, auth.PermExportDocuments); err != nil {
		return mapServiceError(err)
	}

	exp, err := s.exports.Create(c.Request().Context(), id.TenantID, projectID, id.UserID, req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &models.ExportResponse{
		ExportID:  exp.ID,
		Status:    exp.Status,
		ExpiresAt: exp.ExpiresAt,
	})
}

// downloadExportHandler handles GET /api/v1/exports/:id. A finished
// export within its window streams the archive; an unfinished one
// returns its status as JSON so clients can poll; expired or failed
// exports are not found.
func (s *Server) downloadExportHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	exportID := c.PathParam("id")
	if exportID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "export id is required")
	}

	exp, err := s.exports.Get(c.Request().Context(), id.TenantID, exportID)
	if err != nil {
		return mapServiceError(err)
	}

	switch exp.Status {
	case models.ExportStatusPending, models.ExportStatusGenerating:
		return c.JSON(http.StatusOK, &models.ExportResponse{
			ExportID:  exp.ID,
			Status:    exp.Status,
			ExpiresAt: exp.ExpiresAt,
		})
	case models.ExportStatusCompleted:
		if !exp.IsDownloadable(time.Now().UTC()) {
			return echo.NewHTTPError(http.StatusNotFound, "export has expired")
		}
		path, err := s.exports.OpenDownload(c.Request().Context(), id.TenantID, exportID)
		if err != nil {
			return mapServiceError(err)
		}
		return c.Attachment(path, fmt.Sprintf("export-%s.zip", exp.ID))
	case models.ExportStatusFailed:
		return c.JSON(http.StatusOK, &models.ExportResponse{
			ExportID:  exp.ID,
			Status:    exp.Status,
			ExpiresAt: exp.ExpiresAt,
			Error:     exp.Error,
		})
	default:
		return echo.NewHTTPError(http.StatusNotFound, "export is no longer available")
	}
}
