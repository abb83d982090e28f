package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/models"
)

func TestCreateExportHandler(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/export", `{}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ExportID)
	assert.Equal(t, models.ExportStatusPending, resp.Status)

	rec = ts.do(http.MethodPost, "/api/v1/projects/missing/export", `{}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadExportHandlerPolling(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)
	exp, err := ts.exports.Create(t.Context(), "t1", p.ID, "u1", models.CreateExportRequest{})
	require.NoError(t, err)

	// Pending exports report their status instead of a file.
	rec := ts.do(http.MethodGet, "/api/v1/exports/"+exp.ID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp models.ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ExportStatusPending, resp.Status)
}

func TestDownloadExportHandlerFailed(t *testing.T) {
	ts := newTestServer(t)
	exp, err := ts.exports.Create(t.Context(), "t1", "p1", "u1", models.CreateExportRequest{})
	require.NoError(t, err)
	exp.Status = models.ExportStatusFailed
	exp.Error = "no documents to export"

	rec := ts.do(http.MethodGet, "/api/v1/exports/"+exp.ID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ExportStatusFailed, resp.Status)
	assert.Equal(t, "no documents to export", resp.Error)
}

func TestDownloadExportHandlerExpired(t *testing.T) {
	ts := newTestServer(t)
	exp, err := ts.exports.Create(t.Context(), "t1", "p1", "u1", models.CreateExportRequest{})
	require.NoError(t, err)
	exp.Status = models.ExportStatusCompleted
	exp.ExpiresAt = time.Now().Add(-time.Hour)

	rec := ts.do(http.MethodGet, "/api/v1/exports/"+exp.ID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadExportHandlerTenantIsolation(t *testing.T) {
	ts := newTestServer(t)
	exp, err := ts.exports.Create(t.Context(), "other-tenant", "p1", "u1", models.CreateExportRequest{})
	require.NoError(t, err)

	// The caller's tenant is t1; another tenant's export does not exist
	// from its point of view.
	rec := ts.do(http.MethodGet, "/api/v1/exports/"+exp.ID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
