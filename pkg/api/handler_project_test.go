package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/services"
)

func TestCreateProjectHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/projects", `{"name":"billing"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "project routes require a token")

	rec = ts.do(http.MethodPost, "/api/v1/projects", `{"name":"billing"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	assert.Equal(t, "billing", project.Name)
	assert.Equal(t, models.ProjectStatusDraft, project.Status)

	// A duplicate name within the tenant conflicts.
	rec = ts.do(http.MethodPost, "/api/v1/projects", `{"name":"billing"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A missing name is a validation failure.
	rec = ts.do(http.MethodPost, "/api/v1/projects", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProjectHandler(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/api/v1/projects/"+p.ID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/projects/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjectsHandler(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)
	_, err = ts.projects.Create(t.Context(), testIdentity(), createReq("beta"))
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/api/v1/projects", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ProjectListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCount)
}

func TestUpdateProjectHandler(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)

	rec := ts.do(http.MethodPut, "/api/v1/projects/"+p.ID, `{"name":"renamed"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	assert.Equal(t, "renamed", project.Name)
}

func TestDeleteProjectHandler(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)

	rec := ts.do(http.MethodDelete, "/api/v1/projects/"+p.ID, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/projects/"+p.ID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressHandler(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/api/v1/projects/"+p.ID+"/progress", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, p.ID, snapshot.ProjectID)
}

func TestProjectHandlersMapPermissionDenied(t *testing.T) {
	ts := newTestServer(t)
	p, err := ts.projects.Create(t.Context(), testIdentity(), createReq("alpha"))
	require.NoError(t, err)
	ts.projects.authErr = services.ErrPermissionDenied

	// Authorize gates stage execution and exports.
	rec := ts.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/step1", `{}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/export", `{}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
