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

func TestRegisterHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/register",
		`{"email":"a@b.co","username":"alice","password":"longenough"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a@b.co", resp.User.Email)
	assert.Equal(t, "bearer", resp.Tokens.TokenType)
}

func TestRegisterHandlerValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/register", `{"username":"alice"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/auth/register", `{not json`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"pw"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens models.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestLoginHandlerRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.loginErr = services.ErrAuthFailed

	rec := ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"wrong"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginHandlerRequiresCredentials(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"r"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/auth/refresh", `{}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/logout", `{}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/auth/me", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "t1", user.TenantID)
}

func TestValidateTokenHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/auth/validate-token", `{"token":"`+validToken+`"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidateTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "t1", resp.TenantID)

	rec = ts.do(http.MethodPost, "/api/v1/auth/validate-token", `{"token":"garbage"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/auth/validate-token", `{}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlacklistStatsHandlerRequiresSuperuser(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/auth/blacklist/stats", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
