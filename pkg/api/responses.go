package api

import (
	"time"

	"github.com/specforge/specforge/pkg/models"
)

// RegisterResponse is returned by POST /api/v1/auth/register.
type RegisterResponse struct {
	User   *models.User          `json:"user"`
	Tokens *models.TokenResponse `json:"tokens"`
}

// ValidateTokenRequest carries the token under test.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse is returned by POST /api/v1/auth/validate-token.
type ValidateTokenResponse struct {
	Valid    bool      `json:"valid"`
	UserID   string    `json:"user_id"`
	TenantID string    `json:"tenant_id"`
	Expires  time.Time `json:"expires"`
}

// HealthCheck is one component's health within the depth check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthResponse is returned by GET /api/v1/agents/health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Checks    map[string]HealthCheck `json:"checks"`
	Providers map[string]string      `json:"providers,omitempty"`
}
