package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/models"
)

// registerHandler handles POST /api/v1/auth/register.
func (s *Server) registerHandler(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, tokens, err := s.auth.Register(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, &RegisterResponse{User: user, Tokens: tokens})
}

// loginHandler handles POST /api/v1/auth/login.
func (s *Server) loginHandler(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	_, tokens, err := s.auth.Login(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, tokens)
}

// refreshHandler handles POST /api/v1/auth/refresh.
func (s *Server) refreshHandler(c echo.Context) error {
	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	tokens, err := s.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, tokens)
}

// logoutHandler handles POST /api/v1/auth/logout. The middleware already
// verified the token; logout blacklists its JTI until natural expiry.
func (s *Server) logoutHandler(c echo.Context) error {
	claims, _ := c.Get(ctxKeyClaims).(*auth.Claims)
	token, _ := c.Get(ctxKeyToken).(string)
	if claims == nil || token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	if err := s.auth.Logout(c.Request().Context(), token, claims); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// meHandler handles GET /api/v1/auth/me.
func (s *Server) meHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	user, err := s.auth.CurrentUser(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// validateTokenHandler handles POST /api/v1/auth/validate-token. The
// token under test travels in the body; the endpoint itself is public.
func (s *Server) validateTokenHandler(c echo.Context) error {
	var req ValidateTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	claims, err := s.auth.ValidateToken(c.Request().Context(), req.Token)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &ValidateTokenResponse{
		Valid:    true,
		UserID:   claims.Subject,
		TenantID: claims.TenantID,
		Expires:  claims.ExpiresAt.Time,
	})
}

// blacklistStatsHandler handles GET /api/v1/auth/blacklist/stats.
func (s *Server) blacklistStatsHandler(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	stats, err := s.auth.BlacklistStats(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, stats)
}
