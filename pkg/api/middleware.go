package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/specforge/specforge/pkg/auth"
)

// Context keys set by the middleware chain.
const (
	ctxKeyClaims    = "claims"
	ctxKeyToken     = "token"
	ctxKeyRequestID = "request_id"
)

// publicPaths require no bearer token. Everything else under /api/v1
// does.
var publicPaths = map[string]bool{
	"/api/v1/auth/register":       true,
	"/api/v1/auth/login":          true,
	"/api/v1/auth/refresh":        true,
	"/api/v1/auth/validate-token": true,
	"/api/v1/agents/health":       true,
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")
			return next(c)
		}
	}
}

// requestID assigns a request id when the client sent none and echoes it
// back. Single-stage invocations reuse it as their correlation id.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(ctxKeyRequestID, id)
			c.Response().Header().Set("X-Request-ID", id)
			return next(c)
		}
	}
}

// bodyLimit rejects oversized request bodies with 413 and malformed
// Content-Length headers with 400.
func bodyLimit(max int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if raw := req.Header.Get("Content-Length"); raw != "" {
				length, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || length < 0 {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid Content-Length header")
				}
				if length > max {
					return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
						fmt.Sprintf("request body exceeds %d bytes", max))
				}
			}
			// Chunked bodies have no Content-Length; cap the reader.
			req.Body = http.MaxBytesReader(c.Response(), req.Body, max)
			return next(c)
		}
	}
}

// corsMiddleware handles origin checks and preflight requests.
func corsMiddleware(allowedOrigins []string) echo.MiddlewareFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				h.Set("Vary", "Origin")
			}
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}

// authenticate verifies the bearer token, applies the fail-closed
// blacklist check, and attaches the caller's identity to the request
// context. Public paths pass through untouched.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if publicPaths[c.Request().URL.Path] {
			return next(c)
		}

		token := bearerToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}

		claims, err := s.tokens.Verify(token, auth.TokenTypeAccess)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if s.blacklist.IsTokenBlacklisted(c.Request().Context(), claims) {
			return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
		}

		c.Set(ctxKeyClaims, claims)
		c.Set(ctxKeyToken, token)
		ctx := auth.WithIdentity(c.Request().Context(), auth.Identity{
			TenantID: claims.TenantID,
			UserID:   claims.Subject,
		})
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// rateLimit applies the sliding-window policy for the matched path and
// sets the X-RateLimit-* headers on every checked response.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		policy := s.limiter.PolicyFor(path)
		res := s.limiter.Check(c.Request().Context(), clientIdentifier(c), path, policy.Limit, policy.Window)

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		h.Set("X-RateLimit-Window", strconv.Itoa(int(res.Window.Seconds())))
		if res.Note != "" {
			// Fail-open outcomes carry their note so clients can tell a
			// real allowance from a degraded limiter.
			h.Set("X-RateLimit-Note", res.Note)
		}

		if !res.Allowed {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

// clientIdentifier resolves who the rate limit applies to: the tenant
// for authenticated requests, otherwise the client address by proxy
// header priority.
func clientIdentifier(c echo.Context) string {
	if id, ok := auth.IdentityFrom(c.Request().Context()); ok {
		return "tenant:" + id.TenantID
	}
	if fwd := c.Request().Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return "ip:" + strings.TrimSpace(first)
		}
	}
	if real := c.Request().Header.Get("X-Real-IP"); real != "" {
		return "ip:" + real
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return "ip:" + c.Request().RemoteAddr
	}
	return "ip:" + host
}

// bearerToken extracts the access token from the Authorization header,
// falling back to the access_token query parameter for SSE clients that
// cannot set headers.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if scheme, token, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.QueryParam("access_token")
}

// identity returns the resolved caller; the auth middleware guarantees
// presence on protected routes.
func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(c.Request().Context())
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}
