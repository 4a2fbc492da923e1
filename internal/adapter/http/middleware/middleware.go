package middleware

import (
	"net/http"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderAPIKey carries the raw API key secret (sk_<64 hex chars>).
	HeaderAPIKey = "X-API-Key"

	// Context keys
	CtxUserID      = "user_id"
	CtxUserEmail   = "user_email"
	CtxPermissions = "permissions"
	CtxAuthScheme  = "auth_scheme"

	// Auth schemes
	SchemeSession = "session"
	SchemeAPIKey  = "api_key"
)

// FlexibleAuth authenticates a request with either credential scheme.
// A bearer session token is tried first; on verification failure the request
// falls through to the API key header rather than failing outright. A session
// identity is always granted the full permission set; an API key identity
// carries the permissions granted at issuance. If neither scheme authorizes,
// the request is rejected as Unauthorized.
func FlexibleAuth(tokenSvc ports.TokenService, keySvc ports.KeyService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			claims, err := tokenSvc.Validate(strings.TrimPrefix(authHeader, "Bearer "))
			if err == nil {
				c.Set(CtxUserID, claims.UserID)
				c.Set(CtxUserEmail, claims.Email)
				c.Set(CtxPermissions, domain.PermissionSet(domain.AllPermissions()))
				c.Set(CtxAuthScheme, SchemeSession)
				c.Next()
				return
			}
			log.Debug().Err(err).Msg("session token rejected, trying api key")
		}

		if rawKey := c.GetHeader(HeaderAPIKey); rawKey != "" {
			user, permissions, err := keySvc.Validate(c.Request.Context(), rawKey)
			if err != nil {
				log.Error().Err(err).Msg("api key validation failed")
				response.Error(c, apperror.InternalError(err))
				c.Abort()
				return
			}
			if user != nil {
				c.Set(CtxUserID, user.ID)
				c.Set(CtxUserEmail, user.Email)
				c.Set(CtxPermissions, permissions)
				c.Set(CtxAuthScheme, SchemeAPIKey)
				c.Next()
				return
			}
		}

		response.Error(c, apperror.ErrUnauthorized())
		c.Abort()
	}
}

// RequirePermission enforces the operation's required permission after
// authentication. Session identities always pass; API key identities pass
// only if their granted set contains the permission.
func RequirePermission(permission domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxAuthScheme) == SchemeSession {
			c.Next()
			return
		}

		granted, _ := c.Get(CtxPermissions)
		perms, ok := granted.(domain.PermissionSet)
		if !ok || !perms.Contains(permission) {
			response.Error(c, apperror.ErrForbidden(string(permission)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionAuth accepts only a bearer session token; API keys cannot manage
// other API keys.
func SessionAuth(tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserEmail, claims.Email)
		c.Set(CtxAuthScheme, SchemeSession)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error and the
// request is rejected with 413 Payload Too Large.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
