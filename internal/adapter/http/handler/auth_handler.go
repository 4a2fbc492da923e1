package handler

import (
	"net/http"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// ExternalLogin handles POST /api/v1/auth/external. It accepts a verified
// identity-provider profile, provisions the account and wallet on first
// sight, and issues a session token.
func (h *AuthHandler) ExternalLogin(c *gin.Context) {
	var req dto.ExternalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.HandleExternalLogin(c.Request.Context(), ports.ExternalProfile{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Picture:   req.Picture,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ExternalLoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.Unix(),
		UserID:    result.User.ID.String(),
		Email:     result.User.Email,
	})
}

// HealthCheck handles GET /health — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
