package handler

import (
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	KeySvc         ports.KeyService
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/external", authHandler.ExternalLogin)
	}

	walletHandler := NewWalletHandler(deps.LedgerSvc)

	// Processor webhook authenticates by signature, not by credential.
	v1.POST("/wallet/webhook", walletHandler.Webhook)

	// --- Dual-scheme routes (session token or API key) ---
	flexAuth := middleware.FlexibleAuth(deps.TokenSvc, deps.KeySvc, deps.Logger)
	wallet := v1.Group("/wallet", flexAuth)
	{
		wallet.GET("/balance", middleware.RequirePermission(domain.PermissionRead), walletHandler.GetBalance)
		wallet.POST("/deposit", middleware.RequirePermission(domain.PermissionDeposit), walletHandler.InitiateDeposit)
		wallet.GET("/deposit/:reference/status", middleware.RequirePermission(domain.PermissionRead), walletHandler.GetDepositStatus)
		wallet.POST("/transfer", middleware.RequirePermission(domain.PermissionTransfer), walletHandler.Transfer)
		wallet.GET("/transactions", middleware.RequirePermission(domain.PermissionRead), walletHandler.ListTransactions)
	}

	// --- Session-only routes (key management) ---
	sessionAuth := middleware.SessionAuth(deps.TokenSvc)
	keysHandler := NewKeysHandler(deps.KeySvc)
	keys := v1.Group("/keys", sessionAuth)
	{
		keys.POST("", keysHandler.Create)
		keys.POST("/rollover", keysHandler.Rollover)
		keys.GET("", keysHandler.List)
		keys.DELETE("/:id", keysHandler.Revoke)
	}

	return r
}
