package handler

import (
	"token-ledger/internal/adapter/http/middleware"
	redisStore "token-ledger/internal/adapter/storage/redis"
	"token-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SessionSvc     ports.SessionService
	ClearingSvc    ports.ClearingService
	TopupSvc       ports.TopupService
	ReportingSvc   ports.ReportingService
	Verifier       ports.TokenVerifier
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
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

	// Health check (deep, verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	auth := middleware.IdentityAuth(deps.Verifier, deps.Logger)
	asUser := middleware.RequireRole(middleware.RoleUser)
	asMerchant := middleware.RequireRole(middleware.RoleMerchant)
	asAdmin := middleware.RequireRole(middleware.RoleAdmin)

	sessionHandler := NewSessionHandler(deps.SessionSvc)
	clearingHandler := NewClearingHandler(deps.ClearingSvc)
	topupHandler := NewTopupHandler(deps.TopupSvc)
	walletHandler := NewWalletHandler(deps.ReportingSvc)

	// API v1 routes
	v1 := r.Group("/api/v1", auth)

	// --- Top-up catalog and purchases ---
	v1.GET("/packs", rl("reports"), topupHandler.ListPacks)
	v1.POST("/topups", asUser, rl("topups"), topupHandler.BuyPack)

	// --- Payment sessions ---
	sessions := v1.Group("/sessions")
	{
		sessions.POST("", asMerchant, rl("sessions_create"), sessionHandler.Create)
		sessions.GET("", asMerchant, rl("reports"), sessionHandler.List)
		sessions.GET("/:id", rl("reports"), sessionHandler.Preview)
		sessions.POST("/:id/confirm", asUser, rl("sessions_confirm"), sessionHandler.Confirm)
		sessions.POST("/:id/cancel", asMerchant, rl("sessions_create"), sessionHandler.Cancel)
	}

	// --- Clearing (merchant side) ---
	clearing := v1.Group("/clearing")
	{
		clearing.POST("", asMerchant, rl("clearing"), clearingHandler.Create)
		clearing.GET("", asMerchant, rl("reports"), clearingHandler.List)
		clearing.GET("/:id", rl("reports"), clearingHandler.Get)
	}

	// --- Balances ---
	v1.GET("/wallets/balance", asUser, rl("reports"), walletHandler.UserBalance)
	v1.GET("/merchants/balance", asMerchant, rl("reports"), walletHandler.MerchantBalance)

	// --- Admin ---
	admin := v1.Group("/admin", asAdmin)
	{
		admin.GET("/clearing", rl("admin"), clearingHandler.ListForAdmin)
		admin.POST("/clearing/:id/approve", rl("admin"), clearingHandler.Approve)
		admin.POST("/clearing/:id/reject", rl("admin"), clearingHandler.Reject)
		admin.POST("/clearing/:id/paid", rl("admin"), clearingHandler.MarkPaid)
		admin.POST("/credits", rl("admin"), topupHandler.AdminCredit)
		admin.GET("/accounts/:id/entries", rl("admin"), walletHandler.History)
		admin.GET("/accounts/:id/audit", rl("admin"), walletHandler.Audit)
	}

	return r
}
