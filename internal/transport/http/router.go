package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/ratelimit"
	"github.com/ErlanBelekov/account-service/internal/repository"
	"github.com/ErlanBelekov/account-service/internal/token"
	"github.com/ErlanBelekov/account-service/internal/transport/http/handler"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// Limiters carries the two rate-limit tiers: a coarse one for all
// traffic and a strict one for credential endpoints.
type Limiters struct {
	API  ratelimit.Limiter
	Auth ratelimit.Limiter
}

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	tokens *token.Service,
	users repository.UserRepository,
	limiters Limiters,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit("api", limiters.API, logger))

	authMW := middleware.Auth(tokens, users, logger)
	strictLimit := middleware.RateLimit("auth", limiters.Auth, logger)

	// Credential endpoints sit behind the strict limiter.
	r.POST("/signup", strictLimit, authHandler.Signup)
	r.POST("/login", strictLimit, authHandler.Login)
	r.POST("/admin/login", strictLimit, authHandler.AdminLogin)
	r.POST("/forgot-password", strictLimit, authHandler.ForgotPassword)
	r.PATCH("/reset-password/:token", strictLimit, authHandler.ResetPassword)

	// Protected routes
	r.PATCH("/update-my-password", authMW, authHandler.UpdatePassword)
	r.GET("/me", authMW, authHandler.Me)

	// Admin-only account management
	admin := r.Group("/admin/users", authMW, middleware.RequireRole(domain.RoleAdmin))
	admin.PATCH("/:id/active", authHandler.SetUserActive)

	return r
}
