package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, limiter *ratelimit.RateLimiter) {
	SetupOrderRouter(e, authMiddleware)
	SetupChatRouter(e, authMiddleware, limiter)
	SetupWalletRouter(e, authMiddleware)
	SetupAdminRouter(e, authMiddleware, adminMiddleware)
	SetupStreamRouter(e, authMiddleware)
	SetupHealthRouter(e)
}
