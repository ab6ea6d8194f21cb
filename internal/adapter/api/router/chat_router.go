package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/infrastructure/ratelimit"
)

// SetupChatRouter sets up the per-order chat routes
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	chatHandler := handler.GetChatHandler()

	chat := e.Group("/v1/orders/:id")
	chat.Use(authMiddleware.Authenticate)

	chat.GET("/messages", chatHandler.ListMessages)
	chat.POST("/messages", chatHandler.PostMessage)
	chat.POST("/read", chatHandler.MarkRead)
	chat.POST("/attachments", chatHandler.CreateAttachmentUpload, middleware.RateLimit(limiter, ratelimit.ActionAPI))
}
