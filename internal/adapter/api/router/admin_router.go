package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/internal/adapter/api/middleware"
)

func SetupAdminRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	adminHandler := handler.GetAdminHandler()

	// Admin routes - require authentication and admin role
	admin := e.Group("/v1/admin")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(adminMiddleware.AdminOnly)

	admin.GET("/disputes", adminHandler.ListDisputes)
	admin.PATCH("/disputes/:id/resolve", adminHandler.ResolveDispute)
	admin.POST("/wallets/:userId/deposit", adminHandler.Deposit)
}
