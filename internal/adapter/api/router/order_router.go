package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/internal/adapter/api/middleware"
)

// SetupOrderRouter initializes order and chat routes
func SetupOrderRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	orderHandler := handler.GetOrderHandler()

	orders := e.Group("/v1/orders")
	orders.Use(authMiddleware.Authenticate)

	orders.POST("", orderHandler.CreateOrder)
	orders.GET("/my", orderHandler.ListMyOrders)
	orders.GET("/:id", orderHandler.GetOrder)

	// Transitions
	orders.POST("/:id/accept", orderHandler.AcceptOrder)
	orders.POST("/:id/confirm/seller", orderHandler.ConfirmSeller)
	orders.POST("/:id/confirm/buyer", orderHandler.ConfirmBuyer)
	orders.PATCH("/:id/ready", orderHandler.MarkReady)
	orders.POST("/:id/cancel", orderHandler.CancelOrder)
	orders.POST("/:id/dispute", orderHandler.DisputeOrder)
}
