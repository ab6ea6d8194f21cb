package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/internal/adapter/api/middleware"
)

func SetupWalletRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	walletHandler := handler.GetWalletHandler()

	wallet := e.Group("/v1/wallet")
	wallet.Use(authMiddleware.Authenticate)

	wallet.GET("", walletHandler.GetWallet)
	wallet.GET("/entries", walletHandler.ListEntries)
}
