package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/pkg/metrics"
)

func SetupHealthRouter(e *echo.Echo) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/metrics", metrics.Handler())
}
