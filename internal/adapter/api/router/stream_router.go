package router

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/internal/adapter/api/middleware"
)

// SetupStreamRouter registers the realtime endpoints. They accept the
// session cookie or access_token query parameter as well as a bearer header.
func SetupStreamRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	streamHandler := handler.GetStreamHandler()

	e.GET("/sse", streamHandler.HandleSSE, authMiddleware.AuthenticateStream)
	e.GET("/ws", streamHandler.HandleWebSocket, authMiddleware.AuthenticateStream)
}
