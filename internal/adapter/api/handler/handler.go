package handler

import (
	"time"

	"gamescrow/internal/infrastructure/realtime"
	"gamescrow/internal/usecase"
)

var (
	orderHandler    *OrderHandler
	chatHandler     *ChatHandler
	walletHandler   *WalletHandler
	adminHandler    *AdminHandler
	streamHandler   *StreamHandler
	healthHandler   *HealthHandler
	devTokenHandler *DevTokenHandler
)

func Setup(
	orderUseCase *usecase.OrderUseCase,
	chatUseCase *usecase.ChatUseCase,
	walletUseCase *usecase.WalletUseCase,
	disputeUseCase *usecase.DisputeUseCase,
	hub *realtime.Hub,
	heartbeat time.Duration,
	checks map[string]HealthCheck,
) {
	orderHandler = NewOrderHandler(orderUseCase)
	chatHandler = NewChatHandler(chatUseCase)
	walletHandler = NewWalletHandler(walletUseCase)
	adminHandler = NewAdminHandler(disputeUseCase, walletUseCase)
	streamHandler = NewStreamHandler(hub, orderUseCase, heartbeat)
	healthHandler = NewHealthHandler(checks)
}

func SetupDevTokenHandler(issue DevTokenIssuer) {
	devTokenHandler = NewDevTokenHandler(issue)
}

func GetOrderHandler() *OrderHandler {
	return orderHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWalletHandler() *WalletHandler {
	return walletHandler
}

func GetAdminHandler() *AdminHandler {
	return adminHandler
}

func GetStreamHandler() *StreamHandler {
	return streamHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}
