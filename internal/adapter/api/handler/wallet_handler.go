package handler

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/usecase"
	"gamescrow/pkg/response"
	"gamescrow/pkg/utils"
)

type WalletHandler struct {
	walletUseCase *usecase.WalletUseCase
}

func NewWalletHandler(walletUseCase *usecase.WalletUseCase) *WalletHandler {
	return &WalletHandler{
		walletUseCase: walletUseCase,
	}
}

func (h *WalletHandler) GetWallet(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	wallet, err := h.walletUseCase.GetWallet(c.Request().Context(), actor.UserID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, wallet)
}

func (h *WalletHandler) ListEntries(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	pagination := utils.GetPaginationParams(c)

	entries, total, err := h.walletUseCase.ListEntries(c.Request().Context(), actor.UserID, pagination)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, entries, total, pagination.Page, pagination.PageSize)
}
