package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/usecase"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/response"
	"gamescrow/pkg/utils"
)

type AdminHandler struct {
	disputeUseCase *usecase.DisputeUseCase
	walletUseCase  *usecase.WalletUseCase
}

func NewAdminHandler(disputeUseCase *usecase.DisputeUseCase, walletUseCase *usecase.WalletUseCase) *AdminHandler {
	return &AdminHandler{
		disputeUseCase: disputeUseCase,
		walletUseCase:  walletUseCase,
	}
}

type resolveDisputeRequest struct {
	SellerPercentage string `json:"sellerPercentage" validate:"required,decimal"`
	Note             string `json:"note" validate:"max=2000"`
}

type depositRequest struct {
	Amount string `json:"amount" validate:"required,decimal"`
}

func (h *AdminHandler) ListDisputes(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	orders, total, err := h.disputeUseCase.ListDisputes(c.Request().Context(), pagination)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, orders, total, pagination.Page, pagination.PageSize)
}

func (h *AdminHandler) ResolveDispute(c echo.Context) error {
	var req resolveDisputeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	admin, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	pct, err := decimal.NewFromString(req.SellerPercentage)
	if err != nil {
		return response.Error(c, errors.Validation("sellerPercentage must be a number"))
	}

	order, err := h.disputeUseCase.Resolve(c.Request().Context(), c.Param("id"), admin, usecase.ResolveDisputeInput{
		SellerPercentage: pct,
		Note:             req.Note,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, order)
}

// Deposit credits a user's wallet. Funding rails are outside this service;
// operators use this to mirror settled top-ups.
func (h *AdminHandler) Deposit(c echo.Context) error {
	var req depositRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	admin, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return response.Error(c, errors.Validation("amount must be a decimal string"))
	}

	wallet, err := h.walletUseCase.Deposit(c.Request().Context(), c.Param("userId"), amount, admin.UserID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, wallet)
}
