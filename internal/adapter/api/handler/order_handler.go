package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/domain/entity"
	"gamescrow/internal/usecase"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/response"
	"gamescrow/pkg/utils"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	orderUseCase *usecase.OrderUseCase
}

func NewOrderHandler(orderUseCase *usecase.OrderUseCase) *OrderHandler {
	return &OrderHandler{
		orderUseCase: orderUseCase,
	}
}

type createOrderRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int64  `json:"quantity" validate:"omitempty,min=1,max=1000"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type disputeOrderRequest struct {
	ReasonCode string `json:"reasonCode" validate:"max=64"`
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	order, replayed, err := h.orderUseCase.CreateOrder(c.Request().Context(), actor.UserID, usecase.CreateOrderInput{
		ItemID:         req.ItemID,
		Quantity:       req.Quantity,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		return response.Error(c, err)
	}

	if replayed {
		return response.Success(c, order)
	}
	return response.Created(c, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return response.Error(c, errors.BadRequest("Order ID is required", nil))
	}

	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.GetOrder(c.Request().Context(), orderID, actor)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, order)
}

func (h *OrderHandler) ListMyOrders(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	pagination := utils.GetPaginationParams(c)

	orders, total, err := h.orderUseCase.ListMyOrders(c.Request().Context(), actor.UserID, usecase.ListMyOrdersInput{
		Role:   entity.Side(c.QueryParam("role")),
		Status: entity.OrderStatus(strings.ToUpper(c.QueryParam("status"))),
	}, pagination)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, orders, total, pagination.Page, pagination.PageSize)
}

func (h *OrderHandler) AcceptOrder(c echo.Context) error {
	return h.transition(c, func(actor entity.Actor, orderID string) (*entity.Order, error) {
		return h.orderUseCase.Accept(c.Request().Context(), orderID, actor.UserID)
	})
}

func (h *OrderHandler) ConfirmSeller(c echo.Context) error {
	return h.transition(c, func(actor entity.Actor, orderID string) (*entity.Order, error) {
		return h.orderUseCase.Confirm(c.Request().Context(), orderID, actor.UserID, entity.SideSeller)
	})
}

func (h *OrderHandler) ConfirmBuyer(c echo.Context) error {
	return h.transition(c, func(actor entity.Actor, orderID string) (*entity.Order, error) {
		return h.orderUseCase.Confirm(c.Request().Context(), orderID, actor.UserID, entity.SideBuyer)
	})
}

func (h *OrderHandler) MarkReady(c echo.Context) error {
	return h.transition(c, func(actor entity.Actor, orderID string) (*entity.Order, error) {
		return h.orderUseCase.Ready(c.Request().Context(), orderID, actor.UserID)
	})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	var req cancelOrderRequest
	if err := bindOptional(c, &req); err != nil {
		return response.Error(c, err)
	}

	return h.transition(c, func(actor entity.Actor, orderID string) (*entity.Order, error) {
		return h.orderUseCase.Cancel(c.Request().Context(), orderID, actor, req.Reason)
	})
}

func (h *OrderHandler) DisputeOrder(c echo.Context) error {
	var req disputeOrderRequest
	if err := bindOptional(c, &req); err != nil {
		return response.Error(c, err)
	}

	return h.transition(c, func(actor entity.Actor, orderID string) (*entity.Order, error) {
		return h.orderUseCase.Dispute(c.Request().Context(), orderID, actor.UserID, req.ReasonCode)
	})
}

func (h *OrderHandler) transition(c echo.Context, fn func(actor entity.Actor, orderID string) (*entity.Order, error)) error {
	orderID := c.Param("id")
	if orderID == "" {
		return response.Error(c, errors.BadRequest("Order ID is required", nil))
	}

	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	order, err := fn(actor, orderID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, order)
}

// bindOptional binds and validates a body that clients may omit entirely.
func bindOptional(c echo.Context, req interface{}) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := c.Bind(req); err != nil {
		if he, ok := err.(*echo.HTTPError); ok && he.Code == http.StatusUnsupportedMediaType {
			return nil
		}
		return errors.BadRequest("Invalid request body", err)
	}
	return c.Validate(req)
}
