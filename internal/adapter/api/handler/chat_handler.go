package handler

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/domain/entity"
	"gamescrow/internal/usecase"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type postMessageRequest struct {
	Kind     string            `json:"kind" validate:"omitempty,oneof=TEXT IMAGE VIDEO text image video"`
	Body     string            `json:"body" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type markReadRequest struct {
	LastReadMessageID string `json:"lastReadMessageId" validate:"required"`
}

type attachmentRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

type markReadResponse struct {
	Cursor  *entity.ReadCursor `json:"cursor"`
	Updated bool               `json:"updated"`
}

func (h *ChatHandler) PostMessage(c echo.Context) error {
	var req postMessageRequest
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

	message, err := h.chatUseCase.PostMessage(c.Request().Context(), c.Param("id"), actor, usecase.PostMessageInput{
		Kind:     entity.MessageKind(strings.ToUpper(req.Kind)),
		Body:     req.Body,
		Metadata: req.Metadata,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	page, err := h.chatUseCase.ListMessages(c.Request().Context(), c.Param("id"), actor, usecase.ListMessagesInput{
		Cursor:    c.QueryParam("cursor"),
		Direction: c.QueryParam("dir"),
		Limit:     limit,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, page)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	var req markReadRequest
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

	cursor, updated, err := h.chatUseCase.MarkRead(c.Request().Context(), c.Param("id"), actor, req.LastReadMessageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, markReadResponse{Cursor: cursor, Updated: updated})
}

func (h *ChatHandler) CreateAttachmentUpload(c echo.Context) error {
	var req attachmentRequest
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

	target, err := h.chatUseCase.CreateAttachmentUpload(c.Request().Context(), c.Param("id"), actor, req.ContentType)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, target)
}
