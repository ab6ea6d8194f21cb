package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/response"
)

// DevTokenIssuer mints a token for uid with the given role.
type DevTokenIssuer func(ctx context.Context, uid, role string) (string, error)

type DevTokenHandler struct {
	issue DevTokenIssuer
}

func NewDevTokenHandler(issue DevTokenIssuer) *DevTokenHandler {
	return &DevTokenHandler{
		issue: issue,
	}
}

type devTokenRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
	Role   string `json:"role" validate:"omitempty,oneof=user admin"`
}

// GenerateToken is only routed outside production.
func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if req.Role == "" {
		req.Role = entity.RoleUser
	}

	token, err := h.issue(c.Request().Context(), req.UserID, req.Role)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to generate token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":  token,
		"userId": req.UserID,
		"role":   req.Role,
	})
}
