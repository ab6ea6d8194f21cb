package middleware

import (
	"github.com/labstack/echo/v4"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/response"
)

type AdminMiddleware struct{}

func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

// AdminOnly must run after Authenticate. The role comes from the verified token.
func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := c.Get(ContextKeyRole).(string)
		if !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		if role != entity.RoleAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}

		return next(c)
	}
}
