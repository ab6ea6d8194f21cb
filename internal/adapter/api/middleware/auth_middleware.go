package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/service"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/response"
)

const (
	ContextKeyUID   = "uid"
	ContextKeyRole  = "role"
	ContextKeyActor = "actor"
)

type AuthMiddleware struct {
	verifier   service.TokenVerifier
	cookieName string
}

func NewAuthMiddleware(verifier service.TokenVerifier, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:   verifier,
		cookieName: cookieName,
	}
}

// Authenticate accepts a bearer token only.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		return m.verify(c, next, token)
	}
}

// AuthenticateStream also accepts the session cookie or an access_token
// query parameter, since EventSource and browser WebSockets cannot set headers.
func (m *AuthMiddleware) AuthenticateStream(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token, ok := bearerToken(c.Request().Header.Get("Authorization")); ok {
			return m.verify(c, next, token)
		}
		if m.cookieName != "" {
			if cookie, err := c.Cookie(m.cookieName); err == nil && cookie.Value != "" {
				return m.verify(c, next, cookie.Value)
			}
		}
		if token := c.QueryParam("access_token"); token != "" {
			return m.verify(c, next, token)
		}
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}
}

func (m *AuthMiddleware) verify(c echo.Context, next echo.HandlerFunc, token string) error {
	actor, err := m.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	c.Set(ContextKeyUID, actor.UserID)
	c.Set(ContextKeyRole, actor.Role)
	c.Set(ContextKeyActor, *actor)

	return next(c)
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ActorFrom returns the caller established by the auth middleware.
func ActorFrom(c echo.Context) (entity.Actor, error) {
	actor, ok := c.Get(ContextKeyActor).(entity.Actor)
	if !ok || actor.UserID == "" {
		return entity.Actor{}, errors.Unauthorized("Invalid session", nil)
	}
	return actor, nil
}
