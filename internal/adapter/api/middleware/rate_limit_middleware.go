package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"gamescrow/internal/infrastructure/ratelimit"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/logger"
	"gamescrow/pkg/response"
)

// RateLimit throttles requests per client IP under the given action.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, retryAfter := limiter.Allow(ip, action)
			if !allowed {
				logger.Warn("Rate limit exceeded for IP %s (%s), retry in %v", ip, action, retryAfter)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", retryAfter))
			}

			return next(c)
		}
	}
}
