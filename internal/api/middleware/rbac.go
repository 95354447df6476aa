package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// RequireAdmin enforces that the session belongs to an administrator.
// Anonymous requests get 401, authenticated non-admins 403.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := c.Get(KeySession).(*domain.Session)
			if !ok {
				return domain.ErrUnauthenticated
			}
			if !sess.IsAdmin {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
