package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/api/metrics"
	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/session"
	"github.com/tinygate/tinygate/pkg/logger"
)

// Keys under which Session stores the authenticated identity.
const (
	KeyUsername = "username"
	KeyIsAdmin  = "is_admin"
	KeySession  = "session"
)

// SessionAuthenticator is the part of the session controller the middleware needs.
type SessionAuthenticator interface {
	Now() time.Time
	Authenticate(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	Renew(sess *domain.Session, now time.Time) (string, error)
	Cookie(token string) *http.Cookie
	ExpiredCookie() *http.Cookie
}

// Session loads the identity cookie, enforces its deadlines and renews it.
// Requests without a valid identity continue as anonymous; a rejected
// identity is cleared from the client.
func Session(ctrl SessionAuthenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			now := ctrl.Now()
			sess, err := ctrl.Authenticate(c.Request().Context(), cookie.Value, now)
			if err != nil {
				var rejected *session.RejectedError
				if !errors.As(err, &rejected) {
					return err
				}
				metrics.SessionRejectionsTotal.WithLabelValues(string(rejected.Reason)).Inc()
				log.Info().
					Str("peer", c.RealIP()).
					Str("reason", string(rejected.Reason)).
					Msg("session rejected")
				c.SetCookie(ctrl.ExpiredCookie())
				return next(c)
			}

			token, err := ctrl.Renew(sess, now)
			if err != nil {
				return err
			}
			c.SetCookie(ctrl.Cookie(token))

			c.Set(KeyUsername, sess.Username)
			c.Set(KeyIsAdmin, sess.IsAdmin)
			c.Set(KeySession, sess)

			log.Debug().
				Str("peer", c.RealIP()).
				Str("user", logger.SafeUser(sess.Username)).
				Msg("session renewed")
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(KeySession).(*domain.Session); !ok {
				return domain.ErrUnauthenticated
			}
			return next(c)
		}
	}
}
