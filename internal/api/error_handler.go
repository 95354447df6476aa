package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// Error kinds rendered in the "error" field of every failure response.
const (
	KindBadInput                 = "BadInput"
	KindInvalidCredentials       = "InvalidCredentials"
	KindInvalidRegistrationToken = "InvalidRegistrationToken"
	KindConflict                 = "Conflict"
	KindNotFound                 = "NotFound"
	KindUnauthenticated          = "Unauthenticated"
	KindForbidden                = "Forbidden"
	KindInternal                 = "Internal"
)

const internalMessage = "an internal server error occurred"

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Msg   string `json:"msg"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<kind>", "msg": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: kindForStatus(he.Code), Msg: fmt.Sprintf("%v", he.Message)}
	}

	// The order matters: the registration token sentinel must win over the
	// not-found family it collapses.
	switch {
	case errors.Is(err, domain.ErrBadInput):
		return http.StatusBadRequest, errorResponse{KindBadInput, err.Error()}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{KindInvalidCredentials, domain.ErrInvalidCredentials.Error()}
	case errors.Is(err, domain.ErrInvalidRegistrationToken):
		return http.StatusUnauthorized, errorResponse{KindInvalidRegistrationToken, domain.ErrInvalidRegistrationToken.Error()}
	case errors.Is(err, domain.ErrRegistrationDisabled):
		return http.StatusNotFound, errorResponse{KindNotFound, http.StatusText(http.StatusNotFound)}
	case errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrTokenConsumed):
		return http.StatusConflict, errorResponse{KindConflict, err.Error()}
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusNotFound, errorResponse{KindNotFound, err.Error()}
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{KindUnauthenticated, domain.ErrUnauthenticated.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{KindForbidden, domain.ErrForbidden.Error()}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("peer", c.RealIP()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{KindInternal, internalMessage}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return KindBadInput
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	}
	if code >= http.StatusInternalServerError {
		return KindInternal
	}
	return http.StatusText(code)
}
