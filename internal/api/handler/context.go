package handler

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/tinygate/tinygate/internal/api/middleware"
	"github.com/tinygate/tinygate/internal/core/domain"
)

// ctxSession returns the identity loaded by the Session middleware. Routes
// reachable anonymously get nil.
func ctxSession(c echo.Context) *domain.Session {
	sess, _ := c.Get(middleware.KeySession).(*domain.Session)
	return sess
}

// bindAndValidate decodes the JSON body into req and runs the validator.
// Malformed bodies are reported as domain.ErrBadInput.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrBadInput)
	}
	return c.Validate(req)
}
