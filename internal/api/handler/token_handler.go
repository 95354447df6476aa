package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tinygate/tinygate/internal/api/metrics"
	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/core/ports"
)

// TokenHandler exposes invite token administration. Every route sits behind
// RequireAdmin.
type TokenHandler struct {
	invites ports.InviteService
}

func NewTokenHandler(invites ports.InviteService) *TokenHandler {
	return &TokenHandler{invites: invites}
}

// Issue creates a new invite token owned by the calling admin.
//
// @Summary      Issue an invite token
// @Tags         token
// @Produce      json
// @Success      200  {object}  domain.InviteToken
// @Failure      401  {object}  errorBody
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /token [post]
func (h *TokenHandler) Issue(c echo.Context) error {
	sess := ctxSession(c)
	if sess == nil {
		return domain.ErrUnauthenticated
	}

	tok, err := h.invites.Issue(c.Request().Context(), sess.Username)
	if err != nil {
		return err
	}
	metrics.TokensTotal.WithLabelValues("issued").Inc()
	return c.JSON(http.StatusOK, tok)
}

// List returns every invite token, or only those of one issuer when the
// issued_by query parameter is set.
//
// @Summary      List invite tokens
// @Tags         token
// @Produce      json
// @Param        issued_by  query     string  false  "Filter by issuing admin"
// @Success      200        {array}   domain.InviteToken
// @Failure      401        {object}  errorBody
// @Failure      403        {object}  errorBody
// @Failure      404        {object}  errorBody
// @Router       /token [get]
func (h *TokenHandler) List(c echo.Context) error {
	tokens, err := h.invites.List(c.Request().Context(), c.QueryParam("issued_by"))
	if err != nil {
		return err
	}
	if tokens == nil {
		tokens = []*domain.InviteToken{}
	}
	return c.JSON(http.StatusOK, tokens)
}

// Revoke deletes an unconsumed invite token.
//
// @Summary      Revoke an invite token
// @Tags         token
// @Param        value  path      string  true  "Token value"
// @Success      200
// @Failure      401    {object}  errorBody
// @Failure      403    {object}  errorBody
// @Failure      404    {object}  errorBody
// @Failure      409    {object}  errorBody
// @Router       /token/{value} [delete]
func (h *TokenHandler) Revoke(c echo.Context) error {
	if err := h.invites.Revoke(c.Request().Context(), c.Param("value")); err != nil {
		return err
	}
	metrics.TokensTotal.WithLabelValues("revoked").Inc()
	return c.NoContent(http.StatusOK)
}
