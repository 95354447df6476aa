package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/api/metrics"
	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/pkg/logger"
)

// SessionIssuer is the part of the session controller the auth handlers need.
type SessionIssuer interface {
	Now() time.Time
	Establish(username string, admin bool, now time.Time) (*domain.Session, string, error)
	Cookie(token string) *http.Cookie
	ExpiredCookie() *http.Cookie
}

type AuthHandler struct {
	accounts ports.AccountService
	sessions SessionIssuer
	log      zerolog.Logger
}

func NewAuthHandler(accounts ports.AccountService, sessions SessionIssuer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, log: log}
}

// Register creates an account from an invite token and starts a session.
//
// @Summary      Register with an invite token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      200   {object}  registerResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Failure      500   {object}  errorBody
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	defer func() { req.Password.Wipe() }()
	if err := bindAndValidate(c, &req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("bad_input").Inc()
		return err
	}

	res, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.User,
		Password: req.Password,
		Token:    req.Token,
		Peer:     c.RealIP(),
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return err
	}
	metrics.RegistrationsTotal.WithLabelValues("success").Inc()

	if err := h.startSession(c, res.Account); err != nil {
		return err
	}

	if res.Enrollment == nil {
		return c.NoContent(http.StatusOK)
	}
	var resp registerResponse
	if req.SecondFactorAsQR {
		qr, err := res.Enrollment.QRCodeBase64()
		if err != nil {
			return err
		}
		resp.SecondFactorQR = qr
	} else {
		resp.SecondFactorURL = res.Enrollment.URL()
	}
	return c.JSON(http.StatusOK, resp)
}

// Login verifies credentials and starts a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      500   {object}  errorBody
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	defer func() { req.Password.Wipe() }()
	if err := bindAndValidate(c, &req); err != nil {
		metrics.LoginsTotal.WithLabelValues("bad_input").Inc()
		return err
	}

	account, err := h.accounts.Login(c.Request().Context(), ports.LoginInput{
		Username: req.User,
		Password: req.Password,
		Code:     req.Code,
		Peer:     c.RealIP(),
	})
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	if err := h.startSession(c, account); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// Logout invalidates the current session and clears the identity cookie.
//
// @Summary      Logout
// @Tags         auth
// @Success      200
// @Failure      500  {object}  errorBody
// @Router       /auth/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.ExpiredCookie())
	if err := h.accounts.Logout(c.Request().Context(), ctxSession(c), c.RealIP()); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// Delete removes the account owning the current session.
//
// @Summary      Delete own account
// @Tags         auth
// @Success      200
// @Failure      401  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Failure      500  {object}  errorBody
// @Router       /auth/delete [get]
func (h *AuthHandler) Delete(c echo.Context) error {
	sess := ctxSession(c)
	if sess == nil {
		return domain.ErrUnauthenticated
	}
	if err := h.accounts.DeleteAccount(c.Request().Context(), sess, c.RealIP()); err != nil {
		return err
	}
	c.SetCookie(h.sessions.ExpiredCookie())
	return c.NoContent(http.StatusOK)
}

func (h *AuthHandler) startSession(c echo.Context, account *domain.Account) error {
	_, token, err := h.sessions.Establish(account.Username, account.IsAdmin, h.sessions.Now())
	if err != nil {
		return err
	}
	c.SetCookie(h.sessions.Cookie(token))
	h.log.Debug().
		Str("peer", c.RealIP()).
		Str("user", logger.SafeUser(account.Username)).
		Msg("session established")
	return nil
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrBadInput):
		return "bad_input"
	default:
		return "error"
	}
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRegistrationToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrBadInput):
		return "bad_input"
	case errors.Is(err, domain.ErrUserExists):
		return "conflict"
	case errors.Is(err, domain.ErrRegistrationDisabled):
		return "disabled"
	default:
		return "error"
	}
}
