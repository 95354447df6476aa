package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/tinygate/tinygate/internal/api/docs"
	"github.com/tinygate/tinygate/internal/api/handler"
	"github.com/tinygate/tinygate/internal/api/middleware"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/internal/session"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Accounts ports.AccountService
	Invites  ports.InviteService
	Sessions *session.Controller
	Health   map[string]handler.Pinger
	Info     handler.Info

	// URLPrefix is prepended to every application route.
	URLPrefix   string
	BehindProxy bool
	// Registerer receives the HTTP request metrics. Defaults to the
	// global Prometheus registry.
	Registerer prometheus.Registerer
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
//
// @title        tinygate API
// @version      1.0
// @description  Invite-gated registration, login and session management.
// @BasePath     /
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	if d.BehindProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	reg := d.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "tinygate",
		Registerer: reg,
	}))

	// --- Operational endpoints (no auth required) ---
	health := handler.NewHealthHandler(d.Health)
	e.GET("/health", health.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", health.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Application routes ---
	g := e.Group(strings.TrimSuffix(d.URLPrefix, "/"))
	g.Use(middleware.Session(d.Sessions, d.Log))

	info := handler.NewInfoHandler(d.Info)
	g.GET("/info", info.Get)

	auth := handler.NewAuthHandler(d.Accounts, d.Sessions, d.Log)
	g.POST("/auth/register", auth.Register)
	g.POST("/auth/login", auth.Login)
	g.GET("/auth/logout", auth.Logout)
	g.GET("/auth/delete", auth.Delete, middleware.RequireAuth())

	tokens := handler.NewTokenHandler(d.Invites)
	admin := g.Group("/token", middleware.RequireAdmin())
	admin.POST("", tokens.Issue)
	admin.GET("", tokens.List)
	admin.DELETE("/:value", tokens.Revoke)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("peer", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
