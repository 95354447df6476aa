package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/api"
	"github.com/tinygate/tinygate/internal/api/handler"
	"github.com/tinygate/tinygate/internal/cli"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/internal/core/service"
	"github.com/tinygate/tinygate/internal/credential"
	"github.com/tinygate/tinygate/internal/infrastructure/config"
	redisdb "github.com/tinygate/tinygate/internal/infrastructure/db/redis"
	"github.com/tinygate/tinygate/internal/infrastructure/queue"
	"github.com/tinygate/tinygate/internal/session"
	"github.com/tinygate/tinygate/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	createUser := flag.Bool("create-user", false, "interactively create an account and exit")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *printConfig {
		if err := writeConfig(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "tinygate",
	})

	if err := run(ctx, cfg, log, *createUser); err != nil {
		if errors.Is(err, cli.ErrPasswordMismatch) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("tinygate stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, createUser bool) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var secondFactor credential.SecondFactor
	if cfg.Credentials.SecondFactorEnabled {
		secondFactor = credential.NewTOTP(cfg.Server.Name)
	}
	verifier, err := credential.NewVerifier(credential.NewHasher(credential.DefaultParams), secondFactor)
	if err != nil {
		return err
	}

	// Workers outlive the signal context so Close can drain them.
	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, service.NewAuditWriter(st.audit, log), log)
	dispatcher.Start(context.WithoutCancel(ctx))
	defer dispatcher.Close()
	audit := service.NewAuditService(dispatcher, log)

	invites := service.NewInviteService(st.invites, audit, service.InviteConfig{
		Enabled:   cfg.Invites.RegistrationEnabled,
		TokenSize: cfg.Invites.TokenSize,
		TokenTTL:  cfg.TokenTTL(),
	}, log)
	accountCfg := service.AccountConfig{
		Policy: credential.Policy{
			UsernameMin: cfg.Credentials.UsernameMin,
			UsernameMax: cfg.Credentials.UsernameMax,
			PasswordMin: cfg.Credentials.PasswordMin,
			PasswordMax: cfg.Credentials.PasswordMax,
		},
		CaseFold:            cfg.Credentials.UsernameCaseFold,
		RegistrationEnabled: cfg.Invites.RegistrationEnabled,
	}

	if createUser {
		// Account creation never touches sessions, so no signing key is needed.
		accounts := service.NewAccountService(st.accounts, invites, verifier, nil, audit, accountCfg, log)
		term := cli.NewTerminal(os.Stdin, os.Stdout, int(os.Stdin.Fd()))
		return cli.CreateUser(ctx, term, accounts, os.Stdout)
	}

	var revocations ports.RevocationStore
	if cfg.Redis.Addr != "" {
		client, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		revocations = redisdb.NewRevocationStore(client)
		st.health["redis"] = redisdb.NewPinger(client)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, session revocations are kept in process memory")
	}

	key, err := cfg.SessionSecret()
	if err != nil {
		return err
	}
	cookiePath := cfg.Server.URLPrefix
	if cookiePath == "" {
		cookiePath = "/"
	}
	sessions, err := session.NewController(session.Config{
		Secret:        key,
		LoginDeadline: cfg.LoginDeadline(),
		VisitDeadline: cfg.VisitDeadline(),
		CookieMaxAge:  cfg.CookieMaxAge(),
		CookiePath:    cookiePath,
		Secure:        !cfg.IsDevelopment(),
	}, revocations)
	if err != nil {
		return err
	}

	accounts := service.NewAccountService(st.accounts, invites, verifier, sessions, audit, accountCfg, log)

	e := api.NewRouter(api.Deps{
		Accounts: accounts,
		Invites:  invites,
		Sessions: sessions,
		Health:   st.health,
		Info: handler.Info{
			Name:        cfg.Server.Name,
			Version:     version,
			Description: cfg.Server.Description,
		},
		URLPrefix:   cfg.Server.URLPrefix,
		BehindProxy: cfg.Server.BehindProxy,
		Log:         log,
	})

	return serve(ctx, e, cfg.Addr(), log)
}

func serve(ctx context.Context, h http.Handler, addr string, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeConfig prints the effective configuration with secrets masked.
func writeConfig(cfg *config.Config) error {
	masked := *cfg
	if masked.Session.Secret != "" {
		masked.Session.Secret = "********"
	}
	if masked.Redis.Password != "" {
		masked.Redis.Password = "********"
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(masked)
}
