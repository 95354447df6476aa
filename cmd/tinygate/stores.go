package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/api/handler"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/internal/infrastructure/config"
	mongodb "github.com/tinygate/tinygate/internal/infrastructure/db/mongo"
	"github.com/tinygate/tinygate/internal/infrastructure/db/postgres"
)

// stores bundles the durable repositories of the selected backend.
type stores struct {
	accounts ports.AccountRepository
	invites  ports.InviteTokenRepository
	audit    ports.AuditRepository
	health   map[string]handler.Pinger
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, log)
	case "mongo":
		return openMongo(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		return nil, err
	}
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongo store ready")

	return &stores{
		accounts: mongodb.NewAccountRepository(db),
		invites:  mongodb.NewInviteRepository(db),
		audit:    mongodb.NewAuditRepository(db),
		health:   map[string]handler.Pinger{"mongodb": mongodb.NewPinger(db)},
		close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("postgres store ready")

	return &stores{
		accounts: postgres.NewAccountRepository(db),
		invites:  postgres.NewInviteRepository(db),
		audit:    postgres.NewAuditRepository(db),
		health:   map[string]handler.Pinger{"postgres": postgres.NewPinger(db)},
		close: func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("postgres close")
			}
		},
	}, nil
}
