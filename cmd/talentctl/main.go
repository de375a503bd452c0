// Command talentctl is the operator CLI for talentgate: batch plan sweeps,
// usage lookups and manual plan grants.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/DukeRupert/talentgate/internal"
	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/DukeRupert/talentgate/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

func main() {
	if err := newRootCmd(openBackend).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openBackend connects to the database and builds the services the
// commands need. Logs go to stderr so command output stays clean.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	store := repository.NewStore(db)
	notifications := service.NewNotificationService(store, logger)

	// Grants never reach the gateway; the mock keeps the CLI offline.
	payments := service.NewPaymentService(store, billing.NewMockGateway(cfg.MockGatewaySecret),
		service.NewSessionValues(store, logger), notifications, domain.PlanCatalog{
			Currency: cfg.GatewayCurrency,
			Prices: map[domain.Plan]int64{
				domain.PlanPro:     cfg.PricePro,
				domain.PlanProPlus: cfg.PriceProPlus,
			},
			Duration: cfg.PlanDuration,
		}, logger)

	return &backend{
		users: service.NewUserService(store, logger, service.UserServiceConfig{
			SessionDuration: cfg.SessionDuration,
			AdminEmails:     cfg.AdminEmails,
		}),
		expiry:       service.NewExpiryService(store, notifications, logger),
		entitlements: service.NewEntitlementService(store, logger),
		payments:     payments,
		migrate: func(ctx context.Context) (int64, error) {
			if err := internal.RunMigrations(ctx, db); err != nil {
				return 0, err
			}
			return internal.MigrationVersion(ctx, db)
		},
		closer: db,
	}, nil
}
