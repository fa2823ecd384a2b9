// Package app is the central wiring point for dependency injection.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/glazeworks/actiongate/auth"
	"github.com/glazeworks/actiongate/config"
	"github.com/glazeworks/actiongate/handlers"
	"github.com/glazeworks/actiongate/middleware"
	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"github.com/glazeworks/actiongate/repositories/memory"
	"github.com/glazeworks/actiongate/repositories/postgres"
	"github.com/glazeworks/actiongate/services/audit"
	"github.com/glazeworks/actiongate/services/evaluate"
	"github.com/glazeworks/actiongate/services/policy"
	"github.com/glazeworks/actiongate/services/proposal"
	"go.uber.org/zap"
)

// Dependencies holds all gate dependencies.
type Dependencies struct {
	// Infrastructure
	Config      *config.Config
	DB          *postgres.DB
	AuditDB     *postgres.DB         // nil unless a separate audit database is configured
	AsyncEvents *audit.AsyncRecorder // nil unless a separate audit database is configured
	Logger      *zap.Logger

	// Stores
	Registry   models.Registry
	Quota      repositories.QuotaStore
	Events     repositories.EventStore
	Exemptions repositories.ExemptionRepository
	Proposals  repositories.ProposalRepository

	// Services
	ProposalService *proposal.Service
	Evaluator       *evaluate.Service
	PolicyService   *policy.Service
	Recorder        *audit.Recorder

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	GateHandler    *handlers.GateHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all gate dependencies. When the
// database is unavailable in development, the gate falls back to in-memory
// stores; production requires Postgres.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: models.DefaultRegistry(),
	}

	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Warn("database unavailable, using in-memory stores", zap.Error(err))
		deps.Quota = memory.NewQuotaStore()
		deps.Events = memory.NewEventStore()
		deps.Exemptions = memory.NewExemptionRepository()
	} else {
		deps.DB = db
		if err := db.InitSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		deps.Quota = postgres.NewQuotaStore(db, logger)
		deps.Exemptions = postgres.NewExemptionRepository(db, logger)

		eventDB := db
		if cfg.AuditDatabase != nil {
			eventDB, err = postgres.NewDB(*cfg.AuditDatabase, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to audit database: %w", err)
			}
			if err := eventDB.InitAuditSchema(context.Background()); err != nil {
				return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
			}
			deps.AuditDB = eventDB
		}
		deps.Events = postgres.NewEventStore(eventDB, logger)

		// A remote audit database puts append latency on every gated call;
		// buffer appends through the async recorder instead. Reads pass
		// through to the store.
		if cfg.AuditDatabase != nil {
			async := audit.NewAsyncRecorder(deps.Events, logger, audit.DefaultConfig())
			if err := async.Start(); err != nil {
				return nil, fmt.Errorf("failed to start async audit recorder: %w", err)
			}
			deps.AsyncEvents = async
			deps.Events = async
		}
	}

	// Proposals live in memory in every deployment shape for now: they are
	// anchored to audit events by ID and hash, and the event store is the
	// durable record.
	deps.Proposals = memory.NewProposalRepository()

	deps.ProposalService = proposal.NewService(deps.Registry, deps.Proposals, logger)
	deps.Evaluator = evaluate.NewService(deps.Registry, deps.Quota, logger)
	deps.PolicyService = policy.NewService(deps.Exemptions, cfg.Policy.SnapshotTTL, logger)
	deps.Recorder = audit.NewRecorder(deps.Events, logger)

	if cfg.Policy.KillSwitchAtBoot {
		deps.PolicyService.SetKillSwitch(true, "boot", "KILL_SWITCH_AT_BOOT")
	}

	verifier := auth.NewTokenVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer)
	deps.AuthMiddleware = middleware.NewAuthMiddleware(verifier, logger)
	deps.GateHandler = handlers.NewGateHandler(deps.Registry, deps.ProposalService, deps.Evaluator, deps.PolicyService, deps.Recorder, logger)
	var pinger handlers.Pinger
	if deps.DB != nil {
		pinger = deps.DB
	}
	deps.HealthHandler = handlers.NewHealthHandler(pinger)

	return deps, nil
}

// Close releases held resources. The async recorder is drained before its
// database closes so buffered audit events are not lost on shutdown.
func (d *Dependencies) Close() {
	if d.AsyncEvents != nil {
		if err := d.AsyncEvents.Stop(5 * time.Second); err != nil {
			d.Logger.Error("failed to drain async audit recorder", zap.Error(err))
		}
	}
	if d.AuditDB != nil {
		_ = d.AuditDB.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
