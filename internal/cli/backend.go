package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/genluna-medchain/internal/api_gateway/service"
	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/data/postgres"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/ledger_sync/components"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/messaging/producers"
	"github.com/genluna-medchain/internal/platform/persistence"
	"github.com/genluna-medchain/internal/platform/sor"
)

// Backend is the set of services a command runs against
type Backend struct {
	Sync   service.SyncService
	Ledger service.LedgerService

	closers []func()
}

// Close releases connections in reverse order of acquisition
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// Migrator applies pending journal migrations and returns the schema version
type Migrator func(opts *RootOptions, stderr io.Writer) (uint, error)

func migrateJournal(opts *RootOptions, stderr io.Writer) (uint, error) {
	cfg, log, err := loadConfig(opts, stderr)
	if err != nil {
		return 0, err
	}
	return persistence.MigrateJournal(log, &cfg.Postgres)
}

func loadConfig(opts *RootOptions, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(opts.ConfigName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	return cfg, logger.NewLoggerWithWriter(cfg, stderr).With("component", "ledgerctl"), nil
}

// Connector opens a Backend; logs go to stderr so stdout stays parseable
type Connector func(ctx context.Context, opts *RootOptions, stderr io.Writer) (*Backend, error)

// connectBackend wires the same stack as the gateway, against a shared ledger node only.
// Kafka is optional here: an operator resync still journals its state when no broker is
// reachable.
func connectBackend(ctx context.Context, opts *RootOptions, stderr io.Writer) (*Backend, error) {
	cfg, log, err := loadConfig(opts, stderr)
	if err != nil {
		return nil, err
	}
	if err := components.RequireSharedLedger(cfg); err != nil {
		return nil, err
	}

	b := &Backend{}
	fail := func(err error) (*Backend, error) {
		b.Close()
		return nil, err
	}

	db, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return fail(err)
	}
	b.closers = append(b.closers, db.Close)

	attemptRepo := postgres.NewAttemptRepository(log, db)
	stateRepo := postgres.NewSyncStateRepository(log, db)

	var publisher producers.SyncEventPublisher
	var dlq producers.DeadLetterPublisher
	if eventProducer, err := producers.NewSyncEventProducer(ctx, log, &cfg.Kafka); err != nil {
		log.Warn("Kafka unavailable, sync outcomes will only be journaled", "error", err)
	} else {
		publisher = eventProducer
		b.closers = append(b.closers, func() { closeQuietly(log, "sync event producer", eventProducer) })

		dlqProducer, err := producers.NewDLQProducer(ctx, log, &cfg.Kafka)
		if err != nil {
			log.Warn("Dead letter topic unavailable", "error", err)
		} else {
			dlq = dlqProducer
			b.closers = append(b.closers, func() { closeQuietly(log, "dlq producer", dlqProducer) })
		}
	}

	stack, err := components.CreateLedgerStack(ctx, cfg, components.NewAttemptRecorder(attemptRepo, log), log)
	if err != nil {
		return fail(err)
	}
	b.closers = append(b.closers, stack.Close)

	sorClient := sor.New(cfg.SystemOfRecord.BaseURL, log,
		sor.WithAPIToken(cfg.SystemOfRecord.APIToken),
		sor.WithTimeout(cfg.SystemOfRecord.Timeout),
	)
	outcomes := components.NewOutcomeRecorder(stateRepo, publisher, dlq, log)
	coordinator := components.CreateDualWriteCoordinator(sorClient, stack, outcomes, log)
	verifier := components.CreateVerificationService(sorClient, stack, log)

	b.Sync = service.NewSyncService(coordinator, attemptRepo)
	b.Ledger = service.NewLedgerService(components.NewHashCodec(), stack.Client, stack.Signer, verifier, nil, shared.AuditTriggerCLI, log)
	return b, nil
}

func closeQuietly(log *slog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("Failed to close "+what, "error", err)
	}
}
