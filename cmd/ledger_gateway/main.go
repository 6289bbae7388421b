package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/genluna-medchain/internal/api_gateway"
	"github.com/genluna-medchain/internal/api_gateway/service"
	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/data/mongo"
	"github.com/genluna-medchain/internal/data/postgres"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/ledger_sync/components"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/messaging/producers"
	"github.com/genluna-medchain/internal/platform/persistence"
	"github.com/genluna-medchain/internal/platform/sor"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// The gateway owns the journal schema; the auditor and ledgerctl only check it
	if _, err := persistence.MigrateJournal(log, &cfg.Postgres); err != nil {
		log.Error("Failed to run PostgreSQL migrations", "error", err)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Every sync outcome goes to the events topic; saved-but-not-ledgered records also to the DLQ
	eventProducer, err := producers.NewSyncEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize sync event Kafka producer", "error", err)
		os.Exit(1)
	}
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	attemptRepo := postgres.NewAttemptRepository(log, postgresDB)
	stateRepo := postgres.NewSyncStateRepository(log, postgresDB)
	reportRepo := mongo.NewIntegrityReportRepository(log, mongoDB.Database())
	if err := reportRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure integrity report indexes", "error", err)
		os.Exit(1)
	}

	ledgerStack, err := components.CreateLedgerStack(appCtx, cfg, components.NewAttemptRecorder(attemptRepo, log), log)
	if err != nil {
		log.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	sorClient := sor.New(cfg.SystemOfRecord.BaseURL, log.With("component", "sor_client"),
		sor.WithAPIToken(cfg.SystemOfRecord.APIToken),
		sor.WithTimeout(cfg.SystemOfRecord.Timeout),
	)
	outcomes := components.NewOutcomeRecorder(stateRepo, eventProducer, dlqProducer, log.With("component", "outcome_recorder"))
	coordinator := components.CreateDualWriteCoordinator(sorClient, ledgerStack, outcomes, log)
	verifier := components.CreateVerificationService(sorClient, ledgerStack, log)

	// Initialize services
	syncService := service.NewSyncService(coordinator, attemptRepo)
	ledgerService := service.NewLedgerService(
		components.NewHashCodec(),
		ledgerStack.Client,
		ledgerStack.Signer,
		verifier,
		reportRepo,
		shared.AuditTriggerAPI,
		log,
	)

	server := api_gateway.NewServer(log, cfg, syncService, ledgerService, map[string]api_gateway.HealthChecker{
		"postgres": postgresDB,
		"mongodb":  mongoDB,
	})
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	ledgerStack.Close()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing sync event Kafka producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
