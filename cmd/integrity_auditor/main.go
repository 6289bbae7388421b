package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/genluna-medchain/internal/auditor/consumer"
	"github.com/genluna-medchain/internal/auditor/service"
	"github.com/genluna-medchain/internal/auditor/sweeper"
	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/data/mongo"
	"github.com/genluna-medchain/internal/data/postgres"
	"github.com/genluna-medchain/internal/ledger_sync/components"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/messaging/consumers"
	"github.com/genluna-medchain/internal/platform/messaging/producers"
	"github.com/genluna-medchain/internal/platform/persistence"
	"github.com/genluna-medchain/internal/platform/sor"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("integrity_auditor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Integrity Auditor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Audits compare against the gateway's ledger, never a private one
	if err := components.RequireSharedLedger(cfg); err != nil {
		log.Error("Invalid ledger configuration", "error", err)
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

	stateRepo := postgres.NewSyncStateRepository(log, postgresDB)
	reportRepo := mongo.NewIntegrityReportRepository(log, mongoDB.Database())
	if err := reportRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure integrity report indexes", "error", err)
		os.Exit(1)
	}

	// The auditor only reads the ledger, so no attempts are journaled
	ledgerStack, err := components.CreateLedgerStack(appCtx, cfg, nil, log)
	if err != nil {
		log.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	sorClient := sor.New(cfg.SystemOfRecord.BaseURL, log.With("component", "sor_client"),
		sor.WithAPIToken(cfg.SystemOfRecord.APIToken),
		sor.WithTimeout(cfg.SystemOfRecord.Timeout),
	)
	verifier := components.CreateVerificationService(sorClient, ledgerStack, log)

	auditService, err := service.NewWorkerPoolAuditService(
		service.NewAuditService(verifier, reportRepo, stateRepo, log.With("component", "audit_service")),
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize audit worker pool", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// dlqProducer is nil when no DLQ topic is configured; the handler tolerates that
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	syncEventHandler := consumer.NewSyncEventHandler(log, auditService, dlqProducer)
	auditSweeper := sweeper.NewSweeper(&cfg.Audit, stateRepo, auditService, log)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.SyncEventsTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, syncEventHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		auditSweeper.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	log.Info("Shutting down worker pool", "running_workers", auditService.Running())
	auditService.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	ledgerStack.Close()
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Integrity Auditor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Integrity Auditor shutdown completed with errors")
	} else {
		log.Info("Integrity Auditor shutdown completed successfully")
	}
}
