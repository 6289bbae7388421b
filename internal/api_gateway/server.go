package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/api_gateway/handler"
	"github.com/genluna-medchain/internal/api_gateway/service"
	"github.com/genluna-medchain/internal/config"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
	shutdown   context.CancelFunc
}

// NewServer creates and configures a new HTTP server with the given services.
// checks are probed by GET /health.
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	syncService service.SyncService,
	ledgerService service.LedgerService,
	checks map[string]HealthChecker,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Background work owned by the router (rate-limit sweeper) stops with the server
	ctx, cancel := context.WithCancel(context.Background())

	httpRouter := gin.New()
	recordHandler := handler.NewRecordHandler(log, syncService)
	ledgerHandler := handler.NewLedgerHandler(log, ledgerService)

	setupRouter(ctx, log, cfg, httpRouter, recordHandler, ledgerHandler, checks)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
		shutdown:   cancel,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting at most the server's write timeout
// for in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	defer s.shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
