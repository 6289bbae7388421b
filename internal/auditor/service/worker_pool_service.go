package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/genluna-medchain/internal/domain/integrity"
)

// ErrAuditInProgress is returned when the same record is already queued or being audited
type ErrAuditInProgress struct {
	Key string
}

func (e ErrAuditInProgress) Error() string {
	return fmt.Sprintf("audit already in progress for %s", e.Key)
}

// Is implements the errors.Is interface for ErrAuditInProgress
func (e ErrAuditInProgress) Is(target error) bool {
	t, ok := target.(ErrAuditInProgress)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

// WorkerPoolAuditService bounds the number of concurrent ledger reads and
// collapses concurrent audits of the same record
type WorkerPoolAuditService struct {
	baseService AuditService
	pool        *ants.Pool
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolAuditService(baseService AuditService, config WorkerPoolConfig, logger *slog.Logger) (*WorkerPoolAuditService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit worker pool: %w", err)
	}

	return &WorkerPoolAuditService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		inFlight:    make(map[string]struct{}),
	}, nil
}

type auditResult struct {
	report *integrity.Report
	err    error
}

// Audit runs the request on a pool worker and waits for its report
func (s *WorkerPoolAuditService) Audit(ctx context.Context, request *AuditRequest) (*integrity.Report, error) {
	key := request.Key()

	s.mu.Lock()
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()
		return nil, ErrAuditInProgress{Key: key}
	}
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}

	resultChan := make(chan auditResult, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		report, err := s.baseService.Audit(ctx, &requestCopy)
		release()
		resultChan <- auditResult{report: report, err: err}
	})
	if err != nil {
		release()
		s.logger.Error("Failed to submit audit to worker pool", "record", key, "error", err)
		return nil, fmt.Errorf("failed to submit audit for %s: %w", key, err)
	}

	select {
	case res := <-resultChan:
		return res.report, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown releases the pool; audits already running finish on their own
func (s *WorkerPoolAuditService) Shutdown() {
	s.logger.Info("Shutting down audit worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolAuditService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolAuditService) Capacity() int {
	return s.pool.Cap()
}
