package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/genluna-medchain/internal/auditor/service"
	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/metrics"
)

// Sweeper periodically re-verifies synced records whose last check is older than the
// stale window, and reports the size of the unsynced backlog.
type Sweeper struct {
	states       journal.StateRepository
	auditService service.AuditService
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
	staleAfter   time.Duration
	now          func() time.Time
}

// Result summarizes one sweep
type Result struct {
	Checked  int
	Verified int
	Problems int
	Failed   int
	Unsynced int
}

func NewSweeper(cfg *config.AuditConfig, states journal.StateRepository, auditService service.AuditService, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		states:       states,
		auditService: auditService,
		logger:       logger,
		interval:     cfg.SweepInterval,
		batchSize:    cfg.BatchSize,
		staleAfter:   cfg.StaleAfter,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps on every tick until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting integrity sweeper",
		"sweep_interval", s.interval.String(),
		"batch_size", s.batchSize,
		"stale_after", s.staleAfter.String(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Integrity sweeper stopping due to context cancellation")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Error during integrity sweep", "error", err)
			}
		}
	}
}

// SweepOnce audits one batch of stale synced records concurrently through the audit service
func (s *Sweeper) SweepOnce(ctx context.Context) (*Result, error) {
	result := &Result{}

	unsynced, err := s.states.CountUnsynced(ctx)
	if err != nil {
		s.logger.Warn("Failed to read unsynced backlog", "error", err)
	} else {
		result.Unsynced = unsynced
		metrics.SetUnsyncedRecords(unsynced)
		if unsynced > 0 {
			s.logger.Warn("Records saved but not ledgered", "count", unsynced)
		}
	}

	states, err := s.states.ListStaleSynced(ctx, s.now().Add(-s.staleAfter), s.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list stale synced records: %w", err)
	}
	if len(states) == 0 {
		s.logger.Debug("No stale synced records found")
		return result, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, st := range states {
		wg.Add(1)
		go func(st *journal.State) {
			defer wg.Done()
			report, err := s.auditService.Audit(ctx, &service.AuditRequest{
				RecordKind: st.RecordKind,
				RecordID:   st.RecordID,
				Trigger:    shared.AuditTriggerSweep,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, service.ErrAuditInProgress{}), errors.Is(err, service.ErrRecordGone):
			case err != nil:
				result.Failed++
				s.logger.Error("Failed to audit record during sweep",
					"record_kind", string(st.RecordKind),
					"record_id", st.RecordID,
					"error", err,
				)
			default:
				result.Checked++
				if report.Verified() {
					result.Verified++
				} else {
					result.Problems++
				}
			}
		}(st)
	}
	wg.Wait()

	s.logger.Info("Integrity sweep finished",
		"checked", result.Checked,
		"verified", result.Verified,
		"problems", result.Problems,
		"failed", result.Failed,
		"unsynced", result.Unsynced,
	)
	return result, nil
}
