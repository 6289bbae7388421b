package service

import (
	"context"

	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/record"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
)

const (
	defaultAttemptLimit = 20
	maxAttemptLimit     = 200
)

// SyncServiceImpl implements the SyncService interface
type SyncServiceImpl struct {
	coordinator ledgersync.DualWriteCoordinator
	attempts    journal.AttemptRepository
}

// NewSyncService creates a new sync service
func NewSyncService(coordinator ledgersync.DualWriteCoordinator, attempts journal.AttemptRepository) SyncService {
	return &SyncServiceImpl{
		coordinator: coordinator,
		attempts:    attempts,
	}
}

func (s *SyncServiceImpl) CreateRecord(ctx context.Context, rec record.Record) (*ledgersync.SyncResult, error) {
	return s.coordinator.CreateWithLedgerSync(ctx, rec)
}

func (s *SyncServiceImpl) ResyncRecord(ctx context.Context, kind record.Kind, id int64) (*ledgersync.SyncResult, error) {
	return s.coordinator.Resync(ctx, kind, id)
}

// ListAttempts clamps limit to [1, 200], defaulting to 20
func (s *SyncServiceImpl) ListAttempts(ctx context.Context, kind record.Kind, id int64, limit int) ([]*journal.AttemptRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultAttemptLimit
	case limit > maxAttemptLimit:
		limit = maxAttemptLimit
	}
	return s.attempts.ListByRecord(ctx, kind, id, limit)
}
