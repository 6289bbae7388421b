package components

import (
	"context"
	"log/slog"

	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
)

type AttemptRecorderImpl struct {
	attemptRepo journal.AttemptRepository
	logger      *slog.Logger
}

func NewAttemptRecorder(attemptRepo journal.AttemptRepository, logger *slog.Logger) service.AttemptRecorder {
	return &AttemptRecorderImpl{
		attemptRepo: attemptRepo,
		logger:      logger,
	}
}

// RecordAttempt journals one attempt. Journal failures are logged and never fail the sync.
func (r *AttemptRecorderImpl) RecordAttempt(ctx context.Context, call ledger.Call, attempt ledger.Attempt) {
	rec := journal.NewAttemptRecord(call, attempt, logger.CorrelationID(ctx))
	if err := r.attemptRepo.Create(ctx, rec); err != nil {
		logger.FromContext(ctx, r.logger).Error("Failed to journal ledger attempt",
			"record_kind", string(call.Kind),
			"record_id", call.ID,
			"attempt", attempt.Number,
			"error", err,
		)
	}
}
