package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/platform/persistence"
)

// AttemptRepository implements the journal.AttemptRepository interface for PostgreSQL
type AttemptRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAttemptRepository creates a new PostgreSQL attempt journal
func NewAttemptRepository(logger *slog.Logger, db *persistence.PostgresDB) journal.AttemptRepository {
	return &AttemptRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create appends one transaction attempt to the journal
func (r *AttemptRepository) Create(ctx context.Context, attempt *journal.AttemptRecord) error {
	query := `
		INSERT INTO ledger_sync_attempts (record_kind, record_id, operation, attempt, transport, fallback_used,
			error_class, error_reason, error_message, retryable, tx_hash, duration_ms, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		attempt.RecordKind,
		attempt.RecordID,
		attempt.Operation,
		attempt.Attempt,
		attempt.Transport,
		attempt.FallbackUsed,
		attempt.ErrorClass,
		attempt.ErrorReason,
		attempt.ErrorMessage,
		attempt.Retryable,
		attempt.TxHash,
		attempt.DurationMs,
		attempt.CorrelationID,
		attempt.CreatedAt,
	).Scan(&attempt.ID)

	if err != nil {
		r.logger.Error("Failed to create sync attempt",
			"record_kind", string(attempt.RecordKind),
			"record_id", attempt.RecordID,
			"attempt", attempt.Attempt,
			"error", err,
		)
		return fmt.Errorf("failed to create sync attempt: %w", err)
	}

	return nil
}

// ListByRecord returns the most recent attempts for a record, newest first
func (r *AttemptRepository) ListByRecord(ctx context.Context, kind record.Kind, recordID int64, limit int) ([]*journal.AttemptRecord, error) {
	query := `
		SELECT id, record_kind, record_id, operation, attempt, transport, fallback_used,
			error_class, error_reason, error_message, retryable, tx_hash, duration_ms, correlation_id, created_at
		FROM ledger_sync_attempts
		WHERE record_kind = $1 AND record_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, kind, recordID, limit)
	if err != nil {
		r.logger.Error("Failed to list sync attempts",
			"record_kind", string(kind),
			"record_id", recordID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to list sync attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*journal.AttemptRecord
	for rows.Next() {
		var a journal.AttemptRecord
		err := rows.Scan(
			&a.ID,
			&a.RecordKind,
			&a.RecordID,
			&a.Operation,
			&a.Attempt,
			&a.Transport,
			&a.FallbackUsed,
			&a.ErrorClass,
			&a.ErrorReason,
			&a.ErrorMessage,
			&a.Retryable,
			&a.TxHash,
			&a.DurationMs,
			&a.CorrelationID,
			&a.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan sync attempt", "error", err)
			return nil, fmt.Errorf("failed to scan sync attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over sync attempts", "error", err)
		return nil, fmt.Errorf("error iterating over sync attempts: %w", err)
	}

	return attempts, nil
}
