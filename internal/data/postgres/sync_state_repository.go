package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/platform/persistence"
)

const stateColumns = `record_kind, record_id, status, data_hash, tx_hash, signer_address, attempts, last_error, updated_at, last_verified_at`

// SyncStateRepository implements the journal.StateRepository interface for PostgreSQL
type SyncStateRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSyncStateRepository creates a new PostgreSQL sync state repository
func NewSyncStateRepository(logger *slog.Logger, db *persistence.PostgresDB) journal.StateRepository {
	return &SyncStateRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Upsert writes the latest state of a record. A failed resync keeps the transaction
// hash and signer of the last successful submission.
func (r *SyncStateRepository) Upsert(ctx context.Context, state *journal.State) error {
	query := `
		INSERT INTO ledger_sync_state (record_kind, record_id, status, data_hash, tx_hash, signer_address, attempts, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (record_kind, record_id) DO UPDATE SET
			status = EXCLUDED.status,
			data_hash = COALESCE(NULLIF(EXCLUDED.data_hash, ''), ledger_sync_state.data_hash),
			tx_hash = COALESCE(NULLIF(EXCLUDED.tx_hash, ''), ledger_sync_state.tx_hash),
			signer_address = COALESCE(NULLIF(EXCLUDED.signer_address, ''), ledger_sync_state.signer_address),
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.querier.Exec(ctx, query,
		state.RecordKind,
		state.RecordID,
		state.Status,
		state.DataHash,
		state.TxHash,
		state.SignerAddress,
		state.Attempts,
		state.LastError,
		state.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert sync state",
			"record_kind", string(state.RecordKind),
			"record_id", state.RecordID,
			"status", string(state.Status),
			"error", err,
		)
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}

	return nil
}

// Get returns the journaled state of a record.
// Returns ErrStateNotFound if the record was never synced.
func (r *SyncStateRepository) Get(ctx context.Context, kind record.Kind, recordID int64) (*journal.State, error) {
	query := `SELECT ` + stateColumns + `
		FROM ledger_sync_state
		WHERE record_kind = $1 AND record_id = $2
	`

	state, err := scanState(r.querier.QueryRow(ctx, query, kind, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, journal.ErrStateNotFound{Kind: kind, ID: recordID}
		}
		r.logger.Error("Failed to get sync state",
			"record_kind", string(kind),
			"record_id", recordID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return state, nil
}

// ListStaleSynced returns synced records never verified or last verified before the cutoff,
// least recently verified first.
func (r *SyncStateRepository) ListStaleSynced(ctx context.Context, verifiedBefore time.Time, limit int) ([]*journal.State, error) {
	query := `SELECT ` + stateColumns + `
		FROM ledger_sync_state
		WHERE status = $1 AND (last_verified_at IS NULL OR last_verified_at < $2)
		ORDER BY last_verified_at ASC NULLS FIRST
		LIMIT $3
	`

	return r.list(ctx, "stale synced", query, shared.SyncStatusSynced, verifiedBefore, limit)
}

// CountUnsynced returns how many records were saved but never made it onto the
// ledger, because their last sync failed or was cancelled
func (r *SyncStateRepository) CountUnsynced(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM ledger_sync_state
		WHERE status IN ($1, $2)
	`

	var count int
	err := r.querier.QueryRow(ctx, query, shared.SyncStatusUnsynced, shared.SyncStatusCancelled).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count unsynced records", "error", err)
		return 0, fmt.Errorf("failed to count unsynced records: %w", err)
	}
	return count, nil
}

// MarkVerified stamps the time of the last integrity check.
// Returns ErrStateNotFound if the record has no state.
func (r *SyncStateRepository) MarkVerified(ctx context.Context, kind record.Kind, recordID int64, at time.Time) error {
	query := `
		UPDATE ledger_sync_state
		SET last_verified_at = $1
		WHERE record_kind = $2 AND record_id = $3
	`

	result, err := r.querier.Exec(ctx, query, at, kind, recordID)
	if err != nil {
		r.logger.Error("Failed to mark sync state verified",
			"record_kind", string(kind),
			"record_id", recordID,
			"error", err,
		)
		return fmt.Errorf("failed to mark sync state verified: %w", err)
	}

	if result.RowsAffected() == 0 {
		return journal.ErrStateNotFound{Kind: kind, ID: recordID}
	}

	return nil
}

func (r *SyncStateRepository) list(ctx context.Context, what, query string, args ...interface{}) ([]*journal.State, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list sync states", "selection", what, "error", err)
		return nil, fmt.Errorf("failed to list %s sync states: %w", what, err)
	}
	defer rows.Close()

	var states []*journal.State
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			r.logger.Error("Failed to scan sync state", "error", err)
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over sync states", "error", err)
		return nil, fmt.Errorf("error iterating over sync states: %w", err)
	}

	return states, nil
}

func scanState(row pgx.Row) (*journal.State, error) {
	var s journal.State
	err := row.Scan(
		&s.RecordKind,
		&s.RecordID,
		&s.Status,
		&s.DataHash,
		&s.TxHash,
		&s.SignerAddress,
		&s.Attempts,
		&s.LastError,
		&s.UpdatedAt,
		&s.LastVerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
