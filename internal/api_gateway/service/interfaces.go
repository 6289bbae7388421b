package service

import (
	"context"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
)

// SyncService defines the dual write operations offered to the UI
type SyncService interface {
	// CreateRecord saves the record in the system of record and records its digest on the ledger.
	// A non-nil result together with an error means the record was saved but not ledgered.
	CreateRecord(ctx context.Context, rec record.Record) (*ledgersync.SyncResult, error)

	// ResyncRecord records the digest of the record as currently stored.
	// Returns ErrSyncInProgress if a sync for the same record is already running.
	ResyncRecord(ctx context.Context, kind record.Kind, id int64) (*ledgersync.SyncResult, error)

	// ListAttempts returns the most recent ledger attempts for a record, newest first
	ListAttempts(ctx context.Context, kind record.Kind, id int64, limit int) ([]*journal.AttemptRecord, error)
}

// LedgerService defines the bare hash-ledger primitives
type LedgerService interface {
	// Hash computes the digest of a record's selected fields without touching any store
	Hash(rec record.Record) (string, error)

	// Verify re-reads the record and compares its digest with the ledger entry
	// Returns ErrRecordNotFound if the system of record has no such record
	Verify(ctx context.Context, kind record.Kind, id int64) (*integrity.Report, error)

	Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error)

	// Remove deletes the ledger entry and returns the receipt of the delete transaction
	Remove(ctx context.Context, kind record.Kind, id int64) (*ledger.TxReceipt, error)

	// Count returns the number of live entries of a kind, zero when the ledger is unreadable
	Count(ctx context.Context, kind record.Kind) uint64
}
