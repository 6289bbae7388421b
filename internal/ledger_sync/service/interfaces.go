package service

import (
	"context"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/platform/chain"
)

// DualWriteCoordinator runs the create-then-sync sequence for one record
type DualWriteCoordinator interface {
	CreateWithLedgerSync(ctx context.Context, payload record.Record) (*SyncResult, error)
	Resync(ctx context.Context, kind record.Kind, id int64) (*SyncResult, error)
}

// VerificationService recomputes a record's digest and checks it against the ledger
type VerificationService interface {
	Verify(ctx context.Context, rec record.Record) (bool, error)
	Inspect(ctx context.Context, rec record.Record, trigger shared.AuditTrigger) (*integrity.Report, error)
	InspectByID(ctx context.Context, kind record.Kind, id int64, trigger shared.AuditTrigger) (*integrity.Report, error)
}

// HashCodec produces the content digest of a record's selected fields
type HashCodec interface {
	Hash(rec record.Record, selector record.FieldSelector) (string, error)
}

// LedgerTransport is one way of submitting a mutating call to the ledger contract
type LedgerTransport interface {
	Name() string
	Submit(ctx context.Context, signer chain.SignerContext, call ledger.Call) (*ledger.TxReceipt, error)
}

// LedgerReader performs view calls against the ledger contract
type LedgerReader interface {
	Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error)
	Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error)
	Count(ctx context.Context, kind record.Kind) (uint64, error)
}

// TransactionExecutor runs one mutating call with bounded retry and transport fallback
type TransactionExecutor interface {
	Run(ctx context.Context, signer chain.SignerContext, call ledger.Call) (*ledger.Execution, error)
}

// LedgerClient is the capability surface over the hash-ledger
type LedgerClient interface {
	Store(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64, digest string) (*ledger.Execution, error)
	Update(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64, digest string) (*ledger.Execution, error)
	Remove(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64) (*ledger.Execution, error)
	Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error)
	Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error)
	Count(ctx context.Context, kind record.Kind) uint64
}

// SystemOfRecord is the REST store that owns the records
type SystemOfRecord interface {
	Create(ctx context.Context, rec record.Record) (record.Record, error)
	Get(ctx context.Context, kind record.Kind, id int64) (record.Record, error)
	PatchLinkage(ctx context.Context, rec record.Record, linkage record.Linkage) error
}

// AttemptRecorder journals each TransactionAttempt
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, call ledger.Call, attempt ledger.Attempt)
}

// OutcomeRecorder persists and publishes the final outcome of a sync
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, event *shared.SyncEvent) error
}
