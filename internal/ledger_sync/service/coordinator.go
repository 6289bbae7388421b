package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/metrics"
	"github.com/genluna-medchain/internal/platform/chain"
)

// SyncResult is what the UI gets back from a dual write.
// Record is set whenever the system-of-record write succeeded; Receipt only when the
// ledger write did too.
type SyncResult struct {
	Record         record.Record     `json:"record"`
	Receipt        *ledger.TxReceipt `json:"receipt"`
	Digest         string            `json:"digest,omitempty"`
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	Outcome        ledger.Outcome    `json:"outcome"`
	Attempts       int               `json:"attempts"`
	LinkagePatched bool              `json:"linkage_patched"`
}

type DualWriteCoordinatorImpl struct {
	sor      SystemOfRecord
	codec    HashCodec
	ledger   LedgerClient
	signer   chain.SignerContext
	outcomes OutcomeRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewDualWriteCoordinator(
	sor SystemOfRecord,
	codec HashCodec,
	ledgerClient LedgerClient,
	signer chain.SignerContext,
	outcomes OutcomeRecorder,
	logger *slog.Logger,
) *DualWriteCoordinatorImpl {
	return &DualWriteCoordinatorImpl{
		sor:      sor,
		codec:    codec,
		ledger:   ledgerClient,
		signer:   signer,
		outcomes: outcomes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		inFlight: make(map[string]struct{}),
	}
}

// CreateWithLedgerSync persists the payload in the system of record, then records its digest
// on the ledger and patches the ledger linkage back onto the record.
//
// A system-of-record failure returns a nil result and a record.PersistenceError. A ledger
// failure returns the persisted record with Success=false and the classified ledger error.
// A linkage patch failure is logged and does not fail the call.
func (s *DualWriteCoordinatorImpl) CreateWithLedgerSync(ctx context.Context, payload record.Record) (*SyncResult, error) {
	log := logger.FromContext(ctx, s.logger).With("record_kind", string(payload.Kind()))

	// 1. Persist in the system of record
	created, err := s.sor.Create(ctx, payload)
	if err != nil {
		log.Error("Failed to create record in system of record", "error", err)
		metrics.RecordSync(string(payload.Kind()), "persistence_failed")
		return nil, record.PersistenceError{Kind: payload.Kind(), Op: "create", Err: err}
	}

	log.Info("Record created in system of record", "record_id", created.LedgerID())
	return s.sync(ctx, created, shared.SyncOperationCreate)
}

// Resync records the digest of the record as currently stored, starting from the hashing step.
func (s *DualWriteCoordinatorImpl) Resync(ctx context.Context, kind record.Kind, id int64) (*SyncResult, error) {
	rec, err := s.sor.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, record.ErrRecordNotFound{}) {
			return nil, err
		}
		return nil, record.PersistenceError{Kind: kind, Op: "read", Err: err}
	}
	return s.sync(ctx, rec, shared.SyncOperationResync)
}

func (s *DualWriteCoordinatorImpl) sync(ctx context.Context, rec record.Record, op shared.SyncOperation) (*SyncResult, error) {
	kind, id := rec.Kind(), rec.LedgerID()
	log := logger.FromContext(ctx, s.logger).With("record_kind", string(kind), "record_id", id)

	if !s.acquire(kind, id) {
		log.Warn("Ledger sync already in progress")
		return nil, ErrSyncInProgress{Kind: kind, ID: id}
	}
	defer s.release(kind, id)

	result := &SyncResult{Record: rec}

	// 2. Hash the domain fields
	selector, err := record.SelectorFor(kind)
	if err != nil {
		return s.fail(ctx, log, result, op, err)
	}
	digest, err := s.codec.Hash(rec, selector)
	if err != nil {
		return s.fail(ctx, log, result, op, err)
	}
	result.Digest = digest

	// 3. Record the digest on the ledger
	exec, err := s.ledger.Store(ctx, s.signer, kind, id, digest)
	if exec != nil {
		result.Attempts = len(exec.Attempts)
	}
	if err == nil && (exec == nil || exec.Receipt == nil) {
		err = ledger.MissingReceipt(ledger.Call{Op: ledger.OpStore, Kind: kind, ID: id, Digest: digest}, "")
	}
	if err != nil {
		return s.fail(ctx, log, result, op, err)
	}
	result.Receipt = exec.Receipt

	// 4. Patch the linkage back onto the record
	signerAddress := ""
	if addr, addrErr := s.signer.Address(); addrErr == nil {
		signerAddress = chain.AddressString(addr)
	}
	syncedAt := s.now()
	linkage := record.Linkage{
		DataHash:      digest,
		LedgerTxHash:  exec.Receipt.TxHash,
		SignerAddress: signerAddress,
		LastSyncedAt:  &syncedAt,
	}
	if err := s.sor.PatchLinkage(ctx, rec, linkage); err != nil {
		log.Error("Failed to patch ledger linkage onto record", "tx_hash", exec.Receipt.TxHash, "error", err)
	} else {
		result.LinkagePatched = true
	}

	result.Success = true
	result.Outcome = ledger.Synced()
	result.Message = result.Outcome.Message

	log.Info("Record synced to ledger",
		"tx_hash", exec.Receipt.TxHash,
		"transport", exec.Receipt.Transport,
		"attempts", result.Attempts,
	)
	metrics.RecordSync(string(kind), "synced")

	s.recordOutcome(ctx, log, &shared.SyncEvent{
		RecordKind:    kind,
		RecordID:      id,
		Operation:     op,
		Success:       true,
		Status:        shared.SyncStatusSynced,
		DataHash:      digest,
		TxHash:        exec.Receipt.TxHash,
		SignerAddress: signerAddress,
		OutcomeCode:   result.Outcome.Code,
		Message:       result.Message,
		Attempts:      result.Attempts,
		CorrelationID: logger.CorrelationID(ctx),
		Timestamp:     syncedAt,
	})
	return result, nil
}

// fail fills in the guidance for a post-persistence failure and publishes the outcome
func (s *DualWriteCoordinatorImpl) fail(ctx context.Context, log *slog.Logger, result *SyncResult, op shared.SyncOperation, err error) (*SyncResult, error) {
	result.Success = false
	result.Receipt = nil
	result.Outcome = ledger.Guidance(err)

	event := &shared.SyncEvent{
		RecordKind:    result.Record.Kind(),
		RecordID:      result.Record.LedgerID(),
		Operation:     op,
		Status:        shared.SyncStatusUnsynced,
		DataHash:      result.Digest,
		Attempts:      result.Attempts,
		CorrelationID: logger.CorrelationID(ctx),
		Timestamp:     s.now(),
	}

	var lerr *ledger.Error
	var encErr record.EncodingError
	switch {
	case errors.As(err, &lerr):
		event.ErrorClass = string(lerr.Class)
		event.ErrorReason = string(lerr.Reason)
		if lerr.Class == ledger.ClassUserCancelled {
			event.Status = shared.SyncStatusCancelled
		}
		log.Error("Failed to record digest on ledger",
			"error_class", string(lerr.Class),
			"error_reason", string(lerr.Reason),
			"attempts", result.Attempts,
			"error", err,
		)
	case errors.As(err, &encErr):
		result.Outcome = ledger.Outcome{
			Code:    "ENCODING_ERROR",
			Message: "The record was saved but its fields cannot be hashed: " + encErr.Error(),
			Advice:  ledger.AdviceContactAdmin,
		}
		event.ErrorClass = "ENCODING"
		log.Error("Failed to hash record fields", "field", encErr.Field, "error", err)
	default:
		log.Error("Failed to sync record to ledger", "error", err)
	}

	result.Message = result.Outcome.Message
	event.OutcomeCode = result.Outcome.Code
	event.Message = result.Message
	metrics.RecordSync(string(event.RecordKind), "saved_not_ledgered")

	s.recordOutcome(ctx, log, event)
	return result, err
}

func (s *DualWriteCoordinatorImpl) recordOutcome(ctx context.Context, log *slog.Logger, event *shared.SyncEvent) {
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.RecordOutcome(ctx, event); err != nil {
		log.Error("Failed to record sync outcome", "status", string(event.Status), "error", err)
	}
}

func inFlightKey(kind record.Kind, id int64) string {
	return string(kind) + ":" + strconv.FormatInt(id, 10)
}

func (s *DualWriteCoordinatorImpl) acquire(kind record.Kind, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inFlightKey(kind, id)
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *DualWriteCoordinatorImpl) release(kind record.Kind, id int64) {
	s.mu.Lock()
	delete(s.inFlight, inFlightKey(kind, id))
	s.mu.Unlock()
}
