package journal

import (
	"time"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
)

// AttemptRecord is a persisted TransactionAttempt
type AttemptRecord struct {
	ID            int64       `json:"id"`
	RecordKind    record.Kind `json:"record_kind"`
	RecordID      int64       `json:"record_id"`
	Operation     ledger.Op   `json:"operation"`
	Attempt       int         `json:"attempt"`
	Transport     string      `json:"transport"`
	FallbackUsed  bool        `json:"fallback_used"`
	ErrorClass    string      `json:"error_class,omitempty"`
	ErrorReason   string      `json:"error_reason,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	Retryable     bool        `json:"retryable"`
	TxHash        string      `json:"tx_hash,omitempty"`
	DurationMs    int64       `json:"duration_ms"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewAttemptRecord flattens an executor attempt for storage
func NewAttemptRecord(call ledger.Call, a ledger.Attempt, correlationID string) *AttemptRecord {
	rec := &AttemptRecord{
		RecordKind:    call.Kind,
		RecordID:      call.ID,
		Operation:     call.Op,
		Attempt:       a.Number,
		Transport:     a.Transport,
		FallbackUsed:  a.FallbackUsed,
		Retryable:     a.Retryable,
		DurationMs:    a.Duration.Milliseconds(),
		CorrelationID: correlationID,
		CreatedAt:     a.StartedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if a.Receipt != nil {
		rec.TxHash = a.Receipt.TxHash
	}
	if a.Err != nil {
		rec.ErrorReason = string(a.Reason)
		rec.ErrorClass = string(a.Reason.Class())
		rec.ErrorMessage = a.Err.Error()
	}
	return rec
}

// Succeeded reports whether the attempt produced a transaction hash
func (r *AttemptRecord) Succeeded() bool {
	return r.ErrorClass == "" && r.TxHash != ""
}
