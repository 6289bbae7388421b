package shared

import (
	"strconv"
	"time"

	"github.com/genluna-medchain/internal/domain/record"
)

// SyncEvent is the Kafka message published for every coordinator outcome
type SyncEvent struct {
	EventID       string        `json:"event_id"`
	RecordKind    record.Kind   `json:"record_kind"`
	RecordID      int64         `json:"record_id"`
	Operation     SyncOperation `json:"operation"`
	Success       bool          `json:"success"`
	Status        SyncStatus    `json:"status"`
	DataHash      string        `json:"data_hash,omitempty"`
	TxHash        string        `json:"tx_hash,omitempty"`
	SignerAddress string        `json:"signer_address,omitempty"`
	ErrorClass    string        `json:"error_class,omitempty"`
	ErrorReason   string        `json:"error_reason,omitempty"`
	OutcomeCode   string        `json:"outcome_code"`
	Message       string        `json:"message"`
	Attempts      int           `json:"attempts"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Key is the partition key, so events for one record stay ordered
func (e *SyncEvent) Key() string {
	return string(e.RecordKind) + ":" + strconv.FormatInt(e.RecordID, 10)
}
