package journal

import (
	"time"

	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
)

// State is the latest known sync state of one record
type State struct {
	RecordKind     record.Kind       `json:"record_kind"`
	RecordID       int64             `json:"record_id"`
	Status         shared.SyncStatus `json:"status"`
	DataHash       string            `json:"data_hash,omitempty"`
	TxHash         string            `json:"tx_hash,omitempty"`
	SignerAddress  string            `json:"signer_address,omitempty"`
	Attempts       int               `json:"attempts"`
	LastError      string            `json:"last_error,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
	LastVerifiedAt *time.Time        `json:"last_verified_at,omitempty"`
}

// StateFromEvent derives the journal state from a published outcome
func StateFromEvent(e *shared.SyncEvent) *State {
	st := &State{
		RecordKind:    e.RecordKind,
		RecordID:      e.RecordID,
		Status:        e.Status,
		DataHash:      e.DataHash,
		TxHash:        e.TxHash,
		SignerAddress: e.SignerAddress,
		Attempts:      e.Attempts,
		UpdatedAt:     e.Timestamp,
	}
	if !e.Success {
		st.LastError = e.Message
	}
	return st
}
