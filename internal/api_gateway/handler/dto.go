package handler

import (
	"time"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
)

// CreateStockRequest represents a request to record a stock addition
type CreateStockRequest struct {
	MedicineID   int64  `json:"medicine_id" binding:"required,gt=0"`
	Quantity     int64  `json:"quantity" binding:"required,gt=0"`
	BatchNumber  string `json:"batch_number" binding:"required"`
	ExpiryDate   string `json:"expiry_date" binding:"required"`
	DateReceived string `json:"date_received" binding:"required"`
	Supplier     string `json:"supplier"`
	Notes        string `json:"notes"`
}

func (r CreateStockRequest) toRecord() *record.Stock {
	return &record.Stock{
		MedicineID:   r.MedicineID,
		Quantity:     r.Quantity,
		BatchNumber:  r.BatchNumber,
		ExpiryDate:   r.ExpiryDate,
		DateReceived: r.DateReceived,
		Supplier:     r.Supplier,
		Notes:        r.Notes,
	}
}

// CreateRemovalRequest represents a request to record a stock removal
type CreateRemovalRequest struct {
	MedicineID      int64  `json:"medicine_id" binding:"required,gt=0"`
	StockID         int64  `json:"stock_id" binding:"omitempty,gt=0"`
	QuantityRemoved int64  `json:"quantity_removed" binding:"required,gt=0"`
	Reason          string `json:"reason" binding:"required"`
	DateRemoved     string `json:"date_removed" binding:"required"`
	Notes           string `json:"notes"`
}

func (r CreateRemovalRequest) toRecord() *record.Removal {
	return &record.Removal{
		MedicineID:      r.MedicineID,
		StockID:         r.StockID,
		QuantityRemoved: r.QuantityRemoved,
		Reason:          r.Reason,
		DateRemoved:     r.DateRemoved,
		Notes:           r.Notes,
	}
}

// OutcomeResponse tells the UI what happened and what the user can do next
type OutcomeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Advice  string `json:"advice"`
}

// ReceiptResponse represents a ledger transaction receipt
type ReceiptResponse struct {
	TxHash      string `json:"tx_hash"`
	Transport   string `json:"transport"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
}

// SyncResponse represents the result of a dual write or a resync
type SyncResponse struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	Outcome        OutcomeResponse  `json:"outcome"`
	RecordKind     string           `json:"record_kind"`
	RecordID       int64            `json:"record_id"`
	Record         interface{}      `json:"record"`
	DataHash       string           `json:"data_hash,omitempty"`
	Receipt        *ReceiptResponse `json:"receipt,omitempty"`
	Attempts       int              `json:"attempts"`
	LinkagePatched bool             `json:"linkage_patched"`
}

// HashResponse represents a digest computed over a posted record
type HashResponse struct {
	RecordKind string `json:"record_kind"`
	RecordID   int64  `json:"record_id"`
	DataHash   string `json:"data_hash"`
}

// LedgerEntryResponse represents the ledger-side entry of a record
type LedgerEntryResponse struct {
	RecordKind  string `json:"record_kind"`
	RecordID    int64  `json:"record_id"`
	Exists      bool   `json:"exists"`
	DataHash    string `json:"data_hash,omitempty"`
	SubmittedBy string `json:"submitted_by,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// VerifyResponse represents an integrity check of a record against the ledger
type VerifyResponse struct {
	RecordKind      string `json:"record_kind"`
	RecordID        int64  `json:"record_id"`
	Verified        bool   `json:"verified"`
	Status          string `json:"status"`
	ComputedDigest  string `json:"computed_digest"`
	LedgerDigest    string `json:"ledger_digest,omitempty"`
	ClaimedDigest   string `json:"claimed_digest,omitempty"`
	SubmittedBy     string `json:"submitted_by,omitempty"`
	LedgerTimestamp string `json:"ledger_timestamp,omitempty"`
	CheckedAt       string `json:"checked_at"`
}

// CountResponse represents the number of live ledger entries of a kind
type CountResponse struct {
	RecordKind string `json:"record_kind"`
	Count      uint64 `json:"count"`
}

// AttemptResponse represents one journaled ledger attempt
type AttemptResponse struct {
	Attempt      int    `json:"attempt"`
	Operation    string `json:"operation"`
	Transport    string `json:"transport"`
	FallbackUsed bool   `json:"fallback_used"`
	Succeeded    bool   `json:"succeeded"`
	TxHash       string `json:"tx_hash,omitempty"`
	ErrorClass   string `json:"error_class,omitempty"`
	ErrorReason  string `json:"error_reason,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Retryable    bool   `json:"retryable"`
	DurationMs   int64  `json:"duration_ms"`
	CreatedAt    string `json:"created_at"`
}

// AttemptListResponse represents the attempt journal of a record
type AttemptListResponse struct {
	RecordKind string            `json:"record_kind"`
	RecordID   int64             `json:"record_id"`
	Attempts   []AttemptResponse `json:"attempts"`
}

// AttemptListParams represents query parameters for the attempt journal
type AttemptListParams struct {
	Limit int `form:"limit,default=20" binding:"min=1,max=200"`
}

func mapSyncResult(result *ledgersync.SyncResult) SyncResponse {
	resp := SyncResponse{
		Success: result.Success,
		Message: result.Message,
		Outcome: OutcomeResponse{
			Code:    result.Outcome.Code,
			Message: result.Outcome.Message,
			Advice:  string(result.Outcome.Advice),
		},
		Record:         result.Record,
		DataHash:       result.Digest,
		Attempts:       result.Attempts,
		LinkagePatched: result.LinkagePatched,
	}
	if result.Record != nil {
		resp.RecordKind = string(result.Record.Kind())
		resp.RecordID = result.Record.LedgerID()
	}
	if result.Receipt != nil {
		resp.Receipt = mapReceipt(result.Receipt)
	}
	return resp
}

func mapReceipt(receipt *ledger.TxReceipt) *ReceiptResponse {
	return &ReceiptResponse{
		TxHash:      receipt.TxHash,
		Transport:   receipt.Transport,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}
}

func mapEntry(kind record.Kind, id int64, entry *ledger.Entry) LedgerEntryResponse {
	resp := LedgerEntryResponse{RecordKind: string(kind), RecordID: id}
	if entry == nil || !entry.Exists {
		return resp
	}
	resp.Exists = true
	resp.DataHash = entry.DataHash
	resp.SubmittedBy = entry.SubmittedBy
	if !entry.Timestamp.IsZero() {
		resp.Timestamp = entry.Timestamp.UTC().Format(time.RFC3339)
	}
	return resp
}

func mapReport(report *integrity.Report) VerifyResponse {
	resp := VerifyResponse{
		RecordKind:     string(report.RecordKind),
		RecordID:       report.RecordID,
		Verified:       report.Verified(),
		Status:         string(report.Status),
		ComputedDigest: report.ComputedDigest,
		LedgerDigest:   report.LedgerDigest,
		ClaimedDigest:  report.ClaimedDigest,
		SubmittedBy:    report.SubmittedBy,
		CheckedAt:      report.CheckedAt.Format(time.RFC3339),
	}
	if report.LedgerTimestamp != nil {
		resp.LedgerTimestamp = report.LedgerTimestamp.UTC().Format(time.RFC3339)
	}
	return resp
}

func mapAttempts(attempts []*journal.AttemptRecord) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptResponse{
			Attempt:      a.Attempt,
			Operation:    string(a.Operation),
			Transport:    a.Transport,
			FallbackUsed: a.FallbackUsed,
			Succeeded:    a.Succeeded(),
			TxHash:       a.TxHash,
			ErrorClass:   a.ErrorClass,
			ErrorReason:  a.ErrorReason,
			ErrorMessage: a.ErrorMessage,
			Retryable:    a.Retryable,
			DurationMs:   a.DurationMs,
			CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
