package ledger

import (
	"time"

	"github.com/genluna-medchain/internal/domain/record"
)

// Entry is the ledger-side counterpart of a record, keyed by the same identifier
type Entry struct {
	DataHash    string    `json:"data_hash"`
	SubmittedBy string    `json:"submitted_by"`
	Timestamp   time.Time `json:"timestamp"`
	Exists      bool      `json:"exists"`
}

// TxReceipt is a normalized transaction receipt, whichever transport produced it
type TxReceipt struct {
	TxHash      string `json:"tx_hash"`
	Transport   string `json:"transport"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
}

// Op is a ledger contract operation
type Op string

const (
	OpStore  Op = "store"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpGet    Op = "get"
	OpVerify Op = "verify"
	OpCount  Op = "count"
)

// Mutating reports whether the op submits a transaction
func (o Op) Mutating() bool {
	return o == OpStore || o == OpUpdate || o == OpDelete
}

// MethodName maps an operation on a record kind to its contract method,
// e.g. store+removal -> storeRemovalHash, count+stock -> getStockCount.
func MethodName(op Op, kind record.Kind) string {
	subject := "Stock"
	if kind == record.KindRemoval {
		subject = "Removal"
	}
	switch op {
	case OpCount:
		return "get" + subject + "Count"
	case OpGet:
		return "get" + subject + "Hash"
	default:
		return string(op) + subject + "Hash"
	}
}

// Call describes one ledger-mutating call
type Call struct {
	Op     Op
	Kind   record.Kind
	ID     int64
	Digest string // empty for delete
}

// Method returns the contract method the call maps to
func (c Call) Method() string {
	return MethodName(c.Op, c.Kind)
}

// Attempt is one execution try of a ledger-mutating call
type Attempt struct {
	Number       int
	Transport    string // transport that produced the attempt's final result
	FallbackUsed bool
	Reason       Reason // empty on success
	Err          error
	Retryable    bool
	Receipt      *TxReceipt
	StartedAt    time.Time
	Duration     time.Duration
}

// Succeeded reports whether the attempt produced a receipt
func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.Receipt != nil
}

// Execution is the result of running a call through the retrying executor
type Execution struct {
	Call     Call
	Receipt  *TxReceipt
	Attempts []Attempt
}
