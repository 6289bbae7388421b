package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a ledgerable record type
type Kind string

const (
	KindStock   Kind = "stock"
	KindRemoval Kind = "removal"
)

// ErrUnknownKind is returned for a kind name that is not ledgerable
var ErrUnknownKind = errors.New("unknown record kind")

// Kinds lists every ledgerable kind in a stable order
var Kinds = []Kind{KindStock, KindRemoval}

// ParseKind accepts the singular or plural resource name
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "stocks":
		return KindStock, nil
	case "removal", "removals", "stock-removal", "stock-removals":
		return KindRemoval, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownKind, s)
	}
}

// Collection returns the REST resource segment for the kind
func (k Kind) Collection() string {
	switch k {
	case KindStock:
		return "stocks"
	case KindRemoval:
		return "removals"
	default:
		return string(k)
	}
}

// Linkage holds the ledger metadata patched onto a record once it is synced
type Linkage struct {
	DataHash      string     `json:"data_hash,omitempty"`
	LedgerTxHash  string     `json:"ledger_tx_hash,omitempty"`
	SignerAddress string     `json:"signer_address,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
}

// Synced reports whether the system of record believes the record is on the ledger
func (l Linkage) Synced() bool {
	return l.LedgerTxHash != ""
}

// Record is any domain record eligible for hash-ledger sync
type Record interface {
	Kind() Kind
	LedgerID() int64
	LedgerLinkage() Linkage
	SetLinkage(l Linkage)
}

// New returns an empty record of the given kind, ready for decoding
func New(kind Kind) (Record, error) {
	switch kind {
	case KindStock:
		return &Stock{}, nil
	case KindRemoval:
		return &Removal{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
}
