package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
)

type memoryEntry struct {
	digest      [32]byte
	submittedBy string
	timestamp   time.Time
}

// MemoryLedger is an in-process hash-ledger with the same contract semantics as the
// deployed one: double store reverts, update and delete require a live entry.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[record.Kind]map[int64]memoryEntry
	seq     uint64
	now     func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[record.Kind]map[int64]memoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Name identifies the transport in attempts and metrics
func (m *MemoryLedger) Name() string {
	return TransportMemory
}

// Submit applies a mutating call
func (m *MemoryLedger) Submit(ctx context.Context, signer SignerContext, call ledger.Call) (*ledger.TxReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.NewError(Classify(err), call, TransportMemory, err)
	}
	from, err := signer.Address()
	if err != nil {
		return nil, ledger.NewError(Classify(err), call, TransportMemory, err)
	}
	if _, err := CallArgs(call); err != nil {
		return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportMemory, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[call.Kind]
	if entries == nil {
		entries = make(map[int64]memoryEntry)
		m.entries[call.Kind] = entries
	}
	_, exists := entries[call.ID]

	switch call.Op {
	case ledger.OpStore:
		if exists {
			return nil, ledger.NewError(ledger.ReasonAlreadyExists, call, TransportMemory,
				fmt.Errorf("execution reverted: %s %d already exists", call.Kind, call.ID))
		}
	case ledger.OpUpdate, ledger.OpDelete:
		if !exists {
			return nil, ledger.NewError(ledger.ReasonReverted, call, TransportMemory,
				fmt.Errorf("execution reverted: %s %d does not exist", call.Kind, call.ID))
		}
	default:
		return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportMemory,
			errors.New("operation "+string(call.Op)+" does not submit a transaction"))
	}

	if call.Op == ledger.OpDelete {
		delete(entries, call.ID)
	} else {
		digest, err := DigestBytes(call.Digest)
		if err != nil {
			return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportMemory, err)
		}
		entries[call.ID] = memoryEntry{
			digest:      digest,
			submittedBy: AddressString(from),
			timestamp:   m.now().Truncate(time.Second),
		}
	}

	m.seq++
	txHash := crypto.Keccak256([]byte(fmt.Sprintf("%s:%s:%d:%d", call.Method(), from.Hex(), call.ID, m.seq)))
	return &ledger.TxReceipt{
		TxHash:      hexutil.Encode(txHash),
		Transport:   TransportMemory,
		BlockNumber: m.seq,
	}, nil
}

// Read returns the live entry for id, or an Entry with Exists=false
func (m *MemoryLedger) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[kind][id]
	if !ok {
		return &ledger.Entry{}, nil
	}
	return &ledger.Entry{
		DataHash:    DigestHex(e.digest),
		SubmittedBy: e.submittedBy,
		Timestamp:   e.timestamp,
		Exists:      true,
	}, nil
}

// Verify reports whether a live entry for id carries digest. Digests compare as
// bytes, so hex case does not matter.
func (m *MemoryLedger) Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error) {
	want, err := DigestBytes(digest)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[kind][id]
	return ok && e.digest == want, nil
}

// Count returns the number of live entries for kind
func (m *MemoryLedger) Count(ctx context.Context, kind record.Kind) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries[kind])), nil
}
