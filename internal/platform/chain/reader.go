package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
)

// contractCaller is the read side of a bound contract
type contractCaller interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
}

// ContractReader performs view calls against the ledger contract
type ContractReader struct {
	caller      contractCaller
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewContractReader creates a reader over a bound contract
func NewContractReader(caller contractCaller, callTimeout time.Duration, logger *slog.Logger) *ContractReader {
	return &ContractReader{
		caller:      caller,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Read returns the ledger entry for id. A missing entry comes back with Exists=false
// and zeroed fields.
func (r *ContractReader) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	method := ledger.MethodName(ledger.OpGet, kind)
	out, err := r.call(ctx, method, big.NewInt(id))
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected %s result length %d", method, len(out))
	}

	dataHash := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	submittedBy := *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
	timestamp := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	exists := *abi.ConvertType(out[3], new(bool)).(*bool)

	if !exists {
		return &ledger.Entry{}, nil
	}

	entry := &ledger.Entry{
		DataHash:    DigestHex(dataHash),
		SubmittedBy: AddressString(submittedBy),
		Exists:      true,
	}
	if timestamp != nil && timestamp.Sign() > 0 {
		entry.Timestamp = time.Unix(timestamp.Int64(), 0).UTC()
	}
	return entry, nil
}

// Verify asks the contract whether the live entry for id carries digest
func (r *ContractReader) Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error) {
	digestBytes, err := DigestBytes(digest)
	if err != nil {
		return false, err
	}
	method := ledger.MethodName(ledger.OpVerify, kind)
	out, err := r.call(ctx, method, big.NewInt(id), digestBytes)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("unexpected %s result length %d", method, len(out))
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Count returns the number of live entries for kind
func (r *ContractReader) Count(ctx context.Context, kind record.Kind) (uint64, error) {
	method := ledger.MethodName(ledger.OpCount, kind)
	out, err := r.call(ctx, method)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected %s result length %d", method, len(out))
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if count == nil {
		return 0, nil
	}
	return count.Uint64(), nil
}

func (r *ContractReader) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	var out []interface{}
	if err := r.caller.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		r.logger.Debug("Ledger view call failed", "method", method, "error", err)
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}
