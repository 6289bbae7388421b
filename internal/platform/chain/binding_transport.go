package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/genluna-medchain/internal/domain/ledger"
)

// Transport names
const (
	TransportBinding = "rpc-binding"
	TransportRelayer = "relayer"
	TransportMemory  = "memory"
)

// contractTransactor is the write side of a bound contract
type contractTransactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// gasEstimator is satisfied by *ethclient.Client
type gasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// ReceiptWaiter blocks until tx is mined
type ReceiptWaiter func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// BindingTransport submits ledger calls directly through a contract binding, signing
// locally with the injected signer and an explicitly buffered gas limit.
type BindingTransport struct {
	contract         *Contract
	transactor       contractTransactor
	estimator        gasEstimator
	wait             ReceiptWaiter
	gasBufferPercent uint64
	receiptTimeout   time.Duration
	logger           *slog.Logger
}

// NewBindingTransport creates the direct contract-binding transport
func NewBindingTransport(
	contract *Contract,
	transactor contractTransactor,
	estimator gasEstimator,
	wait ReceiptWaiter,
	gasBufferPercent uint64,
	receiptTimeout time.Duration,
	logger *slog.Logger,
) *BindingTransport {
	return &BindingTransport{
		contract:         contract,
		transactor:       transactor,
		estimator:        estimator,
		wait:             wait,
		gasBufferPercent: gasBufferPercent,
		receiptTimeout:   receiptTimeout,
		logger:           logger.With("transport", TransportBinding),
	}
}

// Name identifies the transport in attempts and metrics
func (t *BindingTransport) Name() string {
	return TransportBinding
}

// Submit estimates gas, sends the transaction and waits for its receipt
func (t *BindingTransport) Submit(ctx context.Context, signer SignerContext, call ledger.Call) (*ledger.TxReceipt, error) {
	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		return nil, t.fail(call, err)
	}

	args, err := CallArgs(call)
	if err != nil {
		return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportBinding, err)
	}
	data, err := t.contract.Pack(call)
	if err != nil {
		return nil, ledger.NewError(ledger.ReasonMalformed, call, TransportBinding, err)
	}

	to := t.contract.Address
	estimate, err := t.estimator.EstimateGas(ctx, ethereum.CallMsg{From: opts.From, To: &to, Data: data})
	if err != nil {
		return nil, t.fail(call, fmt.Errorf("failed to estimate gas: %w", err))
	}
	opts.GasLimit = BufferedGas(estimate, t.gasBufferPercent)

	tx, err := t.transactor.Transact(opts, call.Method(), args...)
	if err != nil {
		return nil, t.fail(call, err)
	}
	if tx == nil || tx.Hash() == (common.Hash{}) {
		return nil, ledger.MissingReceipt(call, TransportBinding)
	}

	t.logger.Debug("Ledger transaction sent",
		"method", call.Method(),
		"record_id", call.ID,
		"tx_hash", tx.Hash().Hex(),
		"gas_estimate", estimate,
		"gas_limit", opts.GasLimit,
	)

	waitCtx := ctx
	if t.receiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.receiptTimeout)
		defer cancel()
	}
	receipt, err := t.wait(waitCtx, tx)
	if err != nil {
		return nil, t.fail(call, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err))
	}
	if receipt == nil {
		return nil, ledger.MissingReceipt(call, TransportBinding)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, ledger.NewError(ledger.ReasonReverted, call, TransportBinding,
			errors.New("transaction "+tx.Hash().Hex()+" reverted"))
	}

	out := &ledger.TxReceipt{
		TxHash:    tx.Hash().Hex(),
		Transport: TransportBinding,
		GasUsed:   receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

func (t *BindingTransport) fail(call ledger.Call, err error) error {
	return ledger.NewError(Classify(err), call, TransportBinding, err)
}

// BufferedGas adds percent on top of a gas estimate
func BufferedGas(estimate, percent uint64) uint64 {
	return estimate + estimate*percent/100
}
