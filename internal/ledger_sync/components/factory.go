package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/platform/chain"
)

const devChainID = 31337

// ErrProcessLocalLedger is returned when a process that shares the journal and
// the system of record with the gateway is configured with the in-memory ledger
var ErrProcessLocalLedger = errors.New("the in-memory ledger is private to one process")

// RequireSharedLedger rejects the in-memory ledger. The auditor and ledgerctl
// would read or write a ledger no other process sees, then record the result
// in shared stores.
func RequireSharedLedger(cfg *config.Config) error {
	if cfg.Ledger.Mode == config.LedgerModeMemory {
		return fmt.Errorf("%w: set LEDGER_MODE=%s", ErrProcessLocalLedger, config.LedgerModeRPC)
	}
	return nil
}

// LedgerStack is the ledger side of the sync protocol, wired for one process
type LedgerStack struct {
	Client   service.LedgerClient
	Reader   service.LedgerReader
	Signer   *chain.KeyedSigner
	Executor *TransactionExecutorImpl

	node *chain.Client
}

// Close disconnects the signer and releases the node connection
func (s *LedgerStack) Close() {
	if s.Signer != nil {
		s.Signer.Disconnect()
	}
	if s.node != nil {
		s.node.Close()
	}
}

// CreateLedgerStack builds the transports, reader and signer selected by LEDGER_MODE and
// connects the signer. recorder may be nil for read-only processes.
//
// In rpc mode the relayer is the primary transport and the direct binding the fallback when
// a relayer is configured; otherwise the binding is the only transport.
func CreateLedgerStack(ctx context.Context, cfg *config.Config, recorder service.AttemptRecorder, logger *slog.Logger) (*LedgerStack, error) {
	stack := &LedgerStack{}
	var primary, fallback service.LedgerTransport

	switch cfg.Ledger.Mode {
	case config.LedgerModeMemory:
		mem := chain.NewMemoryLedger()
		primary = mem
		stack.Reader = mem

		chainID := cfg.Ledger.ChainID
		if chainID == 0 {
			chainID = devChainID
		}
		signer, err := chain.NewEphemeralSigner(chainID, logger)
		if err != nil {
			return nil, err
		}
		stack.Signer = signer
		logger.Warn("Using in-memory ledger; entries are lost on restart")

	case config.LedgerModeRPC:
		node, err := chain.Dial(ctx, cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress, cfg.Ledger.ChainID, logger.With("component", "ledger_node"))
		if err != nil {
			return nil, err
		}
		stack.node = node
		stack.Reader = node.Reader(cfg.Ledger.CallTimeout)

		binding := node.BindingTransport(uint64(cfg.Ledger.GasBufferPercent), cfg.Ledger.ReceiptTimeout)
		if cfg.Ledger.RelayerEnabled() {
			primary = chain.NewRelayerTransport(
				cfg.Ledger.RelayerURL,
				cfg.Ledger.RelayerAPIKey,
				cfg.Ledger.ChainID,
				node.Contract().Address,
				logger,
			)
			fallback = binding
		} else {
			primary = binding
		}

		signer, err := chain.NewKeyedSigner(cfg.Ledger.PrivateKey, cfg.Ledger.ChainID, logger)
		if err != nil {
			node.Close()
			return nil, err
		}
		stack.Signer = signer

	default:
		return nil, fmt.Errorf("unsupported ledger mode %q", cfg.Ledger.Mode)
	}

	if err := stack.Signer.Connect(ctx); err != nil {
		stack.Close()
		return nil, fmt.Errorf("failed to connect signer: %w", err)
	}

	stack.Executor = NewTransactionExecutor(
		primary,
		fallback,
		recorder,
		RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.Retry.Backoff},
		logger.With("component", "ledger_executor"),
	)
	stack.Client = NewLedgerClient(stack.Executor, stack.Reader, logger.With("component", "ledger_client"))

	fallbackName := ""
	if fallback != nil {
		fallbackName = fallback.Name()
	}
	logger.Info("Created ledger stack",
		"mode", cfg.Ledger.Mode,
		"primary_transport", primary.Name(),
		"fallback_transport", fallbackName,
		"max_attempts", cfg.Retry.MaxAttempts,
		"backoff", cfg.Retry.Backoff.String(),
	)
	return stack, nil
}

// CreateDualWriteCoordinator wires the coordinator over an existing ledger stack
func CreateDualWriteCoordinator(
	sor service.SystemOfRecord,
	stack *LedgerStack,
	outcomes service.OutcomeRecorder,
	logger *slog.Logger,
) service.DualWriteCoordinator {
	return service.NewDualWriteCoordinator(
		sor,
		NewHashCodec(),
		stack.Client,
		stack.Signer,
		outcomes,
		logger.With("component", "dual_write_coordinator"),
	)
}

// CreateVerificationService wires the verification service over an existing ledger stack
func CreateVerificationService(sor service.SystemOfRecord, stack *LedgerStack, logger *slog.Logger) service.VerificationService {
	return service.NewVerificationService(
		NewHashCodec(),
		stack.Client,
		sor,
		logger.With("component", "verification_service"),
	)
}
