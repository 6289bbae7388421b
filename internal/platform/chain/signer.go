package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/genluna-medchain/internal/domain/ledger"
)

// SignerContext is the active wallet passed into every ledger-facing call
type SignerContext interface {
	Address() (common.Address, error)
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// KeyedSigner signs with a locally held private key. It must be connected before use;
// calls made while disconnected fail with ledger.ErrSignerDisconnected.
type KeyedSigner struct {
	mu        sync.RWMutex
	key       *ecdsa.PrivateKey
	address   common.Address
	chainID   *big.Int
	connected bool
	logger    *slog.Logger
}

// NewKeyedSigner creates a disconnected signer from a hex-encoded private key
func NewKeyedSigner(hexKey string, chainID int64, logger *slog.Logger) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key: %w", err)
	}
	return newKeyedSigner(key, chainID, logger), nil
}

// NewEphemeralSigner creates a signer with a freshly generated key, for the in-memory ledger
func NewEphemeralSigner(chainID int64, logger *slog.Logger) (*KeyedSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signer key: %w", err)
	}
	return newKeyedSigner(key, chainID, logger), nil
}

func newKeyedSigner(key *ecdsa.PrivateKey, chainID int64, logger *slog.Logger) *KeyedSigner {
	address := crypto.PubkeyToAddress(key.PublicKey)
	return &KeyedSigner{
		key:     key,
		address: address,
		chainID: big.NewInt(chainID),
		logger:  logger.With("signer", AddressString(address)),
	}
}

// Connect opens the signing session
func (s *KeyedSigner) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		s.connected = true
		s.logger.Info("Signer connected", "chain_id", s.chainID.String())
	}
	return nil
}

// Disconnect closes the signing session
func (s *KeyedSigner) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		s.connected = false
		s.logger.Info("Signer disconnected")
	}
}

// Connected reports whether the signer is usable
func (s *KeyedSigner) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Address returns the signer's account address
func (s *KeyedSigner) Address() (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return common.Address{}, ledger.ErrSignerDisconnected
	}
	return s.address, nil
}

// TransactOpts returns fresh transaction options bound to ctx
func (s *KeyedSigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil, ledger.ErrSignerDisconnected
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
