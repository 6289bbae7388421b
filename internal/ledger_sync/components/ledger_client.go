package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/chain"
)

type LedgerClientImpl struct {
	executor service.TransactionExecutor
	reader   service.LedgerReader
	logger   *slog.Logger
}

func NewLedgerClient(executor service.TransactionExecutor, reader service.LedgerReader, logger *slog.Logger) service.LedgerClient {
	return &LedgerClientImpl{
		executor: executor,
		reader:   reader,
		logger:   logger,
	}
}

// Store records digest for a new identifier. An identifier that already has a live
// entry is updated instead, so re-syncing never fails on existence.
func (c *LedgerClientImpl) Store(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64, digest string) (*ledger.Execution, error) {
	log := logger.FromContext(ctx, c.logger).With("record_kind", string(kind), "record_id", id)

	entry, err := c.reader.Read(ctx, kind, id)
	if err != nil {
		log.Warn("Failed to read ledger entry before store, submitting store", "error", err)
	} else if entry != nil && entry.Exists {
		log.Info("Ledger entry already exists, updating instead of storing", "ledger_digest", entry.DataHash)
		return c.Update(ctx, signer, kind, id, digest)
	}

	exec, err := c.executor.Run(ctx, signer, ledger.Call{Op: ledger.OpStore, Kind: kind, ID: id, Digest: digest})
	if err != nil && errors.Is(err, ledger.ErrAlreadyExists) {
		log.Info("Ledger reported entry already stored, updating instead")
		update, updateErr := c.Update(ctx, signer, kind, id, digest)
		if update != nil && exec != nil {
			update.Attempts = append(exec.Attempts, update.Attempts...)
		}
		return update, updateErr
	}
	return exec, err
}

// Update replaces the digest of an existing identifier
func (c *LedgerClientImpl) Update(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64, digest string) (*ledger.Execution, error) {
	return c.executor.Run(ctx, signer, ledger.Call{Op: ledger.OpUpdate, Kind: kind, ID: id, Digest: digest})
}

// Remove deletes the ledger entry of an identifier
func (c *LedgerClientImpl) Remove(ctx context.Context, signer chain.SignerContext, kind record.Kind, id int64) (*ledger.Execution, error) {
	return c.executor.Run(ctx, signer, ledger.Call{Op: ledger.OpDelete, Kind: kind, ID: id})
}

func (c *LedgerClientImpl) Verify(ctx context.Context, kind record.Kind, id int64, digest string) (bool, error) {
	return c.reader.Verify(ctx, kind, id, digest)
}

func (c *LedgerClientImpl) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	return c.reader.Read(ctx, kind, id)
}

// Count returns the number of live entries for kind, or 0 when the ledger cannot be read
func (c *LedgerClientImpl) Count(ctx context.Context, kind record.Kind) uint64 {
	n, err := c.reader.Count(ctx, kind)
	if err != nil {
		logger.FromContext(ctx, c.logger).Warn("Failed to read ledger entry count", "record_kind", string(kind), "error", err)
		return 0
	}
	return n
}
