package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/chain"
)

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	codec    ledgersync.HashCodec
	client   ledgersync.LedgerClient
	signer   chain.SignerContext
	verifier ledgersync.VerificationService
	reports  integrity.Repository
	trigger  shared.AuditTrigger
	logger   *slog.Logger
}

// NewLedgerService creates a new ledger service. Integrity reports are stamped with trigger.
// reports may be nil, in which case they are not stored.
func NewLedgerService(
	codec ledgersync.HashCodec,
	client ledgersync.LedgerClient,
	signer chain.SignerContext,
	verifier ledgersync.VerificationService,
	reports integrity.Repository,
	trigger shared.AuditTrigger,
	logger *slog.Logger,
) LedgerService {
	return &LedgerServiceImpl{
		codec:    codec,
		client:   client,
		signer:   signer,
		verifier: verifier,
		reports:  reports,
		trigger:  trigger,
		logger:   logger,
	}
}

func (s *LedgerServiceImpl) Hash(rec record.Record) (string, error) {
	selector, err := record.SelectorFor(rec.Kind())
	if err != nil {
		return "", err
	}
	return s.codec.Hash(rec, selector)
}

func (s *LedgerServiceImpl) Verify(ctx context.Context, kind record.Kind, id int64) (*integrity.Report, error) {
	report, err := s.verifier.InspectByID(ctx, kind, id, s.trigger)
	if err != nil {
		return nil, err
	}

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			logger.FromContext(ctx, s.logger).Warn("Failed to store integrity report",
				"record_kind", string(kind),
				"record_id", id,
				"error", err,
			)
		}
	}
	return report, nil
}

func (s *LedgerServiceImpl) Read(ctx context.Context, kind record.Kind, id int64) (*ledger.Entry, error) {
	return s.client.Read(ctx, kind, id)
}

func (s *LedgerServiceImpl) Remove(ctx context.Context, kind record.Kind, id int64) (*ledger.TxReceipt, error) {
	exec, err := s.client.Remove(ctx, s.signer, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to remove %s %d from ledger: %w", kind, id, err)
	}
	if exec == nil || exec.Receipt == nil {
		return nil, ledger.MissingReceipt(ledger.Call{Op: ledger.OpDelete, Kind: kind, ID: id}, "")
	}
	logger.FromContext(ctx, s.logger).Info("Ledger entry removed",
		"record_kind", string(kind),
		"record_id", id,
		"tx_hash", exec.Receipt.TxHash,
	)
	return exec.Receipt, nil
}

func (s *LedgerServiceImpl) Count(ctx context.Context, kind record.Kind) uint64 {
	return s.client.Count(ctx, kind)
}
