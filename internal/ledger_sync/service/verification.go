package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/metrics"
)

type VerificationServiceImpl struct {
	codec  HashCodec
	ledger LedgerClient
	sor    SystemOfRecord
	logger *slog.Logger
	now    func() time.Time
}

func NewVerificationService(codec HashCodec, ledgerClient LedgerClient, sor SystemOfRecord, logger *slog.Logger) *VerificationServiceImpl {
	return &VerificationServiceImpl{
		codec:  codec,
		ledger: ledgerClient,
		sor:    sor,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *VerificationServiceImpl) digest(rec record.Record) (string, error) {
	selector, err := record.SelectorFor(rec.Kind())
	if err != nil {
		return "", err
	}
	return s.codec.Hash(rec, selector)
}

// Verify recomputes the digest of rec and asks the ledger whether it matches.
// False means drift or absence; use Inspect to tell the two apart.
func (s *VerificationServiceImpl) Verify(ctx context.Context, rec record.Record) (bool, error) {
	digest, err := s.digest(rec)
	if err != nil {
		return false, err
	}
	ok, err := s.ledger.Verify(ctx, rec.Kind(), rec.LedgerID(), digest)
	if err != nil {
		return false, fmt.Errorf("failed to verify %s %d on ledger: %w", rec.Kind(), rec.LedgerID(), err)
	}
	return ok, nil
}

// Inspect combines verify and read into a report with a VERIFIED, TAMPERED or NOT_SYNCED status
func (s *VerificationServiceImpl) Inspect(ctx context.Context, rec record.Record, trigger shared.AuditTrigger) (*integrity.Report, error) {
	kind, id := rec.Kind(), rec.LedgerID()
	log := logger.FromContext(ctx, s.logger).With("record_kind", string(kind), "record_id", id)

	digest, err := s.digest(rec)
	if err != nil {
		return nil, err
	}

	matches, err := s.ledger.Verify(ctx, kind, id, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to verify %s %d on ledger: %w", kind, id, err)
	}
	entry, err := s.ledger.Read(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %d from ledger: %w", kind, id, err)
	}
	if entry == nil {
		entry = &ledger.Entry{}
	}

	report := &integrity.Report{
		RecordKind:     kind,
		RecordID:       id,
		ComputedDigest: digest,
		ClaimedDigest:  rec.LedgerLinkage().DataHash,
		Trigger:        trigger,
		CorrelationID:  logger.CorrelationID(ctx),
		CheckedAt:      s.now(),
	}

	switch {
	case !entry.Exists:
		report.Status = shared.IntegrityStatusNotSynced
	case matches:
		report.Status = shared.IntegrityStatusVerified
	default:
		report.Status = shared.IntegrityStatusTampered
	}
	if entry.Exists {
		report.LedgerDigest = entry.DataHash
		report.SubmittedBy = entry.SubmittedBy
		if !entry.Timestamp.IsZero() {
			ts := entry.Timestamp
			report.LedgerTimestamp = &ts
		}
	}

	metrics.RecordVerification(string(kind), string(report.Status))
	if report.Status == shared.IntegrityStatusTampered {
		log.Warn("Record digest does not match ledger entry",
			"computed_digest", digest,
			"ledger_digest", entry.DataHash,
		)
	} else {
		log.Info("Record inspected", "status", string(report.Status))
	}
	return report, nil
}

// InspectByID loads the record from the system of record before inspecting it
func (s *VerificationServiceImpl) InspectByID(ctx context.Context, kind record.Kind, id int64, trigger shared.AuditTrigger) (*integrity.Report, error) {
	rec, err := s.sor.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return s.Inspect(ctx, rec, trigger)
}
