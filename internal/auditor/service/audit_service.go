package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/record"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
)

type AuditServiceImpl struct {
	verifier ledgersync.VerificationService
	reports  integrity.Repository
	states   journal.StateRepository
	logger   *slog.Logger
}

func NewAuditService(
	verifier ledgersync.VerificationService,
	reports integrity.Repository,
	states journal.StateRepository,
	logger *slog.Logger,
) AuditService {
	return &AuditServiceImpl{
		verifier: verifier,
		reports:  reports,
		states:   states,
		logger:   logger,
	}
}

// Audit re-reads the record from the system of record, inspects it against the ledger and
// stores the report. The journal's last-verified time is stamped on a best-effort basis.
func (s *AuditServiceImpl) Audit(ctx context.Context, request *AuditRequest) (*integrity.Report, error) {
	if request.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, request.CorrelationID)
	}
	log := logger.FromContext(ctx, s.logger).With(
		"record_kind", string(request.RecordKind),
		"record_id", request.RecordID,
		"trigger", string(request.Trigger),
	)

	report, err := s.verifier.InspectByID(ctx, request.RecordKind, request.RecordID, request.Trigger)
	if err != nil {
		if errors.Is(err, record.ErrRecordNotFound{}) {
			log.Warn("Record no longer exists, skipping audit")
			return nil, ErrRecordGone
		}
		log.Error("Failed to inspect record", "error", err)
		return nil, fmt.Errorf("failed to inspect %s: %w", request.Key(), err)
	}

	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store integrity report for %s: %w", request.Key(), err)
	}

	if err := s.states.MarkVerified(ctx, request.RecordKind, request.RecordID, report.CheckedAt); err != nil {
		if errors.Is(err, journal.ErrStateNotFound{}) {
			log.Debug("Audited record has no journaled sync state")
		} else {
			log.Warn("Failed to stamp last verification time", "error", err)
		}
	}

	if !report.Verified() {
		log.Warn("Integrity audit found a problem",
			"status", string(report.Status),
			"computed_digest", report.ComputedDigest,
			"ledger_digest", report.LedgerDigest,
		)
	}
	return report, nil
}
