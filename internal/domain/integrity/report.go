package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
)

// Report is the result of one integrity check of a record against the ledger
type Report struct {
	RecordKind      record.Kind            `json:"record_kind" bson:"record_kind"`
	RecordID        int64                  `json:"record_id" bson:"record_id"`
	Status          shared.IntegrityStatus `json:"status" bson:"status"`
	ComputedDigest  string                 `json:"computed_digest" bson:"computed_digest"`
	LedgerDigest    string                 `json:"ledger_digest,omitempty" bson:"ledger_digest,omitempty"`
	ClaimedDigest   string                 `json:"claimed_digest,omitempty" bson:"claimed_digest,omitempty"`
	SubmittedBy     string                 `json:"submitted_by,omitempty" bson:"submitted_by,omitempty"`
	LedgerTimestamp *time.Time             `json:"ledger_timestamp,omitempty" bson:"ledger_timestamp,omitempty"`
	Trigger         shared.AuditTrigger    `json:"trigger" bson:"trigger"`
	CorrelationID   string                 `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CheckedAt       time.Time              `json:"checked_at" bson:"checked_at"`
}

// Verified reports whether the ledger entry matches the recomputed digest
func (r *Report) Verified() bool {
	return r.Status == shared.IntegrityStatusVerified
}

// Repository stores integrity reports
type Repository interface {
	Save(ctx context.Context, report *Report) error
	Latest(ctx context.Context, kind record.Kind, recordID int64) (*Report, error)
	ListByStatus(ctx context.Context, status shared.IntegrityStatus, limit, offset int) ([]*Report, error)
	CountByStatus(ctx context.Context, status shared.IntegrityStatus) (int64, error)
}

// ErrReportNotFound indicates no report exists for a record
type ErrReportNotFound struct {
	Kind record.Kind
	ID   int64
}

func (e ErrReportNotFound) Error() string {
	return fmt.Sprintf("integrity report not found: %s %d", e.Kind, e.ID)
}

// Is implements the errors.Is interface for ErrReportNotFound
func (e ErrReportNotFound) Is(target error) bool {
	t, ok := target.(ErrReportNotFound)
	if !ok {
		return false
	}
	if t.Kind == "" && t.ID == 0 {
		return true
	}
	return e.Kind == t.Kind && e.ID == t.ID
}
