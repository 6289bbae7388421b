package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/genluna-medchain/internal/domain/integrity"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/domain/shared"
)

// ErrRecordGone is returned when the record to audit no longer exists in the system of record
var ErrRecordGone = errors.New("record no longer exists in the system of record")

// AuditRequest asks for one record to be re-verified against the ledger
type AuditRequest struct {
	RecordKind    record.Kind
	RecordID      int64
	Trigger       shared.AuditTrigger
	CorrelationID string
}

// Key identifies the audited record
func (r *AuditRequest) Key() string {
	return string(r.RecordKind) + ":" + strconv.FormatInt(r.RecordID, 10)
}

// AuditService verifies one record and stores the resulting integrity report
type AuditService interface {
	Audit(ctx context.Context, request *AuditRequest) (*integrity.Report, error)
}
