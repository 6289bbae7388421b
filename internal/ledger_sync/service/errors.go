package service

import (
	"fmt"

	"github.com/genluna-medchain/internal/domain/record"
)

// ErrSyncInProgress is returned when a sync for the same record is already running
type ErrSyncInProgress struct {
	Kind record.Kind
	ID   int64
}

func (e ErrSyncInProgress) Error() string {
	return fmt.Sprintf("ledger sync already in progress for %s %d", e.Kind, e.ID)
}

// Is implements the errors.Is interface for ErrSyncInProgress
func (e ErrSyncInProgress) Is(target error) bool {
	t, ok := target.(ErrSyncInProgress)
	if !ok {
		return false
	}
	if t.Kind == "" && t.ID == 0 {
		return true
	}
	return e.Kind == t.Kind && e.ID == t.ID
}
