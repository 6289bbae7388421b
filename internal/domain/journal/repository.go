package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/genluna-medchain/internal/domain/record"
)

// AttemptRepository persists TransactionAttempt history
type AttemptRepository interface {
	Create(ctx context.Context, attempt *AttemptRecord) error
	ListByRecord(ctx context.Context, kind record.Kind, recordID int64, limit int) ([]*AttemptRecord, error)
}

// StateRepository persists the latest sync state per record
type StateRepository interface {
	Upsert(ctx context.Context, state *State) error
	Get(ctx context.Context, kind record.Kind, recordID int64) (*State, error)
	ListStaleSynced(ctx context.Context, verifiedBefore time.Time, limit int) ([]*State, error)
	CountUnsynced(ctx context.Context) (int, error)
	MarkVerified(ctx context.Context, kind record.Kind, recordID int64, at time.Time) error
}

// ErrStateNotFound indicates no sync state is journaled for a record
type ErrStateNotFound struct {
	Kind record.Kind
	ID   int64
}

func (e ErrStateNotFound) Error() string {
	return fmt.Sprintf("sync state not found: %s %d", e.Kind, e.ID)
}

// Is implements the errors.Is interface for ErrStateNotFound
func (e ErrStateNotFound) Is(target error) bool {
	t, ok := target.(ErrStateNotFound)
	if !ok {
		return false
	}
	if t.Kind == "" && t.ID == 0 {
		return true
	}
	return e.Kind == t.Kind && e.ID == t.ID
}
