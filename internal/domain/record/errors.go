package record

import (
	"fmt"
	"strconv"
)

// ErrRecordNotFound indicates the system of record has no such record
type ErrRecordNotFound struct {
	Kind Kind
	ID   int64
}

func (e ErrRecordNotFound) Error() string {
	return fmt.Sprintf("%s record not found: %d", e.Kind, e.ID)
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	// A zero target matches any ErrRecordNotFound
	if t.Kind == "" && t.ID == 0 {
		return true
	}
	return e.Kind == t.Kind && e.ID == t.ID
}

// PersistenceError indicates the system-of-record write failed
type PersistenceError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s record in system of record: %v", e.Op, e.Kind, e.Err)
}

func (e PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements the errors.Is interface for PersistenceError
func (e PersistenceError) Is(target error) bool {
	t, ok := target.(PersistenceError)
	if !ok {
		return false
	}
	return (t.Kind == "" || t.Kind == e.Kind) && (t.Op == "" || t.Op == e.Op)
}

// EncodingError indicates the domain fields cannot produce a digest
type EncodingError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e EncodingError) Error() string {
	return "cannot encode " + string(e.Kind) + " record: field " + strconv.Quote(e.Field) + " " + e.Reason
}

// Is implements the errors.Is interface for EncodingError
func (e EncodingError) Is(target error) bool {
	t, ok := target.(EncodingError)
	if !ok {
		return false
	}
	return (t.Kind == "" || t.Kind == e.Kind) && (t.Field == "" || t.Field == e.Field)
}
