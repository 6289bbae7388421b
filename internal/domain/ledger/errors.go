package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the retry classification of a ledger failure
type Class string

const (
	ClassUserCancelled      Class = "USER_CANCELLED"
	ClassTransient          Class = "TRANSIENT"
	ClassPermanent          Class = "PERMANENT"
	ClassMissingReceiptHash Class = "MISSING_RECEIPT_HASH"
	ClassAlreadyExists      Class = "ALREADY_EXISTS"
)

// Retryable reports whether another attempt may succeed
func (c Class) Retryable() bool {
	return c == ClassTransient || c == ClassMissingReceiptHash
}

// Reason is the specific cause behind a classification
type Reason string

const (
	ReasonUserRejected      Reason = "USER_REJECTED"
	ReasonNetwork           Reason = "NETWORK"
	ReasonTimeout           Reason = "TIMEOUT"
	ReasonNodeInternal      Reason = "NODE_INTERNAL"
	ReasonRateLimited       Reason = "RATE_LIMITED"
	ReasonNonceTooLow       Reason = "NONCE_TOO_LOW"
	ReasonUnderpriced       Reason = "REPLACEMENT_UNDERPRICED"
	ReasonMissingReceipt    Reason = "MISSING_RECEIPT_HASH"
	ReasonAlreadyExists     Reason = "ALREADY_EXISTS"
	ReasonInsufficientFunds Reason = "INSUFFICIENT_FUNDS"
	ReasonUnauthorized      Reason = "UNAUTHORIZED"
	ReasonSignerUnavailable Reason = "SIGNER_UNAVAILABLE"
	ReasonReverted          Reason = "REVERTED"
	ReasonMalformed         Reason = "MALFORMED_CALL"
	ReasonUnknown           Reason = "UNKNOWN"
)

// Class maps the reason onto its retry class
func (r Reason) Class() Class {
	switch r {
	case ReasonUserRejected:
		return ClassUserCancelled
	case ReasonNetwork, ReasonTimeout, ReasonNodeInternal, ReasonRateLimited, ReasonNonceTooLow, ReasonUnderpriced:
		return ClassTransient
	case ReasonMissingReceipt:
		return ClassMissingReceiptHash
	case ReasonAlreadyExists:
		return ClassAlreadyExists
	default:
		return ClassPermanent
	}
}

var (
	// ErrSignerDisconnected is returned by a signer used outside its connect/disconnect window
	ErrSignerDisconnected = errors.New("signer is not connected")

	ErrUserCancelled      = &Error{Class: ClassUserCancelled}
	ErrTransient          = &Error{Class: ClassTransient}
	ErrPermanent          = &Error{Class: ClassPermanent}
	ErrMissingReceiptHash = &Error{Class: ClassMissingReceiptHash}
	ErrAlreadyExists      = &Error{Class: ClassAlreadyExists}
)

// Error is a classified ledger failure
type Error struct {
	Class     Class
	Reason    Reason
	Op        Op
	Method    string
	Transport string
	Attempts  int
	Err       error
}

// NewError classifies err under reason for the given call
func NewError(reason Reason, call Call, transport string, err error) *Error {
	return &Error{
		Class:     reason.Class(),
		Reason:    reason,
		Op:        call.Op,
		Method:    call.Method(),
		Transport: transport,
		Err:       err,
	}
}

// MissingReceipt reports a transport success that carried no usable transaction hash
func MissingReceipt(call Call, transport string) *Error {
	return NewError(ReasonMissingReceipt, call, transport, errors.New("transport reported success without a transaction hash"))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("ledger")
	if e.Method != "" {
		b.WriteString(" " + e.Method)
	}
	if e.Transport != "" {
		b.WriteString(" via " + e.Transport)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " failed after %d attempt(s)", e.Attempts)
	} else {
		b.WriteString(" failed")
	}
	fmt.Fprintf(&b, " [%s", e.Class)
	if e.Reason != "" && string(e.Reason) != string(e.Class) {
		b.WriteString("/" + string(e.Reason))
	}
	b.WriteString("]")
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on class and reason; empty fields in the target match anything
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return (t.Class == "" || t.Class == e.Class) && (t.Reason == "" || t.Reason == e.Reason)
}

// ClassOf returns the class of a ledger error, or empty if err is not one
func ClassOf(err error) Class {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Class
	}
	return ""
}
