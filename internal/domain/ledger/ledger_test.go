package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/genluna-medchain/internal/domain/record"
	"github.com/stretchr/testify/assert"
)

func TestMethodName(t *testing.T) {
	tests := []struct {
		op       Op
		kind     record.Kind
		expected string
	}{
		{OpStore, record.KindStock, "storeStockHash"},
		{OpUpdate, record.KindStock, "updateStockHash"},
		{OpDelete, record.KindStock, "deleteStockHash"},
		{OpGet, record.KindStock, "getStockHash"},
		{OpVerify, record.KindStock, "verifyStockHash"},
		{OpCount, record.KindStock, "getStockCount"},
		{OpStore, record.KindRemoval, "storeRemovalHash"},
		{OpUpdate, record.KindRemoval, "updateRemovalHash"},
		{OpDelete, record.KindRemoval, "deleteRemovalHash"},
		{OpGet, record.KindRemoval, "getRemovalHash"},
		{OpVerify, record.KindRemoval, "verifyRemovalHash"},
		{OpCount, record.KindRemoval, "getRemovalCount"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, MethodName(tt.op, tt.kind))
		})
	}
	assert.True(t, OpStore.Mutating())
	assert.False(t, OpVerify.Mutating())
}

func TestReason_Class(t *testing.T) {
	assert.Equal(t, ClassUserCancelled, ReasonUserRejected.Class())
	assert.Equal(t, ClassTransient, ReasonNonceTooLow.Class())
	assert.Equal(t, ClassTransient, ReasonUnderpriced.Class())
	assert.Equal(t, ClassTransient, ReasonNodeInternal.Class())
	assert.Equal(t, ClassMissingReceiptHash, ReasonMissingReceipt.Class())
	assert.Equal(t, ClassAlreadyExists, ReasonAlreadyExists.Class())
	assert.Equal(t, ClassPermanent, ReasonInsufficientFunds.Class())
	assert.Equal(t, ClassPermanent, ReasonUnauthorized.Class())
	assert.Equal(t, ClassPermanent, ReasonUnknown.Class())

	assert.True(t, ClassTransient.Retryable())
	assert.True(t, ClassMissingReceiptHash.Retryable())
	assert.False(t, ClassPermanent.Retryable())
	assert.False(t, ClassUserCancelled.Retryable())
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("nonce too low")
	call := Call{Op: OpStore, Kind: record.KindRemoval, ID: 42, Digest: "0x01"}
	err := NewError(ReasonNonceTooLow, call, "relayer", cause)

	wrapped := fmt.Errorf("failed to sync removal 42: %w", err)
	assert.ErrorIs(t, wrapped, ErrTransient)
	assert.ErrorIs(t, wrapped, &Error{Reason: ReasonNonceTooLow})
	assert.NotErrorIs(t, wrapped, ErrPermanent)
	assert.NotErrorIs(t, wrapped, ErrUserCancelled)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ClassTransient, ClassOf(wrapped))
	assert.Equal(t, Class(""), ClassOf(context.Canceled))

	assert.Contains(t, err.Error(), "storeRemovalHash")
	assert.Contains(t, err.Error(), "TRANSIENT/NONCE_TOO_LOW")
	assert.Contains(t, ErrPermanent.Error(), "PERMANENT")
}

func TestMissingReceipt(t *testing.T) {
	err := MissingReceipt(Call{Op: OpUpdate, Kind: record.KindStock, ID: 1}, "relayer")
	assert.ErrorIs(t, err, ErrMissingReceiptHash)
	assert.True(t, err.Class.Retryable())
}

func TestGuidance(t *testing.T) {
	call := Call{Op: OpStore, Kind: record.KindStock, ID: 1}
	tests := []struct {
		name   string
		err    error
		code   string
		advice Advice
	}{
		{"nil error is synced", nil, "SYNCED", AdviceNone},
		{"user rejected", NewError(ReasonUserRejected, call, "relayer", nil), "CANCELLED", AdviceRetryNow},
		{"network", NewError(ReasonNetwork, call, "rpc-binding", nil), "NETWORK_CONGESTION", AdviceTryLater},
		{"underpriced", NewError(ReasonUnderpriced, call, "rpc-binding", nil), "NETWORK_CONGESTION", AdviceTryLater},
		{"insufficient funds", NewError(ReasonInsufficientFunds, call, "rpc-binding", nil), "INSUFFICIENT_FUNDS", AdviceContactAdmin},
		{"unauthorized", NewError(ReasonUnauthorized, call, "relayer", nil), "PERMISSION_DENIED", AdviceContactAdmin},
		{"already exists", NewError(ReasonAlreadyExists, call, "relayer", nil), "ALREADY_RECORDED", AdviceNone},
		{"missing receipt", MissingReceipt(call, "relayer"), "MISSING_RECEIPT", AdviceTryLater},
		{"signer", NewError(ReasonSignerUnavailable, call, "relayer", ErrSignerDisconnected), "SIGNER_UNAVAILABLE", AdviceContactAdmin},
		{"revert", NewError(ReasonReverted, call, "rpc-binding", nil), "LEDGER_REJECTED", AdviceContactAdmin},
		{"class only", &Error{Class: ClassTransient}, "NETWORK_CONGESTION", AdviceTryLater},
		{"plain error", errors.New("boom"), "UNKNOWN", AdviceTryLater},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Guidance(tt.err)
			assert.Equal(t, tt.code, out.Code)
			assert.Equal(t, tt.advice, out.Advice)
			assert.NotEmpty(t, out.Message)
		})
	}
}
