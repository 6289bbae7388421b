package chain

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/genluna-medchain/internal/domain/ledger"
)

// Provider and JSON-RPC error codes with a fixed meaning
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeExecutionReverted = 3
	codeLimitExceeded     = -32005
	codeResourceBusy      = -32002
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
	codeInternal          = -32603
	codeServerError       = -32000
)

// messagePatterns are matched in order against the lowercased error text; earlier entries
// win, so more specific revert reasons precede the generic ones.
var messagePatterns = []struct {
	reason   ledger.Reason
	patterns []string
}{
	{ledger.ReasonUserRejected, []string{"user rejected", "user denied", "rejected by user", "user cancelled", "user canceled", "action_rejected"}},
	{ledger.ReasonAlreadyExists, []string{"already exists", "already stored", "already recorded", "hash exists"}},
	{ledger.ReasonInsufficientFunds, []string{"insufficient funds", "insufficient balance"}},
	{ledger.ReasonNonceTooLow, []string{"nonce too low", "nonce has already been used", "nonce_expired"}},
	{ledger.ReasonUnderpriced, []string{"replacement transaction underpriced", "transaction underpriced", "replacement fee too low"}},
	{ledger.ReasonUnauthorized, []string{"accesscontrol", "missing role", "not authorized", "unauthorized", "caller is not", "permission denied", "forbidden"}},
	{ledger.ReasonRateLimited, []string{"rate limit", "too many requests"}},
	{ledger.ReasonTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ledger.ReasonNetwork, []string{"network error", "connection refused", "connection reset", "no such host", "unexpected eof", "could not detect network", "failed to fetch", "broken pipe"}},
	{ledger.ReasonNodeInternal, []string{"internal json-rpc error", "header not found", "server error"}},
	{ledger.ReasonReverted, []string{"execution reverted", "transaction reverted"}},
	{ledger.ReasonMalformed, []string{"invalid argument", "invalid params", "abi: ", "invalid digest", "invalid ledger id"}},
}

// Classify maps a transport error onto a ledger failure reason. Unambiguous signals
// (an existing classification, signer state, context errors, provider codes) come first.
// Generic codes such as -32603 wrap many causes, so message text is consulted before
// falling back to them and to HTTP status or net.Error.
func Classify(err error) ledger.Reason {
	if err == nil {
		return ""
	}

	var lerr *ledger.Error
	if errors.As(err, &lerr) && lerr.Reason != "" {
		return lerr.Reason
	}

	switch {
	case errors.Is(err, ledger.ErrSignerDisconnected):
		return ledger.ReasonSignerUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ledger.ReasonTimeout
	}

	code, hasCode := rpcErrorCode(err)
	if hasCode {
		switch code {
		case codeUserRejected:
			return ledger.ReasonUserRejected
		case codeUnauthorized:
			return ledger.ReasonUnauthorized
		case codeLimitExceeded:
			return ledger.ReasonRateLimited
		}
	}

	if reason := classifyMessage(err.Error()); reason != ledger.ReasonUnknown {
		return reason
	}

	if hasCode {
		switch code {
		case codeInternal, codeServerError, codeResourceBusy:
			return ledger.ReasonNodeInternal
		case codeMethodNotFound, codeInvalidParams:
			return ledger.ReasonMalformed
		case codeExecutionReverted:
			return ledger.ReasonReverted
		}
	}

	if status, ok := httpStatus(err); ok {
		switch status {
		case http.StatusTooManyRequests:
			return ledger.ReasonRateLimited
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ledger.ReasonTimeout
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return ledger.ReasonNodeInternal
		case http.StatusUnauthorized, http.StatusForbidden:
			return ledger.ReasonUnauthorized
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return ledger.ReasonMalformed
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ledger.ReasonTimeout
		}
		return ledger.ReasonNetwork
	}

	return ledger.ReasonUnknown
}

func classifyMessage(msg string) ledger.Reason {
	msg = strings.ToLower(msg)
	for _, group := range messagePatterns {
		for _, p := range group.patterns {
			if strings.Contains(msg, p) {
				return group.reason
			}
		}
	}
	return ledger.ReasonUnknown
}

func rpcErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() != 0 {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

func httpStatus(err error) (int, bool) {
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus(), true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
