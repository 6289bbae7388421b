package ledger

import "errors"

// Advice tells the UI what the user can do next
type Advice string

const (
	AdviceNone         Advice = "NONE"
	AdviceRetryNow     Advice = "RETRY_NOW"
	AdviceTryLater     Advice = "TRY_LATER"
	AdviceContactAdmin Advice = "CONTACT_ADMIN"
)

// Outcome is the human-readable classification of a terminal ledger result
type Outcome struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Advice  Advice `json:"advice"`
}

var (
	outcomeCancelled = Outcome{
		Code:    "CANCELLED",
		Message: "The transaction was rejected in the signer. The record was saved but is not on the ledger yet.",
		Advice:  AdviceRetryNow,
	}
	outcomeCongestion = Outcome{
		Code:    "NETWORK_CONGESTION",
		Message: "The ledger network is busy or unreachable. The record was saved and can be synced later.",
		Advice:  AdviceTryLater,
	}
	outcomeInsufficientFunds = Outcome{
		Code:    "INSUFFICIENT_FUNDS",
		Message: "The signing account does not have enough funds to pay for gas.",
		Advice:  AdviceContactAdmin,
	}
	outcomePermissionDenied = Outcome{
		Code:    "PERMISSION_DENIED",
		Message: "The signing account is not allowed to write to the ledger contract.",
		Advice:  AdviceContactAdmin,
	}
	outcomeAlreadyRecorded = Outcome{
		Code:    "ALREADY_RECORDED",
		Message: "This record is already recorded on the ledger.",
		Advice:  AdviceNone,
	}
	outcomeMissingReceipt = Outcome{
		Code:    "MISSING_RECEIPT",
		Message: "The ledger accepted the request but returned no transaction hash.",
		Advice:  AdviceTryLater,
	}
	outcomeSignerUnavailable = Outcome{
		Code:    "SIGNER_UNAVAILABLE",
		Message: "No signer is connected for ledger writes.",
		Advice:  AdviceContactAdmin,
	}
	outcomeRejected = Outcome{
		Code:    "LEDGER_REJECTED",
		Message: "The ledger contract rejected the transaction.",
		Advice:  AdviceContactAdmin,
	}
	outcomeUnknown = Outcome{
		Code:    "UNKNOWN",
		Message: "The ledger write failed for an unknown reason.",
		Advice:  AdviceTryLater,
	}
	outcomeSynced = Outcome{
		Code:    "SYNCED",
		Message: "Record saved and its hash recorded on the ledger.",
		Advice:  AdviceNone,
	}
)

// Synced is the outcome of a fully successful dual write
func Synced() Outcome {
	return outcomeSynced
}

// Guidance turns a terminal ledger error into UI guidance
func Guidance(err error) Outcome {
	if err == nil {
		return outcomeSynced
	}
	var lerr *Error
	if !errors.As(err, &lerr) {
		return outcomeUnknown
	}
	switch lerr.Reason {
	case ReasonUserRejected:
		return outcomeCancelled
	case ReasonNetwork, ReasonTimeout, ReasonNodeInternal, ReasonRateLimited, ReasonNonceTooLow, ReasonUnderpriced:
		return outcomeCongestion
	case ReasonInsufficientFunds:
		return outcomeInsufficientFunds
	case ReasonUnauthorized:
		return outcomePermissionDenied
	case ReasonAlreadyExists:
		return outcomeAlreadyRecorded
	case ReasonMissingReceipt:
		return outcomeMissingReceipt
	case ReasonSignerUnavailable:
		return outcomeSignerUnavailable
	case ReasonReverted, ReasonMalformed:
		return outcomeRejected
	}
	switch lerr.Class {
	case ClassUserCancelled:
		return outcomeCancelled
	case ClassTransient:
		return outcomeCongestion
	case ClassMissingReceiptHash:
		return outcomeMissingReceipt
	case ClassAlreadyExists:
		return outcomeAlreadyRecorded
	}
	return outcomeUnknown
}
