package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/api_gateway/middleware"
	"github.com/genluna-medchain/internal/domain/ledger"
)

// Response is the envelope of every gateway answer. Exactly one of Data and
// Error is set.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// ErrorInfo carries a stable code for clients. Advice is only set for ledger
// failures and tells the UI whether a retry makes sense.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Advice  string `json:"advice,omitempty"`
}

func respond(c *gin.Context, statusCode int, response Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithData sends data with an arbitrary status
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	respond(c, statusCode, Response{Data: data})
}

func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	respond(c, statusCode, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondAccepted is used when the record was saved but its ledger entry is missing
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "CONFLICT", message)
}

func RespondUnprocessable(c *gin.Context, code, message string) {
	RespondWithError(c, http.StatusUnprocessableEntity, code, message)
}

// RespondLedgerFailure reports a ledger call that failed after retries, with
// the guidance for the outcome
func RespondLedgerFailure(c *gin.Context, outcome ledger.Outcome) {
	info := &ErrorInfo{Code: outcome.Code, Message: outcome.Message}
	if outcome.Advice != ledger.AdviceNone {
		info.Advice = string(outcome.Advice)
	}
	respond(c, http.StatusBadGateway, Response{Error: info})
}

// RespondUpstreamUnavailable reports a system of record that could not be reached
func RespondUpstreamUnavailable(c *gin.Context) {
	RespondWithError(c, http.StatusBadGateway, "SYSTEM_OF_RECORD_UNAVAILABLE", "The system of record is unavailable")
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
