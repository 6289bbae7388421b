package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/domain/ledger"
	"github.com/genluna-medchain/internal/domain/record"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/platform/sor"
)

// respondError maps a failure with nothing to show the user onto an HTTP error
func respondError(c *gin.Context, log *slog.Logger, err error) {
	var (
		statusErr *sor.StatusError
		encErr    record.EncodingError
		ledgerErr *ledger.Error
	)

	switch {
	case errors.Is(err, ledgersync.ErrSyncInProgress{}):
		RespondConflict(c, "A ledger sync for this record is already in progress")

	case errors.Is(err, record.ErrRecordNotFound{}):
		RespondNotFound(c, "Record not found")

	case errors.As(err, &encErr):
		RespondUnprocessable(c, "ENCODING_ERROR", encErr.Error())

	case errors.As(err, &ledgerErr):
		outcome := ledger.Guidance(err)
		log.Error("Ledger call failed", "error_class", string(ledgerErr.Class), "error", err)
		RespondLedgerFailure(c, outcome)

	case errors.As(err, &statusErr) && statusErr.StatusCode >= http.StatusBadRequest && statusErr.StatusCode < http.StatusInternalServerError:
		log.Warn("System of record rejected the request", "status", statusErr.StatusCode, "body", statusErr.Body)
		RespondUnprocessable(c, "REJECTED_BY_SYSTEM_OF_RECORD", statusErr.Body)

	case errors.Is(err, record.PersistenceError{}), statusErr != nil:
		log.Error("System of record call failed", "error", err)
		RespondUpstreamUnavailable(c)

	default:
		log.Error("Request failed", "error", err)
		RespondInternalError(c)
	}
}
