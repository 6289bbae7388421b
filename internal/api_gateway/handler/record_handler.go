package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/api_gateway/service"
	"github.com/genluna-medchain/internal/domain/record"
	ledgersync "github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
)

// RecordHandler handles HTTP requests that write records and sync them to the ledger
type RecordHandler struct {
	syncService service.SyncService
	logger      *slog.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(logger *slog.Logger, syncService service.SyncService) *RecordHandler {
	return &RecordHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// Create saves a record and records its digest on the ledger.
// Answers 201 when both writes succeed and 202 when the record was saved but not ledgered.
func (h *RecordHandler) Create(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	kind, ok := recordKind(c)
	if !ok {
		RespondNotFound(c, "Unknown record kind")
		return
	}

	var rec record.Record
	switch kind {
	case record.KindStock:
		var req CreateStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warn("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
		rec = req.toRecord()
	case record.KindRemoval:
		var req CreateRemovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warn("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
		rec = req.toRecord()
	default:
		RespondNotFound(c, "Unknown record kind")
		return
	}

	result, err := h.syncService.CreateRecord(c.Request.Context(), rec)
	h.respondSync(c, log, http.StatusCreated, result, err)
}

// Resync records the digest of the record as currently stored. Answers 409 while another
// sync of the same record is running.
func (h *RecordHandler) Resync(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	kind, id, ok := kindAndID(c)
	if !ok {
		return
	}

	result, err := h.syncService.ResyncRecord(c.Request.Context(), kind, id)
	h.respondSync(c, log, http.StatusOK, result, err)
}

// Attempts lists the journaled ledger attempts of a record, newest first
func (h *RecordHandler) Attempts(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	kind, id, ok := kindAndID(c)
	if !ok {
		return
	}

	var params AttemptListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	attempts, err := h.syncService.ListAttempts(c.Request.Context(), kind, id, params.Limit)
	if err != nil {
		log.Error("Failed to list ledger attempts", "record_kind", string(kind), "record_id", id, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, AttemptListResponse{
		RecordKind: string(kind),
		RecordID:   id,
		Attempts:   mapAttempts(attempts),
	})
}

// respondSync answers with the sync result whenever the record was persisted, so the UI can
// show the saved record alongside the ledger guidance
func (h *RecordHandler) respondSync(c *gin.Context, log *slog.Logger, okStatus int, result *ledgersync.SyncResult, err error) {
	switch {
	case result != nil && err == nil:
		RespondWithData(c, okStatus, mapSyncResult(result))
	case result != nil:
		RespondAccepted(c, mapSyncResult(result))
	default:
		respondError(c, log, err)
	}
}

// kindAndID reads the bound kind and the :id parameter, answering 404/400 when either is invalid
func kindAndID(c *gin.Context) (record.Kind, int64, bool) {
	kind, ok := recordKind(c)
	if !ok {
		RespondNotFound(c, "Unknown record kind")
		return "", 0, false
	}
	id, ok := recordID(c)
	if !ok {
		RespondBadRequest(c, "Invalid record ID")
		return "", 0, false
	}
	return kind, id, true
}
