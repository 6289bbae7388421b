package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/api_gateway/service"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/logger"
)

// LedgerHandler handles HTTP requests for the bare hash-ledger primitives
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// Hash computes the digest of a posted record without storing anything
func (h *LedgerHandler) Hash(c *gin.Context) {
	kind, ok := recordKind(c)
	if !ok {
		RespondNotFound(c, "Unknown record kind")
		return
	}

	rec, err := record.New(kind)
	if err != nil {
		RespondNotFound(c, "Unknown record kind")
		return
	}
	if err := c.ShouldBindJSON(rec); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	digest, err := h.ledgerService.Hash(rec)
	if err != nil {
		respondError(c, logger.FromContext(c.Request.Context(), h.logger), err)
		return
	}

	RespondOK(c, HashResponse{
		RecordKind: string(kind),
		RecordID:   rec.LedgerID(),
		DataHash:   digest,
	})
}

// Verify re-reads the record from the system of record and checks it against the ledger
func (h *LedgerHandler) Verify(c *gin.Context) {
	kind, id, ok := kindAndID(c)
	if !ok {
		return
	}

	report, err := h.ledgerService.Verify(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, logger.FromContext(c.Request.Context(), h.logger), err)
		return
	}
	RespondOK(c, mapReport(report))
}

// Read returns the ledger entry of a record; a missing entry is reported with exists=false
func (h *LedgerHandler) Read(c *gin.Context) {
	kind, id, ok := kindAndID(c)
	if !ok {
		return
	}

	entry, err := h.ledgerService.Read(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, logger.FromContext(c.Request.Context(), h.logger), err)
		return
	}
	RespondOK(c, mapEntry(kind, id, entry))
}

// Remove deletes the ledger entry of a record
func (h *LedgerHandler) Remove(c *gin.Context) {
	kind, id, ok := kindAndID(c)
	if !ok {
		return
	}

	receipt, err := h.ledgerService.Remove(c.Request.Context(), kind, id)
	if err != nil {
		respondError(c, logger.FromContext(c.Request.Context(), h.logger), err)
		return
	}
	RespondOK(c, mapReceipt(receipt))
}

// Count returns the number of live ledger entries of a kind
func (h *LedgerHandler) Count(c *gin.Context) {
	kind, ok := recordKind(c)
	if !ok {
		RespondNotFound(c, "Unknown record kind")
		return
	}
	RespondOK(c, CountResponse{
		RecordKind: string(kind),
		Count:      h.ledgerService.Count(c.Request.Context(), kind),
	})
}
