package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/genluna-medchain/internal/auditor/service"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/messaging/producers"
)

const unreadableEventReason = "UNREADABLE_SYNC_EVENT"

// SyncEventHandler audits records as soon as their sync outcome is published
type SyncEventHandler struct {
	auditService service.AuditService
	producer     producers.DeadLetterPublisher
	logger       *slog.Logger
}

func NewSyncEventHandler(
	logger *slog.Logger,
	auditService service.AuditService,
	producer producers.DeadLetterPublisher,
) *SyncEventHandler {
	return &SyncEventHandler{
		auditService: auditService,
		producer:     producer,
		logger:       logger,
	}
}

// HandleMessage audits successfully synced records. Failed syncs are already parked on the
// DLQ by the gateway and are acknowledged without work.
func (h *SyncEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.SyncEvent
	if err := json.Unmarshal(value, &event); err != nil || event.RecordKind == "" || event.RecordID <= 0 {
		if err == nil {
			err = errors.New("event does not name a record")
		}
		return h.deadLetter(ctx, key, value, err)
	}

	if event.CorrelationID != "" && logger.CorrelationID(ctx) == "" {
		ctx = logger.ContextWithCorrelationID(ctx, event.CorrelationID)
	}
	log := logger.FromContext(ctx, h.logger).With(
		"event_id", event.EventID,
		"record_kind", string(event.RecordKind),
		"record_id", event.RecordID,
	)

	if !event.Success {
		log.Debug("Skipping audit of unsynced record", "status", string(event.Status))
		return nil
	}

	report, err := h.auditService.Audit(ctx, &service.AuditRequest{
		RecordKind:    event.RecordKind,
		RecordID:      event.RecordID,
		Trigger:       shared.AuditTriggerEvent,
		CorrelationID: logger.CorrelationID(ctx),
	})
	switch {
	case errors.Is(err, service.ErrRecordGone), errors.Is(err, service.ErrAuditInProgress{}):
		log.Info("Audit not needed", "reason", err.Error())
		return nil
	case err != nil:
		return fmt.Errorf("audit of %s failed: %w", event.Key(), err)
	}

	log.Info("Audited synced record", "status", string(report.Status))
	return nil
}

func (h *SyncEventHandler) deadLetter(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Failed to read sync event from Kafka message", "message_key", string(key), "error", cause)
	if h.producer == nil {
		return fmt.Errorf("failed to read sync event: %w", cause)
	}
	if err := h.producer.PublishToDLQ(ctx, string(key), value, unreadableEventReason); err != nil {
		h.logger.Error("Failed to publish unreadable sync event to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("failed to read sync event: %w", cause)
	}
	return nil
}
