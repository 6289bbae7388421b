package components

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/genluna-medchain/internal/domain/journal"
	"github.com/genluna-medchain/internal/domain/shared"
	"github.com/genluna-medchain/internal/ledger_sync/service"
	"github.com/genluna-medchain/internal/logger"
	"github.com/genluna-medchain/internal/platform/messaging/producers"
)

type OutcomeRecorderImpl struct {
	stateRepo journal.StateRepository
	publisher producers.SyncEventPublisher
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewOutcomeRecorder creates a recorder that journals the sync state and publishes the outcome.
// publisher and dlq may be nil when Kafka is not configured.
func NewOutcomeRecorder(
	stateRepo journal.StateRepository,
	publisher producers.SyncEventPublisher,
	dlq producers.DeadLetterPublisher,
	logger *slog.Logger,
) service.OutcomeRecorder {
	return &OutcomeRecorderImpl{
		stateRepo: stateRepo,
		publisher: publisher,
		dlq:       dlq,
		logger:    logger,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *OutcomeRecorderImpl) newEventID() (string, error) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), r.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate event id: %w", err)
	}
	return id.String(), nil
}

// RecordOutcome upserts the record's sync state, publishes the event and, for records that
// were saved but not ledgered, also sends the event to the dead letter topic.
func (r *OutcomeRecorderImpl) RecordOutcome(ctx context.Context, event *shared.SyncEvent) error {
	log := logger.FromContext(ctx, r.logger).With(
		"record_kind", string(event.RecordKind),
		"record_id", event.RecordID,
	)

	if event.EventID == "" {
		id, err := r.newEventID()
		if err != nil {
			return err
		}
		event.EventID = id
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var errs []error
	if err := r.stateRepo.Upsert(ctx, journal.StateFromEvent(event)); err != nil {
		log.Error("Failed to upsert sync state", "error", err)
		errs = append(errs, fmt.Errorf("failed to upsert sync state: %w", err))
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event.Key(), event); err != nil {
			log.Error("Failed to publish sync event", "event_id", event.EventID, "error", err)
			errs = append(errs, fmt.Errorf("failed to publish sync event: %w", err))
		}
	}

	if !event.Success && r.dlq != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			return errors.Join(append(errs, fmt.Errorf("failed to marshal sync event: %w", err))...)
		}
		reason := event.ErrorClass
		if reason == "" {
			reason = event.OutcomeCode
		}
		err = r.dlq.PublishToDLQ(ctx, event.Key(), payload, reason)
		switch {
		case errors.Is(err, producers.ErrDLQDisabled):
			log.Debug("DLQ disabled, unsynced record is only journaled")
		case err != nil:
			log.Error("Failed to publish unsynced record to DLQ", "event_id", event.EventID, "error", err)
			errs = append(errs, fmt.Errorf("failed to publish sync event to DLQ: %w", err))
		}
	}

	return errors.Join(errs...)
}
