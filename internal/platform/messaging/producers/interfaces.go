package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// SyncEventPublisher announces sync outcomes. Events of one record share a
// key and must reach consumers in publish order.
type SyncEventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher parks payloads that need operator attention: records
// saved without a ledger entry, and sync events the auditor could not decode.
// The original bytes are kept verbatim so they can be replayed.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// topicWriter is the part of *kafka.Writer the producers use
type topicWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ SyncEventPublisher  = (*SyncEventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
	_ topicWriter         = (*kafka.Writer)(nil)
)
