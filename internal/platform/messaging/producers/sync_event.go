package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/logger"
)

const correlationHeader = "correlation-id"

// SyncEventProducer publishes sync outcomes to the sync events topic
type SyncEventProducer struct {
	logger *slog.Logger
	writer topicWriter
	topic  string
}

// NewSyncEventProducer ensures the sync events topic exists and opens a synchronous writer
func NewSyncEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*SyncEventProducer, error) {
	if cfg.SyncEventsTopic == "" {
		return nil, fmt.Errorf("kafka sync events topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for sync event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.SyncEventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sync events topic %s exists: %w", cfg.SyncEventsTopic, err)
	}

	// Events for one record share a key, so the hash balancer keeps them ordered on one partition.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.SyncEventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &SyncEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.SyncEventsTopic,
	}, nil
}

// Publish writes value as JSON under key. The request correlation ID, if any, travels as a header.
func (p *SyncEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}
	if id := logger.CorrelationID(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: correlationHeader, Value: []byte(id)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish sync event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish sync event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published sync event", "topic", p.topic, "key", key)
	return nil
}

func (p *SyncEventProducer) Close() error {
	p.logger.Info("Closing sync event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close sync event writer for topic %s: %w", p.topic, err)
	}
	return nil
}
