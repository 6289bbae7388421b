package consumers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/logger"
)

// MockKafkaReader for testing
type MockKafkaReader struct {
	mock.Mock
}

func (m *MockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *MockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaReader) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewKafkaConsumer(t *testing.T) {
	cfg := &config.KafkaConfig{
		Brokers:         "localhost:9092",
		SyncEventsTopic: "ledger_sync_events",
		ConsumerGroup:   "integrity_auditor",
		MinBytes:        1024,
		MaxBytes:        10240,
		MaxWait:         time.Second,
	}

	consumer := NewKafkaConsumer(context.Background(), newTestLogger(), cfg)
	require.NotNil(t, consumer)
	require.NotNil(t, consumer.reader)
	assert.Equal(t, "ledger_sync_events", consumer.topic)
	assert.Equal(t, "integrity_auditor", consumer.groupID)
	assert.NoError(t, consumer.Close())
}

func TestKafkaConsumer_Subscribe(t *testing.T) {
	msg := kafka.Message{
		Topic:   "ledger_sync_events",
		Key:     []byte("removal:42"),
		Value:   []byte(`{"success":true}`),
		Headers: []kafka.Header{{Key: "correlation-id", Value: []byte("corr-5")}},
	}

	t.Run("commits after the handler succeeds", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reader := new(MockKafkaReader)
		committed := make(chan struct{})
		reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()
		reader.On("FetchMessage", mock.Anything).Return(kafka.Message{}, context.Canceled).Maybe()
		reader.On("CommitMessages", mock.Anything, []kafka.Message{msg}).
			Run(func(mock.Arguments) { close(committed) }).
			Return(nil).Once()

		var gotKey, gotCorrelation string
		handler := func(hctx context.Context, key, value []byte) error {
			gotKey = string(key)
			gotCorrelation = logger.CorrelationID(hctx)
			cancel()
			return nil
		}

		consumer := &KafkaConsumer{reader: reader, logger: newTestLogger(), topic: "ledger_sync_events"}
		require.NoError(t, consumer.Subscribe(ctx, handler))

		select {
		case <-committed:
		case <-time.After(2 * time.Second):
			t.Fatal("message was not committed")
		}
		assert.Equal(t, "removal:42", gotKey)
		assert.Equal(t, "corr-5", gotCorrelation)
	})

	t.Run("handler failure leaves the offset uncommitted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reader := new(MockKafkaReader)
		handled := make(chan struct{})
		reader.On("FetchMessage", mock.Anything).Return(msg, nil).Once()
		reader.On("FetchMessage", mock.Anything).
			Run(func(mock.Arguments) { <-ctx.Done() }).
			Return(kafka.Message{}, context.Canceled).Maybe()

		handler := func(context.Context, []byte, []byte) error {
			close(handled)
			return errors.New("record unreadable")
		}

		consumer := &KafkaConsumer{reader: reader, logger: newTestLogger(), topic: "ledger_sync_events"}
		require.NoError(t, consumer.Subscribe(ctx, handler))

		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not called")
		}
		cancel()
		reader.AssertNotCalled(t, "CommitMessages", mock.Anything, mock.Anything)
	})
}

func TestKafkaConsumer_Close(t *testing.T) {
	t.Run("nil reader", func(t *testing.T) {
		consumer := &KafkaConsumer{logger: newTestLogger()}
		require.NoError(t, consumer.Close())
	})

	t.Run("closes reader", func(t *testing.T) {
		reader := new(MockKafkaReader)
		reader.On("Close").Return(nil).Once()
		consumer := &KafkaConsumer{reader: reader, logger: newTestLogger()}
		require.NoError(t, consumer.Close())
		reader.AssertExpectations(t)
	})
}
