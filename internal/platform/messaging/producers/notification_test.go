package producers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-exchange-reconciler/internal/domain/notification"
)

// MockKafkaWriter mocks KafkaWriter
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNotificationProducer_Send(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("PublishesEventKeyedByUser", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := newNotificationProducer(newTestLogger(), writer, "notifications")
		producer.now = func() time.Time { return fixed }
		userID := uuid.New()

		var got []kafka.Message
		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).
			Run(func(args mock.Arguments) { got = args.Get(1).([]kafka.Message) }).
			Return(nil).Once()

		require.NoError(t, producer.Send(ctx, userID, "Your order is processing"))
		writer.AssertExpectations(t)

		require.Len(t, got, 1)
		assert.Equal(t, userID.String(), string(got[0].Key))

		var event notification.Event
		require.NoError(t, json.Unmarshal(got[0].Value, &event))
		assert.Equal(t, userID, event.UserID)
		assert.Equal(t, "Your order is processing", event.Text)
		assert.Equal(t, fixed, event.CreatedAt)
		assert.NotEqual(t, uuid.Nil, event.ID)
	})

	t.Run("EachSendGetsItsOwnID", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := newNotificationProducer(newTestLogger(), writer, "notifications")

		ids := map[uuid.UUID]bool{}
		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).
			Run(func(args mock.Arguments) {
				var event notification.Event
				require.NoError(t, json.Unmarshal(args.Get(1).([]kafka.Message)[0].Value, &event))
				ids[event.ID] = true
			}).
			Return(nil).Twice()

		userID := uuid.New()
		require.NoError(t, producer.Send(ctx, userID, "one"))
		require.NoError(t, producer.Send(ctx, userID, "two"))
		assert.Len(t, ids, 2)
	})

	t.Run("WriterError", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := newNotificationProducer(newTestLogger(), writer, "notifications")
		writeErr := errors.New("leader not available")
		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writeErr).Once()

		err := producer.Send(ctx, uuid.New(), "text")
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
	})
}

func TestNotificationProducer_Close(t *testing.T) {
	writer := new(MockKafkaWriter)
	producer := newNotificationProducer(newTestLogger(), writer, "notifications")
	closeErr := errors.New("close failed")
	writer.On("Close").Return(closeErr).Once()

	err := producer.Close()
	assert.ErrorIs(t, err, closeErr)
	writer.AssertExpectations(t)
}

type fakeAdmin struct {
	readErrs   []error
	partitions []kafka.Partition
	created    []kafka.TopicConfig
	createErr  error
	reads      int
}

func (f *fakeAdmin) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	f.reads++
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		return nil, err
	}
	return f.partitions, nil
}

func (f *fakeAdmin) CreateTopics(topics ...kafka.TopicConfig) error {
	f.created = append(f.created, topics...)
	return f.createErr
}

func TestEnsureTopic(t *testing.T) {
	t.Run("ExistingTopicIsLeftAlone", func(t *testing.T) {
		admin := &fakeAdmin{partitions: []kafka.Partition{{Topic: "t", ID: 0}}}
		require.NoError(t, ensureTopic(admin, "t", 3, 1, 0, newTestLogger()))
		assert.Empty(t, admin.created)
	})

	t.Run("RetriesReadsBeforeCreating", func(t *testing.T) {
		admin := &fakeAdmin{readErrs: []error{errors.New("not ready"), errors.New("not ready")}, partitions: []kafka.Partition{{Topic: "t"}}}
		require.NoError(t, ensureTopic(admin, "t", 3, 1, 0, newTestLogger()))
		assert.Equal(t, 3, admin.reads)
		assert.Empty(t, admin.created)
	})

	t.Run("CreatesMissingTopicWithDefaults", func(t *testing.T) {
		admin := &fakeAdmin{}
		require.NoError(t, ensureTopic(admin, "t", 0, 0, 0, newTestLogger()))
		require.Len(t, admin.created, 1)
		assert.Equal(t, kafka.TopicConfig{Topic: "t", NumPartitions: 1, ReplicationFactor: 1}, admin.created[0])
	})

	t.Run("CreateError", func(t *testing.T) {
		admin := &fakeAdmin{createErr: errors.New("not authorized")}
		err := ensureTopic(admin, "t", 2, 1, 0, newTestLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not authorized")
	})
}
