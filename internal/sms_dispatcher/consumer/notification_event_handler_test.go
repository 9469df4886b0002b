package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/domain/user"
	"github.com/go-exchange-reconciler/internal/platform/messaging/producers"
	"github.com/go-exchange-reconciler/internal/platform/sms"
	"github.com/go-exchange-reconciler/internal/testutil"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, to, message string) (string, error) {
	args := m.Called(ctx, to, message)
	return args.String(0), args.Error(1)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type outcomeRecorder struct {
	delivered    int
	deadLettered []string
}

func (r *outcomeRecorder) Delivered()                 { r.delivered++ }
func (r *outcomeRecorder) DeadLettered(reason string) { r.deadLettered = append(r.deadLettered, reason) }

type handlerFixture struct {
	handler  *NotificationEventHandler
	sender   *MockSender
	dlq      *MockDeadLetterPublisher
	recorder *outcomeRecorder
	user     *user.User
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	u := &user.User{ID: uuid.New(), PhoneNumber: "+233200000000", CreatedAt: time.Now()}
	f := &handlerFixture{
		sender:   new(MockSender),
		dlq:      new(MockDeadLetterPublisher),
		recorder: &outcomeRecorder{},
		user:     u,
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f.handler = NewNotificationEventHandler(logger, testutil.NewUsers(u), f.sender, f.dlq, f.recorder)
	return f
}

func eventFor(t *testing.T, userID uuid.UUID, text string) []byte {
	t.Helper()
	raw, err := json.Marshal(notification.Event{ID: uuid.New(), UserID: userID, Text: text, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	return raw
}

func TestHandleMessage_Delivers(t *testing.T) {
	f := newHandlerFixture(t)
	f.sender.On("Send", mock.Anything, "+233200000000", "Your order is complete").Return("ATXid_1", nil).Once()

	err := f.handler.HandleMessage(context.Background(), []byte(f.user.ID.String()), eventFor(t, f.user.ID, "Your order is complete"))
	require.NoError(t, err)
	f.sender.AssertExpectations(t)
	f.dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.recorder.delivered)
}

func TestHandleMessage_DeadLetters(t *testing.T) {
	tests := []struct {
		name   string
		value  func(f *handlerFixture) []byte
		setup  func(f *handlerFixture)
		reason string
	}{
		{
			name:   "undecodable payload",
			value:  func(*handlerFixture) []byte { return []byte("{not json") },
			reason: ReasonUndecodable,
		},
		{
			name:   "missing text",
			value:  func(f *handlerFixture) []byte { return eventFor(t, f.user.ID, "") },
			reason: ReasonUndecodable,
		},
		{
			name:   "unknown user",
			value:  func(*handlerFixture) []byte { return eventFor(t, uuid.New(), "hello") },
			reason: ReasonUnknownUser,
		},
		{
			name: "no phone number",
			value: func(f *handlerFixture) []byte {
				f.handler.users = testutil.NewUsers(&user.User{ID: f.user.ID})
				return eventFor(t, f.user.ID, "hello")
			},
			reason: ReasonNoPhone,
		},
		{
			name:  "rejected by gateway",
			value: func(f *handlerFixture) []byte { return eventFor(t, f.user.ID, "hello") },
			setup: func(f *handlerFixture) {
				f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
					Return("", &sms.RejectedError{To: "+233200000000", Status: "InvalidPhoneNumber", Code: 403}).Once()
			},
			reason: ReasonRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			value := tt.value(f)
			f.dlq.On("PublishToDLQ", mock.Anything, "key", value, tt.reason).Return(nil).Once()

			err := f.handler.HandleMessage(context.Background(), []byte("key"), value)
			require.NoError(t, err, "dead-lettered messages are committed")
			f.dlq.AssertExpectations(t)
			assert.Equal(t, []string{tt.reason}, f.recorder.deadLettered)
			assert.Zero(t, f.recorder.delivered)
		})
	}
}

func TestHandleMessage_GatewayFailureIsRetried(t *testing.T) {
	f := newHandlerFixture(t)
	gatewayErr := &sms.StatusError{Code: 503, Body: "unavailable"}
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("", gatewayErr).Once()

	err := f.handler.HandleMessage(context.Background(), []byte("key"), eventFor(t, f.user.ID, "hello"))
	require.Error(t, err)
	var status *sms.StatusError
	assert.True(t, errors.As(err, &status))
	f.dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.recorder.delivered)
}

func TestHandleMessage_DLQFailureKeepsOffset(t *testing.T) {
	f := newHandlerFixture(t)
	f.dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, ReasonUndecodable).Return(errors.New("broker down")).Once()

	err := f.handler.HandleMessage(context.Background(), []byte("key"), []byte("garbage"))
	require.Error(t, err)
	assert.Empty(t, f.recorder.deadLettered)
}

func TestHandleMessage_DLQDisabledDrops(t *testing.T) {
	f := newHandlerFixture(t)
	f.dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, ReasonUndecodable).Return(producers.ErrDLQDisabled).Once()

	err := f.handler.HandleMessage(context.Background(), []byte("key"), []byte("garbage"))
	require.NoError(t, err)
	assert.Equal(t, []string{ReasonUndecodable}, f.recorder.deadLettered)
}

func TestHandleMessage_UserStoreErrorIsRetried(t *testing.T) {
	f := newHandlerFixture(t)
	users := &failingUsers{err: errors.New("connection reset")}
	f.handler.users = users

	err := f.handler.HandleMessage(context.Background(), []byte("key"), eventFor(t, f.user.ID, "hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, users.err)
}

type failingUsers struct {
	err error
}

func (u *failingUsers) GetByID(context.Context, uuid.UUID) (*user.User, error) { return nil, u.err }
func (u *failingUsers) GetByPhoneNumber(context.Context, string) (*user.User, error) {
	return nil, u.err
}
