package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/domain/user"
	"github.com/go-exchange-reconciler/internal/platform/messaging/producers"
	"github.com/go-exchange-reconciler/internal/platform/sms"
)

// Dead letter reasons
const (
	ReasonUndecodable = "undecodable_payload"
	ReasonUnknownUser = "unknown_user"
	ReasonNoPhone     = "missing_phone_number"
	ReasonRejected    = "rejected_by_gateway"
)

// Sender delivers a text to a phone number
type Sender interface {
	Send(ctx context.Context, to, message string) (string, error)
}

// Recorder observes delivery outcomes
type Recorder interface {
	Delivered()
	DeadLettered(reason string)
}

// NotificationEventHandler delivers queued notification events as SMS.
// Messages that can never be delivered go to the DLQ and are committed;
// transient failures are returned so the consumer retries the message.
type NotificationEventHandler struct {
	users    user.Repository
	sender   Sender
	dlq      producers.DeadLetterPublisher
	recorder Recorder
	logger   *slog.Logger
}

func NewNotificationEventHandler(
	logger *slog.Logger,
	users user.Repository,
	sender Sender,
	dlq producers.DeadLetterPublisher,
	recorder Recorder,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		users:    users,
		sender:   sender,
		dlq:      dlq,
		recorder: recorder,
		logger:   logger.With("component", "notification_event_handler"),
	}
}

// HandleMessage implements consumers.MessageHandler
func (h *NotificationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event notification.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("Failed to unmarshal notification event", "error", err, "message_key", string(key))
		return h.deadLetter(ctx, key, value, ReasonUndecodable)
	}
	if event.UserID == uuid.Nil || event.Text == "" {
		h.logger.Error("Notification event is missing user or text", "message_key", string(key), "notification_id", event.ID.String())
		return h.deadLetter(ctx, key, value, ReasonUndecodable)
	}

	logger := h.logger.With("notification_id", event.ID.String(), "user_id", event.UserID.String())

	u, err := h.users.GetByID(ctx, event.UserID)
	if errors.Is(err, user.ErrUserNotFound{}) {
		logger.Warn("Notification addressed to unknown user")
		return h.deadLetter(ctx, key, value, ReasonUnknownUser)
	}
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", event.UserID, err)
	}
	if u.PhoneNumber == "" {
		logger.Warn("User has no phone number")
		return h.deadLetter(ctx, key, value, ReasonNoPhone)
	}

	messageID, err := h.sender.Send(ctx, u.PhoneNumber, event.Text)
	var rejected *sms.RejectedError
	if errors.As(err, &rejected) {
		logger.Warn("SMS gateway rejected notification", "status", rejected.Status, "code", rejected.Code)
		return h.deadLetter(ctx, key, value, ReasonRejected)
	}
	if err != nil {
		logger.Error("Failed to deliver notification, will retry", "error", err)
		return fmt.Errorf("failed to deliver notification %s: %w", event.ID, err)
	}

	if h.recorder != nil {
		h.recorder.Delivered()
	}
	logger.Info("Delivered notification", "message_id", messageID)
	return nil
}

// deadLetter returns nil once the message is parked so its offset is committed.
// With the DLQ disabled the message is dropped after logging.
func (h *NotificationEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string) error {
	err := h.dlq.PublishToDLQ(ctx, string(key), value, reason)
	if err != nil && !errors.Is(err, producers.ErrDLQDisabled) {
		return fmt.Errorf("failed to dead-letter message (%s): %w", reason, err)
	}
	if h.recorder != nil {
		h.recorder.DeadLettered(reason)
	}
	return nil
}
