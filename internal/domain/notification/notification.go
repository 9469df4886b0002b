package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is the protocol phase that produced a notification
type Type string

const (
	TypeQuote        Type = "quote"
	TypeOrder        Type = "order"
	TypeStatusUpdate Type = "status-update"
	TypeClose        Type = "close"
)

// Notification records that a user-facing event was handled. ID is the remote
// message id that triggered it and doubles as the dedup key.
type Notification struct {
	ID            string          `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Type          Type            `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Event is a rendered message queued for delivery to a user
type Event struct {
	ID        uuid.UUID `json:"notification_id"`
	UserID    uuid.UUID `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines notification persistence operations
type Repository interface {
	// Insert fails with ErrDuplicateNotification when the id already exists
	Insert(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
}

// Publisher delivers rendered text to a user
type Publisher interface {
	Send(ctx context.Context, userID uuid.UUID, text string) error
}

// ErrNotificationNotFound indicates missing notification
type ErrNotificationNotFound struct {
	ID string
}

func (e ErrNotificationNotFound) Error() string {
	return "notification not found: " + e.ID
}

// Is implements the errors.Is interface for ErrNotificationNotFound
func (e ErrNotificationNotFound) Is(target error) bool {
	t, ok := target.(ErrNotificationNotFound)
	if !ok {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}

// ErrDuplicateNotification indicates the remote message was already recorded
type ErrDuplicateNotification struct {
	ID string
}

func (e ErrDuplicateNotification) Error() string {
	return "notification already recorded: " + e.ID
}

// Is implements the errors.Is interface for ErrDuplicateNotification
func (e ErrDuplicateNotification) Is(target error) bool {
	t, ok := target.(ErrDuplicateNotification)
	if !ok {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}
