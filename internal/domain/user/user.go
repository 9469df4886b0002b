package user

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is the owner of transactions and the recipient of notifications
type User struct {
	ID          uuid.UUID       `json:"id"`
	DID         json.RawMessage `json:"did"` // Portable DID document as stored at signup
	PhoneNumber string          `json:"phone_number"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Repository defines user lookups
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*User, error)
}

// ErrUserNotFound indicates missing user
type ErrUserNotFound struct {
	ID          uuid.UUID
	PhoneNumber string
}

func (e ErrUserNotFound) Error() string {
	if e.PhoneNumber != "" {
		return "user not found for phone number: " + e.PhoneNumber
	}
	return "user not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrUserNotFound
func (e ErrUserNotFound) Is(target error) bool {
	_, ok := target.(ErrUserNotFound)
	return ok
}
