package transaction

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines transaction persistence operations
type Repository interface {
	// ListNonTerminal returns every transaction that is neither cancelled nor complete,
	// oldest first
	ListNonTerminal(ctx context.Context) ([]*Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Transaction, error)
	GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*Transaction, error)
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	ID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// A zero ID in the target matches any missing transaction
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrInvalidTransition indicates a status change that would move a transaction backwards
// or out of a terminal state
type ErrInvalidTransition struct {
	ID   uuid.UUID
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return "invalid status transition for transaction " + e.ID.String() + ": " + string(e.From) + " -> " + string(e.To)
}

// Is implements the errors.Is interface for ErrInvalidTransition
func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}
