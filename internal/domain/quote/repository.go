package quote

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines quote persistence operations
type Repository interface {
	Insert(ctx context.Context, q *Quote) error
	GetByID(ctx context.Context, id string) (*Quote, error)
	// GetLatestByTransactionID returns the quote with the greatest created_at
	GetLatestByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Quote, error)
}

// ErrQuoteNotFound indicates that no quote matched the lookup
type ErrQuoteNotFound struct {
	ID            string
	TransactionID uuid.UUID
}

func (e ErrQuoteNotFound) Error() string {
	if e.ID != "" {
		return "quote not found: " + e.ID
	}
	return "quote not found for transaction: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrQuoteNotFound
func (e ErrQuoteNotFound) Is(target error) bool {
	_, ok := target.(ErrQuoteNotFound)
	return ok
}
