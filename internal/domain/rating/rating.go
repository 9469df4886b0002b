package rating

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinScore = 1
	MaxScore = 5
)

// ErrInvalidScore indicates a score outside MinScore..MaxScore
var ErrInvalidScore = errors.New("rating must be a whole number between 1 and 5")

// Rating is a user's score for a completed transaction
type Rating struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Score         int       `json:"rating"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRating parses a free-text reply into a rating for the transaction
func NewRating(transactionID uuid.UUID, reply string) (*Rating, error) {
	score, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil || score < MinScore || score > MaxScore {
		return nil, ErrInvalidScore
	}

	return &Rating{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Score:         score,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Repository defines rating persistence operations
type Repository interface {
	// Create fails with ErrRatingExists when the transaction is already rated
	Create(ctx context.Context, r *Rating) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Rating, error)
}

// ErrRatingExists indicates the transaction already has a rating
type ErrRatingExists struct {
	TransactionID uuid.UUID
}

func (e ErrRatingExists) Error() string {
	return "rating already exists for transaction: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrRatingExists
func (e ErrRatingExists) Is(target error) bool {
	_, ok := target.(ErrRatingExists)
	return ok
}

// ErrRatingNotFound indicates the transaction has not been rated
type ErrRatingNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrRatingNotFound) Error() string {
	return "rating not found for transaction: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrRatingNotFound
func (e ErrRatingNotFound) Is(target error) bool {
	_, ok := target.(ErrRatingNotFound)
	return ok
}
