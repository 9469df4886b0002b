package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-exchange-reconciler/internal/domain/rating"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RatingRepository implements the rating.Repository interface for PostgreSQL
type RatingRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRatingRepository creates a new PostgreSQL rating repository
func NewRatingRepository(logger *slog.Logger, db *persistence.PostgresDB) rating.Repository {
	return &RatingRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a rating; the unique transaction_id constraint rejects a second rating
func (r *RatingRepository) Create(ctx context.Context, rt *rating.Rating) error {
	query := `
		INSERT INTO ratings (id, transaction_id, rating, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.querier.Exec(ctx, query, rt.ID, rt.TransactionID, rt.Score, rt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return rating.ErrRatingExists{TransactionID: rt.TransactionID}
		}
		r.logger.Error("Failed to create rating", "transaction_id", rt.TransactionID.String(), "error", err)
		return fmt.Errorf("failed to create rating: %w", err)
	}

	return nil
}

// GetByTransactionID retrieves the rating of a transaction
func (r *RatingRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*rating.Rating, error) {
	query := `
		SELECT id, transaction_id, rating, created_at
		FROM ratings
		WHERE transaction_id = $1
	`

	var rt rating.Rating
	err := r.querier.QueryRow(ctx, query, transactionID).Scan(&rt.ID, &rt.TransactionID, &rt.Score, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rating.ErrRatingNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get rating", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}

	return &rt, nil
}
