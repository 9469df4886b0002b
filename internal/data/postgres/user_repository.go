package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-exchange-reconciler/internal/domain/user"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements the user.Repository interface for PostgreSQL
type UserRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(logger *slog.Logger, db *persistence.PostgresDB) user.Repository {
	return &UserRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `
		SELECT id, did, phone_number, created_at
		FROM users
		WHERE id = $1
	`

	var u user.User
	err := r.querier.QueryRow(ctx, query, id).Scan(&u.ID, &u.DID, &u.PhoneNumber, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound{ID: id}
		}
		r.logger.Error("Failed to get user", "user_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetByPhoneNumber retrieves the user registered with the phone number
func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*user.User, error) {
	query := `
		SELECT id, did, phone_number, created_at
		FROM users
		WHERE phone_number = $1
	`

	var u user.User
	err := r.querier.QueryRow(ctx, query, phoneNumber).Scan(&u.ID, &u.DID, &u.PhoneNumber, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound{PhoneNumber: phoneNumber}
		}
		r.logger.Error("Failed to get user by phone number", "error", err)
		return nil, fmt.Errorf("failed to get user by phone number: %w", err)
	}

	return &u, nil
}
