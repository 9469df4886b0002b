package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// NotificationRepository implements the notification.Repository interface for PostgreSQL.
// The primary key is the remote message id, which makes the table the dedup ledger
// for status updates.
type NotificationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewNotificationRepository creates a new PostgreSQL notification repository
func NewNotificationRepository(logger *slog.Logger, db *persistence.PostgresDB) notification.Repository {
	return &NotificationRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Insert records a handled notification. A second insert of the same id returns
// ErrDuplicateNotification.
func (r *NotificationRepository) Insert(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, transaction_id, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.TransactionID,
		n.Type,
		n.Data,
		n.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return notification.ErrDuplicateNotification{ID: n.ID}
		}
		r.logger.Error("Failed to insert notification",
			"notification_id", n.ID,
			"transaction_id", n.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by the remote message id that produced it
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	query := `
		SELECT id, user_id, transaction_id, type, data, created_at
		FROM notifications
		WHERE id = $1
	`

	var n notification.Notification
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.UserID,
		&n.TransactionID,
		&n.Type,
		&n.Data,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrNotificationNotFound{ID: id}
		}
		r.logger.Error("Failed to get notification", "notification_id", id, "error", err)
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &n, nil
}
