// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every write is a single statement; the reconciler never spans rows with a
// database transaction and relies on status guards for retries instead.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-exchange-reconciler/internal/domain/transaction"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, exchange_id, offering_id, pfi_did, amount, status, type, payin_kind, payout_kind, created_at`

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// ListNonTerminal returns all transactions still awaiting reconciliation, oldest first
func (r *TransactionRepository) ListNonTerminal(ctx context.Context) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, transaction.StatusCancelled, transaction.StatusComplete)
	if err != nil {
		r.logger.Error("Failed to list non-terminal transactions", "error", err)
		return nil, fmt.Errorf("failed to list non-terminal transactions: %w", err)
	}

	return r.collect(rows)
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

// UpdateStatus overwrites the status of a transaction. Transition rules are
// enforced by the caller against a freshly loaded row.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error {
	query := `
		UPDATE transactions
		SET status = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update transaction status",
			"transaction_id", id.String(),
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrTransactionNotFound{ID: id}
	}

	return nil
}

// ListByUserID returns a user's transactions, newest first
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list user transactions", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list user transactions: %w", err)
	}

	return r.collect(rows)
}

// GetLatestByUserID returns the user's most recently created transaction
func (r *TransactionRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{}
		}
		r.logger.Error("Failed to get latest transaction", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get latest transaction: %w", err)
	}

	return tx, nil
}

func (r *TransactionRepository) collect(rows pgx.Rows) ([]*transaction.Transaction, error) {
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.ExchangeID,
		&tx.OfferingID,
		&tx.PFIDID,
		&tx.Amount,
		&tx.Status,
		&tx.Type,
		&tx.PayinKind,
		&tx.PayoutKind,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
