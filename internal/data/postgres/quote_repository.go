package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-exchange-reconciler/internal/domain/quote"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const quoteColumns = `id, user_id, transaction_id, exchange_id, pfi_did, payin_amount::text, payin_currency,
		payout_amount::text, payout_currency, fee::text, expires_at, created_at`

// QuoteRepository implements the quote.Repository interface for PostgreSQL
type QuoteRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewQuoteRepository creates a new PostgreSQL quote repository
func NewQuoteRepository(logger *slog.Logger, db *persistence.PostgresDB) quote.Repository {
	return &QuoteRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Insert stores a quote. Re-inserting a quote id that already exists is a no-op, so a
// retried pass after a crash between insert and status update succeeds.
func (r *QuoteRepository) Insert(ctx context.Context, q *quote.Quote) error {
	query := `
		INSERT INTO quotes (id, user_id, transaction_id, exchange_id, pfi_did, payin_amount, payin_currency,
			payout_amount, payout_currency, fee, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	var fee *string
	if q.Fee != nil {
		s := q.Fee.String()
		fee = &s
	}

	_, err := r.querier.Exec(ctx, query,
		q.ID,
		q.UserID,
		q.TransactionID,
		q.ExchangeID,
		q.PFIDID,
		q.PayinAmount.String(),
		q.PayinCurrency,
		q.PayoutAmount.String(),
		q.PayoutCurrency,
		fee,
		q.ExpiresAt,
		q.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert quote",
			"quote_id", q.ID,
			"transaction_id", q.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to insert quote: %w", err)
	}

	return nil
}

// GetByID retrieves a quote by its remote message id
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*quote.Quote, error) {
	query := `
		SELECT ` + quoteColumns + `
		FROM quotes
		WHERE id = $1
	`

	q, err := scanQuote(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quote.ErrQuoteNotFound{ID: id}
		}
		r.logger.Error("Failed to get quote", "quote_id", id, "error", err)
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	return q, nil
}

// GetLatestByTransactionID retrieves the newest quote recorded for a transaction
func (r *QuoteRepository) GetLatestByTransactionID(ctx context.Context, transactionID uuid.UUID) (*quote.Quote, error) {
	query := `
		SELECT ` + quoteColumns + `
		FROM quotes
		WHERE transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	q, err := scanQuote(r.querier.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quote.ErrQuoteNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get latest quote", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get latest quote: %w", err)
	}

	return q, nil
}

func scanQuote(row pgx.Row) (*quote.Quote, error) {
	var (
		q                   quote.Quote
		payinAmount, payout string
		fee                 *string
		expiresAt           *time.Time
	)

	err := row.Scan(
		&q.ID,
		&q.UserID,
		&q.TransactionID,
		&q.ExchangeID,
		&q.PFIDID,
		&payinAmount,
		&q.PayinCurrency,
		&payout,
		&q.PayoutCurrency,
		&fee,
		&expiresAt,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if q.PayinAmount, err = decimal.NewFromString(payinAmount); err != nil {
		return nil, fmt.Errorf("invalid payin amount %q: %w", payinAmount, err)
	}
	if q.PayoutAmount, err = decimal.NewFromString(payout); err != nil {
		return nil, fmt.Errorf("invalid payout amount %q: %w", payout, err)
	}
	if fee != nil {
		f, err := decimal.NewFromString(*fee)
		if err != nil {
			return nil, fmt.Errorf("invalid fee %q: %w", *fee, err)
		}
		q.Fee = &f
	}
	q.ExpiresAt = expiresAt

	return &q, nil
}
