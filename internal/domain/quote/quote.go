package quote

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is a priced offer received from a counterparty for one transaction.
// ID is the remote quote message id.
type Quote struct {
	ID             string           `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	TransactionID  uuid.UUID        `json:"transaction_id"`
	ExchangeID     string           `json:"exchange_id"`
	PFIDID         string           `json:"pfi_did"`
	PayinAmount    decimal.Decimal  `json:"payin_amount"`
	PayinCurrency  string           `json:"payin_currency"`
	PayoutAmount   decimal.Decimal  `json:"payout_amount"`
	PayoutCurrency string           `json:"payout_currency"`
	Fee            *decimal.Decimal `json:"fee,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// FeeOrZero returns the fee, treating a missing fee as zero
func (q *Quote) FeeOrZero() decimal.Decimal {
	if q.Fee == nil {
		return decimal.Zero
	}
	return *q.Fee
}

// IsExpired reports whether the quote expired before now. Quotes without an expiry never expire.
func (q *Quote) IsExpired(now time.Time) bool {
	return q.ExpiresAt != nil && q.ExpiresAt.Before(now)
}
