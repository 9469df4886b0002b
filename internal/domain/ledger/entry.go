package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places kept in wallet minor units
const minorUnitExponent = 2

// CreditEntry is an append-only Go Credit posting. One credit pays for one order.
type CreditEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"` // Signed, in credits
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// WalletEntry is an append-only Go Wallet posting in one currency
type WalletEntry struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	SourceTransactionID uuid.UUID `json:"source_transaction_id"`
	PFIDID              string    `json:"pfi_did"`
	CurrencyCode        string    `json:"currency_code"`
	Amount              int64     `json:"amount"` // Signed, stored in cents/minor units
	Reference           string    `json:"reference"`
	CreatedAt           time.Time `json:"created_at"`
}

// WalletBalance is the derived balance of one wallet currency
type WalletBalance struct {
	CurrencyCode string `json:"currency_code"`
	Amount       int64  `json:"amount"`
}

// OrderPlacedReference is the reference of the credit debited when an order is placed
func OrderPlacedReference(transactionID uuid.UUID) string {
	return "Order placed: " + transactionID.String()
}

// OrderCompletedReference is the reference of the wallet posting made on completion
func OrderCompletedReference(transactionID uuid.UUID) string {
	return "Order completed: " + transactionID.String()
}

// NewCreditEntry creates a credit posting for the user
func NewCreditEntry(userID uuid.UUID, amount int64, reference string) *CreditEntry {
	return &CreditEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
}

// NewWalletEntry creates a wallet posting; amount is converted to minor units
// and negated when debit is true
func NewWalletEntry(userID, sourceTransactionID uuid.UUID, pfiDID, currency string, amount decimal.Decimal, debit bool) *WalletEntry {
	minor := ToMinorUnits(amount)
	if debit {
		minor = -minor
	}
	return &WalletEntry{
		ID:                  uuid.New(),
		UserID:              userID,
		SourceTransactionID: sourceTransactionID,
		PFIDID:              pfiDID,
		CurrencyCode:        currency,
		Amount:              minor,
		Reference:           OrderCompletedReference(sourceTransactionID),
		CreatedAt:           time.Now().UTC(),
	}
}

// ToMinorUnits converts a decimal amount to integer minor units, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a decimal amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}
