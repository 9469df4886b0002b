package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Status is the reconciliation state of a transaction
type Status string

const (
	StatusPending   Status = "pending"
	StatusQuote     Status = "quote"
	StatusOrder     Status = "order"
	StatusCancelled Status = "cancelled"
	StatusComplete  Status = "complete"
)

// Type controls ledger side effects and notification wording
type Type string

const (
	TypeRegular   Type = "regular"
	TypeWalletIn  Type = "wallet-in"
	TypeWalletOut Type = "wallet-out"
)

// Transaction is a locally recorded exchange with a counterparty
type Transaction struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ExchangeID string    `json:"exchange_id"`
	OfferingID string    `json:"offering_id"`
	PFIDID     string    `json:"pfi_did"`
	Amount     string    `json:"amount"`
	Status     Status    `json:"status"`
	Type       Type      `json:"type"`
	PayinKind  string    `json:"payin_kind"`
	PayoutKind string    `json:"payout_kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// rank orders statuses along pending -> quote -> order -> {cancelled|complete}
var rank = map[Status]int{
	StatusPending:   0,
	StatusQuote:     1,
	StatusOrder:     2,
	StatusCancelled: 3,
	StatusComplete:  3,
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	_, ok := rank[s]
	return ok
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusComplete
}

// CanTransitionTo reports whether moving from s to next keeps status monotonic:
// next must rank strictly above s, so steps may be skipped (pending -> order) but
// never repeated or reversed. Terminal states never move.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	return rank[next] > rank[s]
}

// IsValid reports whether t is a known transaction type
func (t Type) IsValid() bool {
	switch t {
	case TypeRegular, TypeWalletIn, TypeWalletOut:
		return true
	}
	return false
}

// IsWallet reports whether the transaction moves Go Wallet funds
func (t Type) IsWallet() bool {
	return t == TypeWalletIn || t == TypeWalletOut
}

// IsTerminal reports whether the transaction has been completed or cancelled
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}
