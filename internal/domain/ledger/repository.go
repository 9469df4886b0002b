package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages the append-only Go Credit and Go Wallet ledgers.
// Balances are aggregates over the entries and are never stored.
type Repository interface {
	// CreateCreditEntry fails with ErrDuplicateEntry when the user already has an entry
	// with the same reference
	CreateCreditEntry(ctx context.Context, entry *CreditEntry) error
	// CreateWalletEntry fails with ErrDuplicateEntry when the reference was already posted
	CreateWalletEntry(ctx context.Context, entry *WalletEntry) error
	GetCreditEntryByReference(ctx context.Context, userID uuid.UUID, reference string) (*CreditEntry, error)
	GetCreditBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	GetWalletBalances(ctx context.Context, userID uuid.UUID) ([]WalletBalance, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	Reference string
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// If the target Reference is empty, consider it a match for any ErrEntryNotFound
	if t.Reference == "" {
		return true
	}
	// Otherwise, match on Reference
	return e.Reference == t.Reference
}

// ErrDuplicateEntry indicates reference uniqueness violation
type ErrDuplicateEntry struct {
	Reference string
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.Reference
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	// If the target Reference is empty, consider it a match for any ErrDuplicateEntry
	if t.Reference == "" {
		return true
	}
	// Otherwise, match on Reference
	return e.Reference == t.Reference
}
