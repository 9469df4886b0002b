// Package lock claims and releases per-transaction processing locks.
//
// A lock is a key in a shared store with a TTL. Creating the key is the only
// mutual exclusion between poller instances; a poller that dies without
// releasing leaves the key to expire, after which another instance may claim it.
package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-exchange-reconciler/internal/domain/transaction"
)

// sentinel is the value stored under a held key
const sentinel = "true"

// Store is a key/value store with per-key expiry. Absence of a key means unowned.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Manager claims transactions on behalf of one poller instance
type Manager struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewManager(logger *slog.Logger, store Store, prefix string, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "lock_manager"),
	}
}

// Key returns the store key guarding the transaction
func (m *Manager) Key(id uuid.UUID) string {
	return m.prefix + id.String()
}

// Claim attempts to lock every transaction concurrently and returns the ones this
// caller now owns, in input order. Transactions locked by someone else, or whose
// claim failed against the store, are left out.
func (m *Manager) Claim(ctx context.Context, txs []*transaction.Transaction) []*transaction.Transaction {
	won := make([]bool, len(txs))

	var g errgroup.Group
	for i, tx := range txs {
		g.Go(func() error {
			ok, err := m.store.PutIfAbsent(ctx, m.Key(tx.ID), sentinel, m.ttl)
			if err != nil {
				m.logger.Warn("Failed to claim transaction", "transaction_id", tx.ID.String(), "error", err)
				return nil
			}
			won[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	claimed := make([]*transaction.Transaction, 0, len(txs))
	for i, tx := range txs {
		if won[i] {
			claimed = append(claimed, tx)
		}
	}
	return claimed
}

// TryClaim locks a single transaction. It reports false when another owner holds it.
func (m *Manager) TryClaim(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.store.PutIfAbsent(ctx, m.Key(id), sentinel, m.ttl)
}

// Held reports whether any owner currently holds the transaction's lock
func (m *Manager) Held(ctx context.Context, id uuid.UUID) (bool, error) {
	_, found, err := m.store.Get(ctx, m.Key(id))
	return found, err
}

// Release deletes the locks of every transaction concurrently. Failures are logged;
// a key the store failed to delete is recovered by its TTL.
func (m *Manager) Release(ctx context.Context, txs []*transaction.Transaction) {
	var g errgroup.Group
	for _, tx := range txs {
		g.Go(func() error {
			if err := m.store.Delete(ctx, m.Key(tx.ID)); err != nil {
				m.logger.Warn("Failed to release transaction", "transaction_id", tx.ID.String(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
