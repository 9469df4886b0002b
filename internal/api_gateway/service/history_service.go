package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/go-exchange-reconciler/internal/domain/ledger"
	"github.com/go-exchange-reconciler/internal/domain/transaction"
	"github.com/go-exchange-reconciler/internal/domain/user"
)

// TransactionView is a transaction as shown in a user's history
type TransactionView struct {
	*transaction.Transaction
	// Processing is set while a poller or reply holds the transaction's lock
	Processing bool
}

// Balances are a user's derived ledger balances
type Balances struct {
	Credits int64
	Wallets []WalletBalance
}

type WalletBalance struct {
	CurrencyCode string
	Amount       decimal.Decimal
}

type HistoryServiceImpl struct {
	users        user.Repository
	transactions transaction.Repository
	ledger       ledger.Repository
	locks        Locker
	logger       *slog.Logger
}

func NewHistoryService(logger *slog.Logger, users user.Repository, transactions transaction.Repository, ledgerRepo ledger.Repository, locks Locker) *HistoryServiceImpl {
	return &HistoryServiceImpl{
		users:        users,
		transactions: transactions,
		ledger:       ledgerRepo,
		locks:        locks,
		logger:       logger.With("component", "history_service"),
	}
}

func (s *HistoryServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID) ([]TransactionView, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	txs, err := s.transactions.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		view := TransactionView{Transaction: tx}
		if !tx.IsTerminal() {
			held, err := s.locks.Held(ctx, tx.ID)
			if err != nil {
				s.logger.Warn("Failed to read processing lock", "transaction_id", tx.ID.String(), "error", err)
			}
			view.Processing = held
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *HistoryServiceImpl) Balances(ctx context.Context, userID uuid.UUID) (*Balances, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	credits, err := s.ledger.GetCreditBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit balance: %w", err)
	}
	wallets, err := s.ledger.GetWalletBalances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet balances: %w", err)
	}

	out := &Balances{Credits: credits, Wallets: make([]WalletBalance, 0, len(wallets))}
	for _, w := range wallets {
		out.Wallets = append(out.Wallets, WalletBalance{CurrencyCode: w.CurrencyCode, Amount: ledger.FromMinorUnits(w.Amount)})
	}
	return out, nil
}
