package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/go-exchange-reconciler/internal/domain/protocol"
	"github.com/go-exchange-reconciler/internal/domain/transaction"
	"github.com/go-exchange-reconciler/internal/domain/user"
	"github.com/go-exchange-reconciler/internal/platform/identity"
)

// ReplyService handles text replies users send to the shortcode
type ReplyService interface {
	// HandleInbound acts on one inbound SMS. Messages that do not concern an open
	// quote or a completed transaction are ignored without error.
	HandleInbound(ctx context.Context, msg InboundSMS) error
}

// HistoryService serves read views over a user's transactions and ledgers
type HistoryService interface {
	// ListTransactions returns ErrUserNotFound for an unknown user
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]TransactionView, error)
	Balances(ctx context.Context, userID uuid.UUID) (*Balances, error)
}

// IdentityResolver returns the identity a user's requests are made with
type IdentityResolver interface {
	Resolve(ctx context.Context, u *user.User) (identity.Identity, error)
}

// Counterparty submits user decisions on a quote
type Counterparty interface {
	SubmitOrder(ctx context.Context, requester identity.Identity, pfiDID, exchangeID string) (protocol.Message, error)
	SubmitClose(ctx context.Context, requester identity.Identity, pfiDID, exchangeID, reason string) (protocol.Message, error)
}

// Locker takes the same per-transaction lock the poller uses
type Locker interface {
	TryClaim(ctx context.Context, id uuid.UUID) (bool, error)
	Held(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, txs []*transaction.Transaction)
}

// Triggers applies locally submitted messages to a transaction
type Triggers interface {
	ProcessOrder(ctx context.Context, id uuid.UUID, orders []protocol.Message) error
	ProcessClose(ctx context.Context, id uuid.UUID, closes []protocol.Message) error
}
