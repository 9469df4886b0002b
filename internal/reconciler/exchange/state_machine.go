// Package exchange advances local transactions from the protocol messages observed
// for their remote conversation.
//
// Every trigger reloads the transaction and acts only when the persisted status
// matches its precondition, so the whole message history can be replayed on each
// poll pass. Side-effect writes are idempotent on their own keys (quote id,
// ledger reference, notification id), which keeps a retry after a crash between
// two writes from posting twice.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/go-exchange-reconciler/internal/domain/ledger"
	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/domain/protocol"
	"github.com/go-exchange-reconciler/internal/domain/quote"
	"github.com/go-exchange-reconciler/internal/domain/transaction"
)

// Recorder counts applied status transitions
type Recorder interface {
	Transition(from, to string)
}

// Dependencies are the stores and transports the state machine writes to
type Dependencies struct {
	Transactions  transaction.Repository
	Quotes        quote.Repository
	Notifications notification.Repository
	Ledger        ledger.Repository
	Publisher     notification.Publisher
	Recorder      Recorder
}

// StateMachine applies protocol messages to transactions
type StateMachine struct {
	transactions  transaction.Repository
	quotes        quote.Repository
	notifications notification.Repository
	ledger        ledger.Repository
	publisher     notification.Publisher
	recorder      Recorder
	now           func() time.Time
	logger        *slog.Logger
}

func NewStateMachine(logger *slog.Logger, deps Dependencies) *StateMachine {
	return &StateMachine{
		transactions:  deps.Transactions,
		quotes:        deps.Quotes,
		notifications: deps.Notifications,
		ledger:        deps.Ledger,
		publisher:     deps.Publisher,
		recorder:      deps.Recorder,
		now:           time.Now,
		logger:        logger.With("component", "state_machine"),
	}
}

// WithClock replaces the clock used for quote expiry
func (s *StateMachine) WithClock(now func() time.Time) *StateMachine {
	s.now = now
	return s
}

// Apply runs the triggers in protocol order: quote, order, status update, close.
// One call may advance a transaction through several transitions.
func (s *StateMachine) Apply(ctx context.Context, id uuid.UUID, msgs protocol.ExchangeMessages) error {
	if err := s.ProcessQuote(ctx, id, msgs.Quotes); err != nil {
		return err
	}
	if err := s.ProcessOrder(ctx, id, msgs.Orders); err != nil {
		return err
	}
	if err := s.ProcessStatusUpdates(ctx, id, msgs.StatusUpdates); err != nil {
		return err
	}
	return s.ProcessClose(ctx, id, msgs.Closes)
}

// ProcessQuote moves a pending transaction to quote using the newest quote message,
// notifies the user, and cancels right away when that quote has already expired.
func (s *StateMachine) ProcessQuote(ctx context.Context, id uuid.UUID, quotes []protocol.Message) error {
	if len(quotes) == 0 {
		return nil
	}

	current, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != transaction.StatusPending {
		return nil
	}
	logger := s.txLogger(current)

	msg, _ := protocol.Newest(quotes)
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := s.quotes.Insert(ctx, newQuote(current, msg)); err != nil {
		return err
	}
	if err := s.setStatus(ctx, current, transaction.StatusQuote); err != nil {
		return err
	}

	updated, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	written, err := s.quotes.GetByID(ctx, msg.ID)
	if err != nil {
		return err
	}
	balance, err := s.creditBalanceFor(ctx, updated)
	if err != nil {
		return err
	}

	logger.Info("Processed quote", "quote_id", msg.ID)
	s.send(ctx, updated, notification.RenderQuote(updated.ID, quoteView(written), balance))

	if written.IsExpired(s.now()) {
		logger.Info("Quote expired on arrival, cancelling", "quote_id", written.ID)
		return s.setStatus(ctx, updated, transaction.StatusCancelled)
	}
	return nil
}

// ProcessOrder moves a quoted transaction to order. Regular transactions spend one
// Go Credit; without credit they are cancelled instead.
func (s *StateMachine) ProcessOrder(ctx context.Context, id uuid.UUID, orders []protocol.Message) error {
	if len(orders) == 0 {
		return nil
	}

	current, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != transaction.StatusQuote {
		return nil
	}
	logger := s.txLogger(current)

	if current.Type == transaction.TypeRegular {
		charged, err := s.debitCredit(ctx, current)
		if err != nil {
			return err
		}
		if !charged {
			logger.Info("Insufficient Go Credit balance, cancelling order")
			if err := s.setStatus(ctx, current, transaction.StatusCancelled); err != nil {
				return err
			}
			s.send(ctx, current, notification.RenderClose(current.ID, false, notification.ReasonInsufficientCredit))
			return nil
		}
	}

	if err := s.setStatus(ctx, current, transaction.StatusOrder); err != nil {
		return err
	}

	updated, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	logger.Info("Processed order")

	if updated.Status == current.Status {
		return nil
	}

	latest, err := s.quotes.GetLatestByTransactionID(ctx, id)
	if err != nil {
		return err
	}
	balance, err := s.creditBalanceFor(ctx, updated)
	if err != nil {
		return err
	}
	s.send(ctx, updated, notification.RenderOrder(updated.ID, quoteView(latest), balance))
	return nil
}

// ProcessStatusUpdates notifies each not yet seen status update, oldest first.
// The first update already on record ends the batch.
func (s *StateMachine) ProcessStatusUpdates(ctx context.Context, id uuid.UUID, updates []protocol.Message) error {
	if len(updates) == 0 {
		return nil
	}

	current, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != transaction.StatusOrder {
		return nil
	}
	logger := s.txLogger(current)

	for _, update := range protocol.SortByCreatedAt(updates) {
		if err := update.Validate(); err != nil {
			return err
		}

		_, err := s.notifications.GetByID(ctx, update.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, notification.ErrNotificationNotFound{}) {
			return err
		}

		data, err := json.Marshal(map[string]string{"orderStatus": update.StatusUpdate.Status})
		if err != nil {
			return fmt.Errorf("failed to encode status update %s: %w", update.ID, err)
		}
		err = s.notifications.Insert(ctx, &notification.Notification{
			ID:            update.ID,
			UserID:        current.UserID,
			TransactionID: current.ID,
			Type:          notification.TypeStatusUpdate,
			Data:          data,
			CreatedAt:     update.CreatedAt,
		})
		if errors.Is(err, notification.ErrDuplicateNotification{}) {
			return nil
		}
		if err != nil {
			return err
		}

		logger.Info("Processed status update", "message_id", update.ID, "order_status", update.StatusUpdate.Status)
		s.send(ctx, current, notification.RenderStatusUpdate(current.ID, update.StatusUpdate.Status))
	}
	return nil
}

// ProcessClose completes or cancels a quoted or ordered transaction from the newest
// close message. Successful wallet transactions post their Go Wallet entry first.
func (s *StateMachine) ProcessClose(ctx context.Context, id uuid.UUID, closes []protocol.Message) error {
	if len(closes) == 0 {
		return nil
	}

	current, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != transaction.StatusQuote && current.Status != transaction.StatusOrder {
		return nil
	}
	logger := s.txLogger(current)

	msg, _ := protocol.Newest(closes)
	if err := msg.Validate(); err != nil {
		return err
	}
	success := msg.Close.Success

	if success && current.Type.IsWallet() {
		if err := s.postWalletEntry(ctx, current); err != nil {
			return err
		}
	}

	next := transaction.StatusCancelled
	if success {
		next = transaction.StatusComplete
	}
	if err := s.setStatus(ctx, current, next); err != nil {
		return err
	}

	updated, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	logger.Info("Processed close", "message_id", msg.ID, "success", success)

	if updated.Status == current.Status {
		return nil
	}

	reason := msg.Close.Reason
	if success {
		reason = ""
		switch updated.Type {
		case transaction.TypeWalletIn:
			reason = notification.ReasonWalletCredited
		case transaction.TypeWalletOut:
			reason = notification.ReasonWalletDebited
		}
	}
	s.send(ctx, updated, notification.RenderClose(updated.ID, success, reason))

	if updated.Status == transaction.StatusComplete {
		s.send(ctx, updated, notification.RenderRatePrompt(updated.ID))
	}
	return nil
}

// debitCredit spends one Go Credit for the order. It reports false when the user
// cannot pay. A debit already on record for this order counts as paid.
func (s *StateMachine) debitCredit(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	reference := ledger.OrderPlacedReference(tx.ID)

	_, err := s.ledger.GetCreditEntryByReference(ctx, tx.UserID, reference)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ledger.ErrEntryNotFound{}) {
		return false, err
	}

	balance, err := s.ledger.GetCreditBalance(ctx, tx.UserID)
	if err != nil {
		return false, err
	}
	if balance < 1 {
		return false, nil
	}

	err = s.ledger.CreateCreditEntry(ctx, ledger.NewCreditEntry(tx.UserID, -1, reference))
	if err != nil && !errors.Is(err, ledger.ErrDuplicateEntry{}) {
		return false, err
	}
	return true, nil
}

// postWalletEntry credits the payout of a wallet-in transaction or debits the payin
// of a wallet-out one, priced by the latest stored quote
func (s *StateMachine) postWalletEntry(ctx context.Context, tx *transaction.Transaction) error {
	q, err := s.quotes.GetLatestByTransactionID(ctx, tx.ID)
	if err != nil {
		return err
	}

	var entry *ledger.WalletEntry
	switch tx.Type {
	case transaction.TypeWalletIn:
		entry = ledger.NewWalletEntry(tx.UserID, tx.ID, tx.PFIDID, q.PayoutCurrency, q.PayoutAmount, false)
	case transaction.TypeWalletOut:
		entry = ledger.NewWalletEntry(tx.UserID, tx.ID, tx.PFIDID, q.PayinCurrency, q.PayinAmount, true)
	default:
		return nil
	}

	err = s.ledger.CreateWalletEntry(ctx, entry)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateEntry{}) {
		return err
	}
	return nil
}

func (s *StateMachine) setStatus(ctx context.Context, tx *transaction.Transaction, next transaction.Status) error {
	if !tx.Status.CanTransitionTo(next) {
		return transaction.ErrInvalidTransition{ID: tx.ID, From: tx.Status, To: next}
	}
	if err := s.transactions.UpdateStatus(ctx, tx.ID, next); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Transition(string(tx.Status), string(next))
	}
	return nil
}

// creditBalanceFor returns the balance to show the user, nil for wallet transactions
func (s *StateMachine) creditBalanceFor(ctx context.Context, tx *transaction.Transaction) (*int64, error) {
	if tx.Type != transaction.TypeRegular {
		return nil, nil
	}
	balance, err := s.ledger.GetCreditBalance(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// send hands text to the publisher. A delivery failure never undoes a transition.
func (s *StateMachine) send(ctx context.Context, tx *transaction.Transaction, text string) {
	if err := s.publisher.Send(ctx, tx.UserID, text); err != nil {
		s.txLogger(tx).Error("Failed to send notification", "error", err)
	}
}

func (s *StateMachine) txLogger(tx *transaction.Transaction) *slog.Logger {
	return s.logger.With(
		"transaction_id", tx.ID.String(),
		"exchange_id", tx.ExchangeID,
		"user_id", tx.UserID.String(),
		"pfi_did", tx.PFIDID,
	)
}

func newQuote(tx *transaction.Transaction, msg protocol.Message) *quote.Quote {
	exchangeID := msg.ExchangeID
	if exchangeID == "" {
		exchangeID = tx.ExchangeID
	}
	return &quote.Quote{
		ID:             msg.ID,
		UserID:         tx.UserID,
		TransactionID:  tx.ID,
		ExchangeID:     exchangeID,
		PFIDID:         tx.PFIDID,
		PayinAmount:    msg.Quote.PayinAmount,
		PayinCurrency:  msg.Quote.PayinCurrency,
		PayoutAmount:   msg.Quote.PayoutAmount,
		PayoutCurrency: msg.Quote.PayoutCurrency,
		Fee:            msg.Quote.Fee,
		ExpiresAt:      msg.Quote.ExpiresAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func quoteView(q *quote.Quote) notification.QuoteView {
	return notification.QuoteView{
		PayinAmount:    q.PayinAmount,
		PayinCurrency:  q.PayinCurrency,
		PayoutAmount:   q.PayoutAmount,
		PayoutCurrency: q.PayoutCurrency,
		Fee:            q.FeeOrZero(),
		ExpiresAt:      q.ExpiresAt,
	}
}
