package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/domain/protocol"
	"github.com/go-exchange-reconciler/internal/domain/quote"
	"github.com/go-exchange-reconciler/internal/domain/rating"
	"github.com/go-exchange-reconciler/internal/domain/transaction"
	"github.com/go-exchange-reconciler/internal/domain/user"
)

const (
	replyAccept = "1"
	replyReject = "0"
)

// InboundSMS is a message received on the shortcode
type InboundSMS struct {
	LinkID string
	Text   string
	From   string
	To     string
	Date   string
}

// ReplyDependencies are the collaborators of the reply service
type ReplyDependencies struct {
	Users        user.Repository
	Transactions transaction.Repository
	Quotes       quote.Repository
	Ratings      rating.Repository
	Identities   IdentityResolver
	Counterparty Counterparty
	Locks        Locker
	Machine      Triggers
	Publisher    notification.Publisher
}

type ReplyServiceImpl struct {
	deps      ReplyDependencies
	shortcode string
	now       func() time.Time
	logger    *slog.Logger
}

func NewReplyService(logger *slog.Logger, shortcode string, deps ReplyDependencies) *ReplyServiceImpl {
	return &ReplyServiceImpl{
		deps:      deps,
		shortcode: shortcode,
		now:       time.Now,
		logger:    logger.With("component", "reply_service"),
	}
}

func (s *ReplyServiceImpl) HandleInbound(ctx context.Context, msg InboundSMS) error {
	logger := s.logger.With("link_id", msg.LinkID)
	if msg.To != s.shortcode {
		logger.Info("Ignoring SMS sent to another shortcode", "to", msg.To)
		return nil
	}

	u, err := s.deps.Users.GetByPhoneNumber(ctx, msg.From)
	if errors.Is(err, user.ErrUserNotFound{}) {
		logger.Info("Ignoring SMS from unknown phone number")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up sender: %w", err)
	}

	tx, err := s.deps.Transactions.GetLatestByUserID(ctx, u.ID)
	if errors.Is(err, transaction.ErrTransactionNotFound{}) {
		logger.Info("Ignoring SMS from user without transactions", "user_id", u.ID.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load latest transaction: %w", err)
	}

	text := strings.TrimSpace(msg.Text)
	switch tx.Status {
	case transaction.StatusQuote:
		return s.handleQuoteReply(ctx, u, tx, text)
	case transaction.StatusComplete:
		return s.handleRating(ctx, u, tx, text)
	default:
		logger.Info("Ignoring SMS, latest transaction awaits no reply", "transaction_id", tx.ID.String(), "status", tx.Status)
		return nil
	}
}

func (s *ReplyServiceImpl) handleQuoteReply(ctx context.Context, u *user.User, tx *transaction.Transaction, text string) error {
	logger := s.logger.With("transaction_id", tx.ID.String(), "user_id", u.ID.String())

	latest, err := s.deps.Quotes.GetLatestByTransactionID(ctx, tx.ID)
	if errors.Is(err, quote.ErrQuoteNotFound{}) {
		logger.Warn("Quote reply for transaction without a stored quote")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load latest quote: %w", err)
	}
	if latest.IsExpired(s.now()) {
		s.send(ctx, u, notification.RenderQuoteExpired(tx.ID))
		return nil
	}

	switch text {
	case replyAccept:
		s.send(ctx, u, notification.RenderOrderProcessing(tx.ID))
		if err := s.placeOrder(ctx, u, tx, latest); err != nil {
			logger.Error("Failed to place order", "error", err)
			s.send(ctx, u, notification.RenderOrderFailed(tx.ID))
		}
	case replyReject:
		s.send(ctx, u, notification.RenderCancelProcessing(tx.ID))
		if err := s.cancel(ctx, u, tx, latest); err != nil {
			logger.Error("Failed to cancel transaction", "error", err)
			s.send(ctx, u, notification.RenderCancelFailed(tx.ID))
		}
	default:
		s.send(ctx, u, notification.InvalidQuoteReplyText)
	}
	return nil
}

func (s *ReplyServiceImpl) placeOrder(ctx context.Context, u *user.User, tx *transaction.Transaction, q *quote.Quote) error {
	requester, err := s.deps.Identities.Resolve(ctx, u)
	if err != nil {
		return err
	}
	order, err := s.deps.Counterparty.SubmitOrder(ctx, requester, tx.PFIDID, q.ExchangeID)
	if err != nil {
		return err
	}
	return s.underLock(ctx, tx, func() error {
		return s.deps.Machine.ProcessOrder(ctx, tx.ID, []protocol.Message{order})
	})
}

func (s *ReplyServiceImpl) cancel(ctx context.Context, u *user.User, tx *transaction.Transaction, q *quote.Quote) error {
	requester, err := s.deps.Identities.Resolve(ctx, u)
	if err != nil {
		return err
	}
	closeMsg, err := s.deps.Counterparty.SubmitClose(ctx, requester, tx.PFIDID, q.ExchangeID, notification.ReasonUserCancelled)
	if err != nil {
		return err
	}
	return s.underLock(ctx, tx, func() error {
		return s.deps.Machine.ProcessClose(ctx, tx.ID, []protocol.Message{closeMsg})
	})
}

// underLock runs fn while holding the transaction's processing lock. When a poller
// holds it, fn is skipped: the submitted message is on the exchange and the poller
// will observe it.
func (s *ReplyServiceImpl) underLock(ctx context.Context, tx *transaction.Transaction, fn func() error) error {
	claimed, err := s.deps.Locks.TryClaim(ctx, tx.ID)
	if err != nil {
		s.logger.Warn("Failed to claim transaction, leaving it to the poller", "transaction_id", tx.ID.String(), "error", err)
		return nil
	}
	if !claimed {
		s.logger.Info("Transaction is being reconciled, leaving it to the poller", "transaction_id", tx.ID.String())
		return nil
	}
	defer s.deps.Locks.Release(context.WithoutCancel(ctx), []*transaction.Transaction{tx})
	return fn()
}

func (s *ReplyServiceImpl) handleRating(ctx context.Context, u *user.User, tx *transaction.Transaction, text string) error {
	r, err := rating.NewRating(tx.ID, text)
	if err != nil {
		s.send(ctx, u, notification.InvalidRatingReplyText)
		return nil
	}

	_, err = s.deps.Ratings.GetByTransactionID(ctx, tx.ID)
	if err == nil {
		s.logger.Warn("Transaction already rated", "transaction_id", tx.ID.String())
		return nil
	}
	if !errors.Is(err, rating.ErrRatingNotFound{}) {
		return fmt.Errorf("failed to check existing rating: %w", err)
	}

	if err := s.deps.Ratings.Create(ctx, r); err != nil {
		if errors.Is(err, rating.ErrRatingExists{}) {
			return nil
		}
		return fmt.Errorf("failed to save rating: %w", err)
	}
	s.send(ctx, u, notification.RatingThanksText)
	return nil
}

func (s *ReplyServiceImpl) send(ctx context.Context, u *user.User, text string) {
	if err := s.deps.Publisher.Send(ctx, u.ID, text); err != nil {
		s.logger.Error("Failed to send reply", "user_id", u.ID.String(), "error", err)
	}
}
