// Package poller runs bounded reconciliation passes over outstanding transactions.
//
// Any number of pollers may run at once. The per-transaction lock is the only
// coordination between them; within one poller, users and counterparties are
// processed concurrently while each transaction's triggers run in protocol order.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-exchange-reconciler/internal/domain/protocol"
	"github.com/go-exchange-reconciler/internal/domain/transaction"
	"github.com/go-exchange-reconciler/internal/domain/user"
	"github.com/go-exchange-reconciler/internal/platform/identity"
)

// Locker claims transactions for exclusive processing
type Locker interface {
	Claim(ctx context.Context, txs []*transaction.Transaction) []*transaction.Transaction
	Release(ctx context.Context, txs []*transaction.Transaction)
}

// IdentityResolver returns the identity a user's requests are made with
type IdentityResolver interface {
	Resolve(ctx context.Context, u *user.User) (identity.Identity, error)
}

// Counterparty returns a user's conversations with one PFI
type Counterparty interface {
	FetchConversations(ctx context.Context, requester identity.Identity, pfiDID string) ([]protocol.Conversation, error)
}

// Applier advances one transaction from its bucketed conversation
type Applier interface {
	Apply(ctx context.Context, id uuid.UUID, msgs protocol.ExchangeMessages) error
}

// Recorder observes pass outcomes
type Recorder interface {
	PassCompleted(d time.Duration, err error)
	Claimed(claimed, attempted int)
}

// Config bounds one invocation
type Config struct {
	PassBudget   time.Duration
	IdleInterval time.Duration
	BatchSize    int
	FetchTimeout time.Duration
}

// Dependencies are the collaborators of a Poller
type Dependencies struct {
	Transactions transaction.Repository
	Users        user.Repository
	Locks        Locker
	Identities   IdentityResolver
	Counterparty Counterparty
	Machine      Applier
	Recorder     Recorder
}

type Poller struct {
	transactions transaction.Repository
	users        user.Repository
	locks        Locker
	identities   IdentityResolver
	counterparty Counterparty
	machine      Applier
	recorder     Recorder
	cfg          Config

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
	logger *slog.Logger
}

func New(logger *slog.Logger, cfg Config, deps Dependencies) *Poller {
	return &Poller{
		transactions: deps.Transactions,
		users:        deps.Users,
		locks:        deps.Locks,
		identities:   deps.Identities,
		counterparty: deps.Counterparty,
		machine:      deps.Machine,
		recorder:     deps.Recorder,
		cfg:          cfg,
		now:          time.Now,
		sleep:        sleepContext,
		logger:       logger.With("component", "poller"),
	}
}

// Run processes batches until the pass budget is spent or ctx is done.
// Errors are logged per batch and never end the invocation early.
func (p *Poller) Run(ctx context.Context) {
	start := p.now()
	p.logger.Info("Starting reconciliation pass", "budget", p.cfg.PassBudget)

	batches := 0
	for p.now().Sub(start) < p.cfg.PassBudget {
		if ctx.Err() != nil {
			break
		}

		pending, err := p.transactions.ListNonTerminal(ctx)
		if err != nil {
			p.logger.Error("Failed to list outstanding transactions", "error", err)
			p.sleep(ctx, p.cfg.IdleInterval)
			continue
		}
		if len(pending) == 0 {
			p.sleep(ctx, p.cfg.IdleInterval)
			continue
		}

		if len(pending) > p.cfg.BatchSize {
			pending = pending[:p.cfg.BatchSize]
		}
		claimed := p.locks.Claim(ctx, pending)
		if p.recorder != nil {
			p.recorder.Claimed(len(claimed), len(pending))
		}
		if len(claimed) == 0 {
			p.logger.Debug("All outstanding transactions are held by other pollers", "outstanding", len(pending))
			p.sleep(ctx, p.cfg.IdleInterval)
			continue
		}

		batchStart := p.now()
		err = p.processBatch(ctx, claimed)
		if p.recorder != nil {
			p.recorder.PassCompleted(p.now().Sub(batchStart), err)
		}
		if err != nil {
			p.logger.Error("Batch failed, transactions will be retried", "claimed", len(claimed), "error", err)
		}
		batches++

		p.sleep(ctx, p.cfg.IdleInterval)
	}

	p.logger.Info("Finished reconciliation pass", "batches", batches, "elapsed", p.now().Sub(start))
}

// processBatch reconciles the claimed transactions and releases every lock on return,
// whatever the outcome. Release uses a context that survives cancellation of ctx.
func (p *Poller) processBatch(ctx context.Context, claimed []*transaction.Transaction) (err error) {
	defer p.locks.Release(context.WithoutCancel(ctx), claimed)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing batch: %v", r)
		}
	}()

	// Siblings share ctx rather than a group context: a failing user must not
	// cancel the others.
	var g errgroup.Group
	for _, group := range groupByUser(claimed) {
		g.Go(guard(func() error {
			return p.processUser(ctx, group.userID, group.txs)
		}))
	}
	return g.Wait()
}

func (p *Poller) processUser(ctx context.Context, userID uuid.UUID, txs []*transaction.Transaction) error {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	requester, err := p.identities.Resolve(ctx, u)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, group := range groupByCounterparty(txs) {
		g.Go(guard(func() error {
			return p.processCounterparty(ctx, requester, group.pfiDID, group.txs)
		}))
	}
	return g.Wait()
}

func (p *Poller) processCounterparty(ctx context.Context, requester identity.Identity, pfiDID string, txs []*transaction.Transaction) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	conversations, err := p.counterparty.FetchConversations(fetchCtx, requester, pfiDID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch conversations from %s: %w", pfiDID, err)
	}

	byRoot := make(map[string]protocol.Conversation, len(conversations))
	for _, conv := range conversations {
		byRoot[conv.RootID()] = conv
	}

	for _, tx := range txs {
		conv, ok := byRoot[tx.ExchangeID]
		if !ok {
			p.logger.Debug("No remote conversation yet", "transaction_id", tx.ID.String(), "exchange_id", tx.ExchangeID)
			continue
		}

		msgs, err := protocol.Bucket(conv)
		if err != nil {
			return fmt.Errorf("exchange %s: %w", tx.ExchangeID, err)
		}
		if err := p.machine.Apply(ctx, tx.ID, msgs); err != nil {
			return fmt.Errorf("failed to apply exchange %s to transaction %s: %w", tx.ExchangeID, tx.ID, err)
		}
	}
	return nil
}

// Schedule starts a new Run every interval until ctx is done, letting runs overlap
// the way scheduled invocations do. It returns after in-flight runs finish.
func (p *Poller) Schedule(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	launch := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	launch()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			launch()
		}
	}
}

type userGroup struct {
	userID uuid.UUID
	txs    []*transaction.Transaction
}

type counterpartyGroup struct {
	pfiDID string
	txs    []*transaction.Transaction
}

// groupByUser keeps the first-seen order of users and of transactions within a user
func groupByUser(txs []*transaction.Transaction) []userGroup {
	index := map[uuid.UUID]int{}
	var groups []userGroup
	for _, tx := range txs {
		i, ok := index[tx.UserID]
		if !ok {
			i = len(groups)
			index[tx.UserID] = i
			groups = append(groups, userGroup{userID: tx.UserID})
		}
		groups[i].txs = append(groups[i].txs, tx)
	}
	return groups
}

func groupByCounterparty(txs []*transaction.Transaction) []counterpartyGroup {
	index := map[string]int{}
	var groups []counterpartyGroup
	for _, tx := range txs {
		i, ok := index[tx.PFIDID]
		if !ok {
			i = len(groups)
			index[tx.PFIDID] = i
			groups = append(groups, counterpartyGroup{pfiDID: tx.PFIDID})
		}
		groups[i].txs = append(groups[i].txs, tx)
	}
	return groups
}

// guard turns a panic in fn into an error so one branch cannot crash the process
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
