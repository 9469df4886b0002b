// Package testutil provides in-memory stand-ins for the stores and transports the
// reconciler depends on. They honor the same error contracts as the real adapters.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-exchange-reconciler/internal/domain/ledger"
	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/domain/quote"
	"github.com/go-exchange-reconciler/internal/domain/rating"
	"github.com/go-exchange-reconciler/internal/domain/transaction"
	"github.com/go-exchange-reconciler/internal/domain/user"
)

// Transactions is an in-memory transaction.Repository
type Transactions struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]transaction.Transaction
	history map[uuid.UUID][]transaction.Status

	// Err, when set, is returned by every call
	Err error
}

func NewTransactions(txs ...*transaction.Transaction) *Transactions {
	r := &Transactions{
		rows:    map[uuid.UUID]transaction.Transaction{},
		history: map[uuid.UUID][]transaction.Status{},
	}
	for _, tx := range txs {
		r.Put(tx)
	}
	return r
}

// Put stores a copy of tx, replacing any previous row
func (r *Transactions) Put(tx *transaction.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[tx.ID] = *tx
	r.history[tx.ID] = append(r.history[tx.ID], tx.Status)
}

// Status returns the persisted status of id
func (r *Transactions) Status(id uuid.UUID) transaction.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

// History returns every status id has been stored with, oldest first
func (r *Transactions) History(id uuid.UUID) []transaction.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transaction.Status(nil), r.history[id]...)
}

func (r *Transactions) ListNonTerminal(ctx context.Context) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*transaction.Transaction
	for _, tx := range r.rows {
		if !tx.IsTerminal() {
			tx := tx
			out = append(out, &tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Transactions) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	tx, ok := r.rows[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound{ID: id}
	}
	return &tx, nil
}

func (r *Transactions) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	tx, ok := r.rows[id]
	if !ok {
		return transaction.ErrTransactionNotFound{ID: id}
	}
	tx.Status = status
	r.rows[id] = tx
	r.history[id] = append(r.history[id], status)
	return nil
}

func (r *Transactions) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*transaction.Transaction
	for _, tx := range r.rows {
		if tx.UserID == userID {
			tx := tx
			out = append(out, &tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Transactions) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*transaction.Transaction, error) {
	txs, err := r.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, transaction.ErrTransactionNotFound{}
	}
	return txs[0], nil
}

// Quotes is an in-memory quote.Repository. Inserting an existing id is a no-op.
type Quotes struct {
	mu   sync.Mutex
	rows map[string]quote.Quote
}

func NewQuotes(qs ...*quote.Quote) *Quotes {
	r := &Quotes{rows: map[string]quote.Quote{}}
	for _, q := range qs {
		r.rows[q.ID] = *q
	}
	return r
}

// Count returns the number of stored quotes
func (r *Quotes) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Quotes) Insert(ctx context.Context, q *quote.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[q.ID]; !ok {
		r.rows[q.ID] = *q
	}
	return nil
}

func (r *Quotes) GetByID(ctx context.Context, id string) (*quote.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.rows[id]
	if !ok {
		return nil, quote.ErrQuoteNotFound{ID: id}
	}
	return &q, nil
}

func (r *Quotes) GetLatestByTransactionID(ctx context.Context, transactionID uuid.UUID) (*quote.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *quote.Quote
	for _, q := range r.rows {
		if q.TransactionID != transactionID {
			continue
		}
		if latest == nil || q.CreatedAt.After(latest.CreatedAt) {
			q := q
			latest = &q
		}
	}
	if latest == nil {
		return nil, quote.ErrQuoteNotFound{TransactionID: transactionID}
	}
	return latest, nil
}

// Notifications is an in-memory notification.Repository
type Notifications struct {
	mu   sync.Mutex
	rows map[string]notification.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{rows: map[string]notification.Notification{}}
}

// Count returns the number of recorded notifications
func (r *Notifications) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Notifications) Insert(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[n.ID]; ok {
		return notification.ErrDuplicateNotification{ID: n.ID}
	}
	r.rows[n.ID] = *n
	return nil
}

func (r *Notifications) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, notification.ErrNotificationNotFound{ID: id}
	}
	return &n, nil
}

// Ledger is an in-memory ledger.Repository enforcing reference uniqueness
type Ledger struct {
	mu      sync.Mutex
	credits []ledger.CreditEntry
	wallet  []ledger.WalletEntry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Grant posts an opening credit balance for the user
func (l *Ledger) Grant(userID uuid.UUID, credits int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits = append(l.credits, *ledger.NewCreditEntry(userID, credits, "Initial grant: "+uuid.NewString()))
}

// CreditEntries returns the user's credit postings with the given reference
func (l *Ledger) CreditEntries(userID uuid.UUID, reference string) []ledger.CreditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledger.CreditEntry
	for _, e := range l.credits {
		if e.UserID == userID && e.Reference == reference {
			out = append(out, e)
		}
	}
	return out
}

// WalletEntries returns every wallet posting
func (l *Ledger) WalletEntries() []ledger.WalletEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.WalletEntry(nil), l.wallet...)
}

func (l *Ledger) CreateCreditEntry(ctx context.Context, entry *ledger.CreditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.credits {
		if e.UserID == entry.UserID && e.Reference == entry.Reference {
			return ledger.ErrDuplicateEntry{Reference: entry.Reference}
		}
	}
	l.credits = append(l.credits, *entry)
	return nil
}

func (l *Ledger) CreateWalletEntry(ctx context.Context, entry *ledger.WalletEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.wallet {
		if e.Reference == entry.Reference {
			return ledger.ErrDuplicateEntry{Reference: entry.Reference}
		}
	}
	l.wallet = append(l.wallet, *entry)
	return nil
}

func (l *Ledger) GetCreditEntryByReference(ctx context.Context, userID uuid.UUID, reference string) (*ledger.CreditEntry, error) {
	entries := l.CreditEntries(userID, reference)
	if len(entries) == 0 {
		return nil, ledger.ErrEntryNotFound{Reference: reference}
	}
	return &entries[0], nil
}

func (l *Ledger) GetCreditBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum int64
	for _, e := range l.credits {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (l *Ledger) GetWalletBalances(ctx context.Context, userID uuid.UUID) ([]ledger.WalletBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sums := map[string]int64{}
	for _, e := range l.wallet {
		if e.UserID == userID {
			sums[e.CurrencyCode] += e.Amount
		}
	}
	out := make([]ledger.WalletBalance, 0, len(sums))
	for code, amount := range sums {
		out = append(out, ledger.WalletBalance{CurrencyCode: code, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyCode < out[j].CurrencyCode })
	return out, nil
}

// Users is an in-memory user.Repository
type Users struct {
	mu   sync.Mutex
	rows map[uuid.UUID]user.User
}

func NewUsers(us ...*user.User) *Users {
	r := &Users{rows: map[uuid.UUID]user.User{}}
	for _, u := range us {
		r.rows[u.ID] = *u
	}
	return r
}

func (r *Users) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, user.ErrUserNotFound{ID: id}
	}
	return &u, nil
}

func (r *Users) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.PhoneNumber == phoneNumber {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound{PhoneNumber: phoneNumber}
}

// Ratings is an in-memory rating.Repository
type Ratings struct {
	mu   sync.Mutex
	rows map[uuid.UUID]rating.Rating
}

func NewRatings() *Ratings {
	return &Ratings{rows: map[uuid.UUID]rating.Rating{}}
}

func (r *Ratings) Create(ctx context.Context, rt *rating.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[rt.TransactionID]; ok {
		return rating.ErrRatingExists{TransactionID: rt.TransactionID}
	}
	r.rows[rt.TransactionID] = *rt
	return nil
}

func (r *Ratings) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*rating.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rows[transactionID]
	if !ok {
		return nil, rating.ErrRatingNotFound{TransactionID: transactionID}
	}
	return &rt, nil
}

// Sent is one message handed to a Publisher
type Sent struct {
	UserID uuid.UUID
	Text   string
}

// Publisher records every message instead of delivering it
type Publisher struct {
	mu   sync.Mutex
	sent []Sent

	// Err, when set, is returned by Send after recording the message
	Err error
}

func (p *Publisher) Send(ctx context.Context, userID uuid.UUID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, Sent{UserID: userID, Text: text})
	return p.Err
}

// Sent returns the recorded messages in send order
func (p *Publisher) Sent() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent(nil), p.sent...)
}

// Reset forgets the recorded messages
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}

// LockStore is an in-memory lock store with an adjustable clock
type LockStore struct {
	mu   sync.Mutex
	keys map[string]lockEntry
	now  time.Time
}

type lockEntry struct {
	value   string
	expires time.Time
}

func NewLockStore() *LockStore {
	return &LockStore{keys: map[string]lockEntry{}, now: time.Unix(0, 0)}
}

// Advance moves the store clock forward, expiring keys whose TTL elapsed
func (s *LockStore) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// Len returns the number of live keys
func (s *LockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.keys {
		if s.now.Before(e.expires) {
			n++
		}
	}
	return n
}

func (s *LockStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.keys[key]
	if !ok || !s.now.Before(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *LockStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.keys[key]; ok && s.now.Before(e.expires) {
		return false, nil
	}
	s.keys[key] = lockEntry{value: value, expires: s.now.Add(ttl)}
	return true, nil
}

func (s *LockStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
