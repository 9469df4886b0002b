package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/go-exchange-reconciler/internal/domain/ledger"
)

const (
	// CreditCollectionName holds Go Credit postings
	CreditCollectionName = "go_credit_transactions"
	// WalletCollectionName holds Go Wallet postings
	WalletCollectionName = "go_wallet_transactions"
)

// creditDocument is the stored form of a ledger.CreditEntry
type creditDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Amount    int64     `bson:"amount"`
	Reference string    `bson:"reference"`
	CreatedAt time.Time `bson:"created_at"`
}

// walletDocument is the stored form of a ledger.WalletEntry
type walletDocument struct {
	ID                  string    `bson:"_id"`
	UserID              string    `bson:"user_id"`
	SourceTransactionID string    `bson:"source_transaction_id"`
	PFIDID              string    `bson:"pfi_did"`
	CurrencyCode        string    `bson:"currency_code"`
	Amount              int64     `bson:"amount"`
	Reference           string    `bson:"reference"`
	CreatedAt           time.Time `bson:"created_at"`
}

// LedgerRepository implements the ledger.Repository interface for MongoDB.
// Uniqueness of references is enforced by the indexes created in EnsureIndexes.
type LedgerRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLedgerRepository creates a new MongoDB ledger repository
func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique reference indexes that make postings idempotent
// and the user indexes used by the balance aggregations.
func (r *LedgerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(CreditCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "reference", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_user_reference"),
	})
	if err != nil {
		r.logger.Error("Failed to create credit ledger index", "error", err)
		return fmt.Errorf("failed to create credit ledger index: %w", err)
	}

	_, err = r.db.Collection(WalletCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_reference"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "currency_code", Value: 1}},
			Options: options.Index().SetName("user_currency"),
		},
	})
	if err != nil {
		r.logger.Error("Failed to create wallet ledger indexes", "error", err)
		return fmt.Errorf("failed to create wallet ledger indexes: %w", err)
	}

	return nil
}

// CreateCreditEntry appends a Go Credit posting.
// Returns ErrDuplicateEntry if the user already has a posting with the same reference.
func (r *LedgerRepository) CreateCreditEntry(ctx context.Context, entry *ledger.CreditEntry) error {
	doc := creditDocument{
		ID:        entry.ID.String(),
		UserID:    entry.UserID.String(),
		Amount:    entry.Amount,
		Reference: entry.Reference,
		CreatedAt: entry.CreatedAt,
	}

	_, err := r.db.Collection(CreditCollectionName).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateEntry{Reference: entry.Reference}
		}
		r.logger.Error("Failed to create credit entry",
			"user_id", entry.UserID.String(),
			"reference", entry.Reference,
			"error", err)
		return fmt.Errorf("failed to create credit entry: %w", err)
	}

	return nil
}

// CreateWalletEntry appends a Go Wallet posting.
// Returns ErrDuplicateEntry if the reference was already posted.
func (r *LedgerRepository) CreateWalletEntry(ctx context.Context, entry *ledger.WalletEntry) error {
	doc := walletDocument{
		ID:                  entry.ID.String(),
		UserID:              entry.UserID.String(),
		SourceTransactionID: entry.SourceTransactionID.String(),
		PFIDID:              entry.PFIDID,
		CurrencyCode:        entry.CurrencyCode,
		Amount:              entry.Amount,
		Reference:           entry.Reference,
		CreatedAt:           entry.CreatedAt,
	}

	_, err := r.db.Collection(WalletCollectionName).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateEntry{Reference: entry.Reference}
		}
		r.logger.Error("Failed to create wallet entry",
			"user_id", entry.UserID.String(),
			"reference", entry.Reference,
			"currency", entry.CurrencyCode,
			"error", err)
		return fmt.Errorf("failed to create wallet entry: %w", err)
	}

	return nil
}

// GetCreditEntryByReference retrieves the user's credit posting with the given reference.
// Returns ErrEntryNotFound if none exists.
func (r *LedgerRepository) GetCreditEntryByReference(ctx context.Context, userID uuid.UUID, reference string) (*ledger.CreditEntry, error) {
	filter := bson.M{"user_id": userID.String(), "reference": reference}

	var doc creditDocument
	err := r.db.Collection(CreditCollectionName).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get credit entry",
			"user_id", userID.String(),
			"reference", reference,
			"error", err)
		return nil, fmt.Errorf("failed to get credit entry: %w", err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid credit entry id %q: %w", doc.ID, err)
	}

	return &ledger.CreditEntry{
		ID:        id,
		UserID:    userID,
		Amount:    doc.Amount,
		Reference: doc.Reference,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// GetCreditBalance sums the user's Go Credit postings. Users without postings have a zero balance.
func (r *LedgerRepository) GetCreditBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID.String()}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "balance": bson.M{"$sum": "$amount"}}}},
	}

	cursor, err := r.db.Collection(CreditCollectionName).Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate credit balance", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to aggregate credit balance: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Balance int64 `bson:"balance"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		r.logger.Error("Failed to decode credit balance", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to decode credit balance: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Balance, nil
}

// GetWalletBalances sums the user's Go Wallet postings per currency, ordered by currency code
func (r *LedgerRepository) GetWalletBalances(ctx context.Context, userID uuid.UUID) ([]ledger.WalletBalance, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID.String()}}},
		{{Key: "$group", Value: bson.M{"_id": "$currency_code", "balance": bson.M{"$sum": "$amount"}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.db.Collection(WalletCollectionName).Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate wallet balances", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to aggregate wallet balances: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		CurrencyCode string `bson:"_id"`
		Balance      int64  `bson:"balance"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		r.logger.Error("Failed to decode wallet balances", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to decode wallet balances: %w", err)
	}

	balances := make([]ledger.WalletBalance, 0, len(results))
	for _, res := range results {
		balances = append(balances, ledger.WalletBalance{CurrencyCode: res.CurrencyCode, Amount: res.Balance})
	}
	return balances, nil
}
