package mongo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/go-exchange-reconciler/internal/domain/ledger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLedgerRepository_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		assert.NoError(t, repo.EnsureIndexes(context.Background()))
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 85, Message: "index options conflict"}))

		err := repo.EnsureIndexes(context.Background())
		assert.ErrorContains(t, err, "failed to create credit ledger index")
	})
}

func TestLedgerRepository_CreateCreditEntry(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	entry := ledger.NewCreditEntry(uuid.New(), -1, ledger.OrderPlacedReference(uuid.New()))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(t, repo.CreateCreditEntry(context.Background(), entry))
	})

	mt.Run("duplicate reference", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.CreateCreditEntry(context.Background(), entry)
		assert.ErrorIs(t, err, ledger.ErrDuplicateEntry{Reference: entry.Reference})
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    2,
			Message: "bad value",
		}))

		err := repo.CreateCreditEntry(context.Background(), entry)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ledger.ErrDuplicateEntry{})
		assert.ErrorContains(t, err, "failed to create credit entry")
	})
}

func TestLedgerRepository_CreateWalletEntry(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	entry := &ledger.WalletEntry{
		ID:                  uuid.New(),
		UserID:              uuid.New(),
		SourceTransactionID: uuid.New(),
		PFIDID:              "did:dht:pfi",
		CurrencyCode:        "GHS",
		Amount:              150000,
		Reference:           "Order completed: abc",
		CreatedAt:           time.Now().UTC(),
	}

	mt.Run("success", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(t, repo.CreateWalletEntry(context.Background(), entry))
	})

	mt.Run("duplicate reference", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.CreateWalletEntry(context.Background(), entry)
		assert.ErrorIs(t, err, ledger.ErrDuplicateEntry{})
	})
}

func TestLedgerRepository_GetCreditEntryByReference(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	userID := uuid.New()
	reference := ledger.OrderPlacedReference(uuid.New())
	ns := "exchange_ledgers." + CreditCollectionName

	mt.Run("found", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		id := uuid.New()
		createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "user_id", Value: userID.String()},
			{Key: "amount", Value: int64(-1)},
			{Key: "reference", Value: reference},
			{Key: "created_at", Value: createdAt},
		}))

		entry, err := repo.GetCreditEntryByReference(context.Background(), userID, reference)
		require.NoError(t, err)
		assert.Equal(t, id, entry.ID)
		assert.Equal(t, userID, entry.UserID)
		assert.Equal(t, int64(-1), entry.Amount)
		assert.Equal(t, reference, entry.Reference)
		assert.True(t, createdAt.Equal(entry.CreatedAt))
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		entry, err := repo.GetCreditEntryByReference(context.Background(), userID, reference)
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound{Reference: reference})
	})
}

func TestLedgerRepository_GetCreditBalance(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	userID := uuid.New()
	ns := "exchange_ledgers." + CreditCollectionName

	mt.Run("sums postings", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "balance", Value: int64(4)},
		}))

		balance, err := repo.GetCreditBalance(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), balance)
	})

	mt.Run("no postings", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		balance, err := repo.GetCreditBalance(context.Background(), userID)
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	mt.Run("aggregate error", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 1, Message: "boom"}))

		_, err := repo.GetCreditBalance(context.Background(), userID)
		assert.ErrorContains(t, err, "failed to aggregate credit balance")
	})
}

func TestLedgerRepository_GetWalletBalances(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	userID := uuid.New()
	ns := "exchange_ledgers." + WalletCollectionName

	mt.Run("per currency", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "GHS"}, {Key: "balance", Value: int64(150000)}},
			bson.D{{Key: "_id", Value: "USD"}, {Key: "balance", Value: int64(-10000)}},
		))

		balances, err := repo.GetWalletBalances(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, []ledger.WalletBalance{
			{CurrencyCode: "GHS", Amount: 150000},
			{CurrencyCode: "USD", Amount: -10000},
		}, balances)
	})

	mt.Run("empty wallet", func(mt *mtest.T) {
		repo := NewLedgerRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		balances, err := repo.GetWalletBalances(context.Background(), userID)
		require.NoError(t, err)
		assert.Empty(t, balances)
	})
}
