package transaction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusPending, StatusQuote, true},
		{StatusPending, StatusOrder, true},
		{StatusPending, StatusCancelled, true},
		{StatusQuote, StatusOrder, true},
		{StatusQuote, StatusCancelled, true},
		{StatusQuote, StatusComplete, true},
		{StatusOrder, StatusComplete, true},
		{StatusOrder, StatusCancelled, true},
		{StatusQuote, StatusPending, false},
		{StatusOrder, StatusQuote, false},
		{StatusQuote, StatusQuote, false},
		{StatusCancelled, StatusComplete, false},
		{StatusComplete, StatusCancelled, false},
		{StatusComplete, StatusComplete, false},
		{StatusPending, Status("unknown"), false},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusComplete.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusQuote.IsTerminal())
	assert.False(t, StatusOrder.IsTerminal())
}

func TestType(t *testing.T) {
	assert.True(t, TypeWalletIn.IsWallet())
	assert.True(t, TypeWalletOut.IsWallet())
	assert.False(t, TypeRegular.IsWallet())
	assert.True(t, TypeRegular.IsValid())
	assert.False(t, Type("savings").IsValid())
}

func TestErrTransactionNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := fmt.Errorf("lookup: %w", ErrTransactionNotFound{ID: id})

	assert.True(t, errors.Is(err, ErrTransactionNotFound{}))
	assert.True(t, errors.Is(err, ErrTransactionNotFound{ID: id}))
	assert.False(t, errors.Is(err, ErrTransactionNotFound{ID: uuid.New()}))
}
