package notification

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var renderTxID = uuid.MustParse("5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e")

func testQuoteView() QuoteView {
	expires := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	return QuoteView{
		PayinAmount:    decimal.RequireFromString("100"),
		PayinCurrency:  "USD",
		PayoutAmount:   decimal.RequireFromString("90"),
		PayoutCurrency: "GHS",
		Fee:            decimal.RequireFromString("2"),
		ExpiresAt:      &expires,
	}
}

func TestRenderQuote(t *testing.T) {
	balance := int64(5)

	t.Run("regular shows balance", func(t *testing.T) {
		text := RenderQuote(renderTxID, testQuoteView(), &balance)
		expected := "You have received a quote for transaction with ID 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e.\n\n" +
			"You will pay: 100 USD (includes fee)\n" +
			"You will receive: 90 GHS\n" +
			"Fee: 2 USD\n" +
			"Expires at: 2024-07-01T09:30:00Z\n\n" +
			"Reply with \"1\" to accept this quote and place an order. Reply with \"0\" to reject the quote.\n\n" +
			"This transaction will cost you 1 credit. Your remaining balance is 5 credits."
		assert.Equal(t, expected, text)
	})

	t.Run("wallet hides balance", func(t *testing.T) {
		text := RenderQuote(renderTxID, testQuoteView(), nil)
		assert.NotContains(t, text, "credit")
		assert.Contains(t, text, "You will pay: 100 USD (includes fee)")
	})

	t.Run("no expiry", func(t *testing.T) {
		q := testQuoteView()
		q.ExpiresAt = nil
		assert.NotContains(t, RenderQuote(renderTxID, q, nil), "Expires at")
	})
}

func TestRenderOrder(t *testing.T) {
	balance := int64(4)
	text := RenderOrder(renderTxID, testQuoteView(), &balance)
	assert.Equal(t, "You have successfully placed an order for transaction 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e.\n\n"+
		"You will pay: 100 USD (includes fee)\n"+
		"You will receive: 90 GHS\n"+
		"Fee: 2 USD\n\n"+
		"This transaction cost you 1 credit. Your remaining Go Credit balance is 4 credits.\n\n"+
		"You will receive a notification when the transaction is completed.", text)

	assert.NotContains(t, RenderOrder(renderTxID, testQuoteView(), nil), "Go Credit")
}

func TestRenderClose(t *testing.T) {
	assert.Equal(t, "Your transaction with ID 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e has been completed.",
		RenderClose(renderTxID, true, ""))
	assert.Equal(t, "Your transaction with ID 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e has been cancelled: Insufficient Go Credit balance.",
		RenderClose(renderTxID, false, ReasonInsufficientCredit))
	assert.Equal(t, "Your transaction with ID 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e has been completed: Credited your Go Wallet.",
		RenderClose(renderTxID, true, ReasonWalletCredited))
}

func TestRenderStatusUpdateAndPrompt(t *testing.T) {
	assert.Equal(t, "Your transaction with ID 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e has received a status update: PAYIN_PENDING",
		RenderStatusUpdate(renderTxID, "PAYIN_PENDING"))

	prompt := RenderRatePrompt(renderTxID)
	assert.Contains(t, prompt, "Please rate your transaction with ID 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e.")
	assert.Contains(t, prompt, "Reply with a number between 1 and 5")
}

func TestRenderReplies(t *testing.T) {
	assert.Equal(t, "Your quote for transaction 5b1e2c3d-4f5a-4b6c-8d7e-9f0a1b2c3d4e has expired. Please create a new one.",
		RenderQuoteExpired(renderTxID))
	assert.Contains(t, RenderOrderProcessing(renderTxID), "is being processed")
	assert.Contains(t, RenderCancelProcessing(renderTxID), "to cancel transaction")
	assert.Contains(t, RenderOrderFailed(renderTxID), "error submitting your order")
	assert.Contains(t, RenderCancelFailed(renderTxID), "error cancelling")
}
