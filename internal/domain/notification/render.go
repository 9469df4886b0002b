package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Close reasons sent by this service
const (
	ReasonInsufficientCredit = "Insufficient Go Credit balance"
	ReasonUserCancelled      = "User cancelled transaction"
	ReasonWalletCredited     = "Credited your Go Wallet"
	ReasonWalletDebited      = "Debited your Go Wallet"
)

// QuoteView is the part of a quote shown to the user
type QuoteView struct {
	PayinAmount    decimal.Decimal
	PayinCurrency  string
	PayoutAmount   decimal.Decimal
	PayoutCurrency string
	Fee            decimal.Decimal
	ExpiresAt      *time.Time
}

func (q QuoteView) amountLines(b *strings.Builder) {
	// The payin amount already includes the fee.
	fmt.Fprintf(b, "You will pay: %s %s (includes fee)\n", q.PayinAmount.String(), q.PayinCurrency)
	fmt.Fprintf(b, "You will receive: %s %s\n", q.PayoutAmount.String(), q.PayoutCurrency)
	fmt.Fprintf(b, "Fee: %s %s", q.Fee.String(), q.PayinCurrency)
}

// RenderQuote is sent when a quote arrives. creditBalance is nil for wallet
// transactions, which do not spend credits.
func RenderQuote(transactionID uuid.UUID, q QuoteView, creditBalance *int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have received a quote for transaction with ID %s.\n\n", transactionID)
	q.amountLines(&b)
	b.WriteString("\n")
	if q.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires at: %s\n", q.ExpiresAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("\nReply with \"1\" to accept this quote and place an order. Reply with \"0\" to reject the quote.")
	if creditBalance != nil {
		fmt.Fprintf(&b, "\n\nThis transaction will cost you 1 credit. Your remaining balance is %d credits.", *creditBalance)
	}
	return b.String()
}

// RenderOrder is sent once an order has been placed
func RenderOrder(transactionID uuid.UUID, q QuoteView, creditBalance *int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have successfully placed an order for transaction %s.\n\n", transactionID)
	q.amountLines(&b)
	if creditBalance != nil {
		fmt.Fprintf(&b, "\n\nThis transaction cost you 1 credit. Your remaining Go Credit balance is %d credits.", *creditBalance)
	}
	b.WriteString("\n\nYou will receive a notification when the transaction is completed.")
	return b.String()
}

// RenderClose is sent when a transaction is completed or cancelled
func RenderClose(transactionID uuid.UUID, success bool, reason string) string {
	outcome := "cancelled"
	if success {
		outcome = "completed"
	}
	if reason != "" {
		return fmt.Sprintf("Your transaction with ID %s has been %s: %s.", transactionID, outcome, reason)
	}
	return fmt.Sprintf("Your transaction with ID %s has been %s.", transactionID, outcome)
}

func RenderStatusUpdate(transactionID uuid.UUID, status string) string {
	return fmt.Sprintf("Your transaction with ID %s has received a status update: %s", transactionID, status)
}

func RenderRatePrompt(transactionID uuid.UUID) string {
	return fmt.Sprintf("Please rate your transaction with ID %s.\n\n"+
		"Rating your experience with this PFI helps us improve our service.\n\n"+
		"Reply with a number between 1 and 5 to rate the transaction.\n"+
		"1 being a terrible experience and 5 being an excellent experience.", transactionID)
}

// Replies to inbound SMS

func RenderQuoteExpired(transactionID uuid.UUID) string {
	return fmt.Sprintf("Your quote for transaction %s has expired. Please create a new one.", transactionID)
}

func RenderOrderProcessing(transactionID uuid.UUID) string {
	return fmt.Sprintf("Your request to place an order for transaction %s is being processed.", transactionID)
}

func RenderOrderFailed(transactionID uuid.UUID) string {
	return fmt.Sprintf("There was an error submitting your order request for transaction %s. Please try again.", transactionID)
}

func RenderCancelProcessing(transactionID uuid.UUID) string {
	return fmt.Sprintf("Your request to cancel transaction %s is being processed.", transactionID)
}

func RenderCancelFailed(transactionID uuid.UUID) string {
	return fmt.Sprintf("There was an error cancelling your transaction %s. Please try again.", transactionID)
}

const (
	InvalidQuoteReplyText  = "Invalid response received. Please reply with \"1\" to accept the quote or \"0\" to reject it."
	InvalidRatingReplyText = "Invalid rating received. Please reply with a number between 1 and 5."
	RatingThanksText       = "Thank you for rating your transaction and helping improve tbDEX Go."
)
