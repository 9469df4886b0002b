package handler

import (
	"time"

	"github.com/go-exchange-reconciler/internal/api_gateway/service"
)

// InboundSMSRequest is the form body of the gateway's incoming message callback
type InboundSMSRequest struct {
	LinkID string `form:"linkId"`
	Text   string `form:"text"`
	From   string `form:"from" binding:"required"`
	To     string `form:"to" binding:"required"`
	Date   string `form:"date"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID         string `json:"id"`
	ExchangeID string `json:"exchange_id"`
	PFIDID     string `json:"pfi_did"`
	OfferingID string `json:"offering_id,omitempty"`
	Amount     string `json:"amount"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Processing bool   `json:"processing"`
	CreatedAt  string `json:"created_at"`
}

// TransactionListResponse represents a user's transaction history
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// WalletBalanceResponse is the balance of one Go Wallet currency
type WalletBalanceResponse struct {
	CurrencyCode string `json:"currency_code"`
	Amount       string `json:"amount"`
}

// BalancesResponse represents a user's Go Credit and Go Wallet balances
type BalancesResponse struct {
	Credits int64                   `json:"credits"`
	Wallets []WalletBalanceResponse `json:"wallets"`
}

func mapTransactionToResponse(v service.TransactionView) TransactionResponse {
	return TransactionResponse{
		ID:         v.ID.String(),
		ExchangeID: v.ExchangeID,
		PFIDID:     v.PFIDID,
		OfferingID: v.OfferingID,
		Amount:     v.Amount,
		Type:       string(v.Type),
		Status:     string(v.Status),
		Processing: v.Processing,
		CreatedAt:  v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapBalancesToResponse(b *service.Balances) BalancesResponse {
	out := BalancesResponse{Credits: b.Credits, Wallets: make([]WalletBalanceResponse, 0, len(b.Wallets))}
	for _, w := range b.Wallets {
		out.Wallets = append(out.Wallets, WalletBalanceResponse{CurrencyCode: w.CurrencyCode, Amount: w.Amount.StringFixed(2)})
	}
	return out
}
