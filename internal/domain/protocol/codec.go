package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// wire kinds as sent by counterparties
const (
	wireKindRFQ         = "rfq"
	wireKindQuote       = "quote"
	wireKindOrder       = "order"
	wireKindOrderStatus = "orderstatus"
	wireKindClose       = "close"
)

type wireMetadata struct {
	Kind       string    `json:"kind"`
	ID         string    `json:"id"`
	ExchangeID string    `json:"exchangeId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	CreatedAt  time.Time `json:"createdAt"`
}

type wireEnvelope struct {
	Metadata wireMetadata    `json:"metadata"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type wireAmount struct {
	CurrencyCode string           `json:"currencyCode"`
	Amount       decimal.Decimal  `json:"amount"`
	Fee          *decimal.Decimal `json:"fee,omitempty"`
}

type wireQuote struct {
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Payin     wireAmount `json:"payin"`
	Payout    wireAmount `json:"payout"`
}

type wireStatus struct {
	OrderStatus string `json:"orderStatus"`
}

type wireClose struct {
	Success *bool  `json:"success,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// UnmarshalJSON decodes a counterparty envelope. Unknown kinds decode without a
// payload and are rejected later by Validate.
func (m *Message) UnmarshalJSON(b []byte) error {
	var env wireEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	*m = Message{
		ID:         env.Metadata.ID,
		ExchangeID: env.Metadata.ExchangeID,
		From:       env.Metadata.From,
		To:         env.Metadata.To,
		CreatedAt:  env.Metadata.CreatedAt,
	}

	switch env.Metadata.Kind {
	case wireKindRFQ:
		m.Kind = KindRFQ
	case wireKindOrder:
		m.Kind = KindOrder
	case wireKindQuote:
		m.Kind = KindQuote
		var q wireQuote
		if err := decodeData(env.Data, &q); err != nil {
			return err
		}
		m.Quote = &QuotePayload{
			PayinAmount:    q.Payin.Amount,
			PayinCurrency:  q.Payin.CurrencyCode,
			PayoutAmount:   q.Payout.Amount,
			PayoutCurrency: q.Payout.CurrencyCode,
			Fee:            q.Payin.Fee,
			ExpiresAt:      q.ExpiresAt,
		}
	case wireKindOrderStatus:
		m.Kind = KindStatusUpdate
		var s wireStatus
		if err := decodeData(env.Data, &s); err != nil {
			return err
		}
		m.StatusUpdate = &StatusUpdatePayload{Status: s.OrderStatus}
	case wireKindClose:
		m.Kind = KindClose
		var c wireClose
		if err := decodeData(env.Data, &c); err != nil {
			return err
		}
		// only an explicit false marks a failed close
		m.Close = &ClosePayload{Success: c.Success == nil || *c.Success, Reason: c.Reason}
	default:
		m.Kind = Kind(env.Metadata.Kind)
	}

	return nil
}

// MarshalJSON encodes the message in the counterparty envelope format
func (m Message) MarshalJSON() ([]byte, error) {
	env := wireEnvelope{
		Metadata: wireMetadata{
			ID:         m.ID,
			ExchangeID: m.ExchangeID,
			From:       m.From,
			To:         m.To,
			CreatedAt:  m.CreatedAt,
		},
	}

	var data any
	switch m.Kind {
	case KindRFQ:
		env.Metadata.Kind = wireKindRFQ
	case KindOrder:
		env.Metadata.Kind = wireKindOrder
		data = struct{}{}
	case KindQuote:
		env.Metadata.Kind = wireKindQuote
		if m.Quote != nil {
			data = wireQuote{
				ExpiresAt: m.Quote.ExpiresAt,
				Payin:     wireAmount{CurrencyCode: m.Quote.PayinCurrency, Amount: m.Quote.PayinAmount, Fee: m.Quote.Fee},
				Payout:    wireAmount{CurrencyCode: m.Quote.PayoutCurrency, Amount: m.Quote.PayoutAmount},
			}
		}
	case KindStatusUpdate:
		env.Metadata.Kind = wireKindOrderStatus
		if m.StatusUpdate != nil {
			data = wireStatus{OrderStatus: m.StatusUpdate.Status}
		}
	case KindClose:
		env.Metadata.Kind = wireKindClose
		if m.Close != nil {
			success := m.Close.Success
			data = wireClose{Success: &success, Reason: m.Close.Reason}
		}
	default:
		env.Metadata.Kind = string(m.Kind)
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}

	return json.Marshal(env)
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedMessage)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
