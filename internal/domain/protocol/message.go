// Package protocol models the messages exchanged with counterparties during one
// request-for-quote conversation. A Message is a tagged union discriminated by Kind;
// exactly the payload matching Kind is set.
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedMessage indicates a message that cannot drive the state machine
var ErrMalformedMessage = errors.New("malformed protocol message")

// Kind discriminates protocol messages
type Kind string

const (
	KindRFQ          Kind = "rfq"
	KindQuote        Kind = "quote"
	KindOrder        Kind = "order"
	KindStatusUpdate Kind = "status-update"
	KindClose        Kind = "close"
)

// QuotePayload carries the priced offer of a quote message
type QuotePayload struct {
	PayinAmount    decimal.Decimal
	PayinCurrency  string
	PayoutAmount   decimal.Decimal
	PayoutCurrency string
	Fee            *decimal.Decimal
	ExpiresAt      *time.Time
}

// StatusUpdatePayload carries the counterparty's free-text order status
type StatusUpdatePayload struct {
	Status string
}

// ClosePayload ends a conversation
type ClosePayload struct {
	Success bool
	Reason  string
}

// Message is one protocol message. RFQ and order messages carry no payload.
type Message struct {
	Kind       Kind
	ID         string
	ExchangeID string
	From       string
	To         string
	CreatedAt  time.Time

	Quote        *QuotePayload
	StatusUpdate *StatusUpdatePayload
	Close        *ClosePayload
}

// Validate reports ErrMalformedMessage if the message misses its identity or the
// payload required by its kind
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: %s message without id", ErrMalformedMessage, m.Kind)
	}

	switch m.Kind {
	case KindRFQ, KindOrder:
		return nil
	case KindQuote:
		if m.Quote == nil {
			return fmt.Errorf("%w: quote %s without payload", ErrMalformedMessage, m.ID)
		}
		if m.Quote.PayinCurrency == "" || m.Quote.PayoutCurrency == "" {
			return fmt.Errorf("%w: quote %s without currency", ErrMalformedMessage, m.ID)
		}
		if m.Quote.PayinAmount.IsNegative() || m.Quote.PayoutAmount.IsNegative() {
			return fmt.Errorf("%w: quote %s with negative amount", ErrMalformedMessage, m.ID)
		}
		if m.Quote.Fee != nil && m.Quote.Fee.IsNegative() {
			return fmt.Errorf("%w: quote %s with negative fee", ErrMalformedMessage, m.ID)
		}
		return nil
	case KindStatusUpdate:
		if m.StatusUpdate == nil {
			return fmt.Errorf("%w: status update %s without payload", ErrMalformedMessage, m.ID)
		}
		return nil
	case KindClose:
		if m.Close == nil {
			return fmt.Errorf("%w: close %s without payload", ErrMalformedMessage, m.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q on %s", ErrMalformedMessage, m.Kind, m.ID)
	}
}

// Conversation is the ordered list of messages sharing one exchange id
type Conversation []Message

// RootID returns the id of the opening message, which is the exchange id
func (c Conversation) RootID() string {
	if len(c) == 0 {
		return ""
	}
	return c[0].ID
}

// ExchangeMessages holds a conversation's messages bucketed by kind,
// each bucket in conversation order
type ExchangeMessages struct {
	RFQs          []Message
	Quotes        []Message
	Orders        []Message
	StatusUpdates []Message
	Closes        []Message
}

// Bucket splits a conversation by kind. Any invalid message fails the whole conversation.
func Bucket(c Conversation) (ExchangeMessages, error) {
	var out ExchangeMessages
	for _, m := range c {
		if err := m.Validate(); err != nil {
			return ExchangeMessages{}, err
		}

		switch m.Kind {
		case KindRFQ:
			out.RFQs = append(out.RFQs, m)
		case KindQuote:
			out.Quotes = append(out.Quotes, m)
		case KindOrder:
			out.Orders = append(out.Orders, m)
		case KindStatusUpdate:
			out.StatusUpdates = append(out.StatusUpdates, m)
		case KindClose:
			out.Closes = append(out.Closes, m)
		}
	}
	return out, nil
}

// SortByCreatedAt returns a copy of msgs ordered oldest first. Equal timestamps keep
// their conversation order.
func SortByCreatedAt(msgs []Message) []Message {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// Newest returns the message with the greatest CreatedAt. On a tie the one
// appearing last in msgs wins.
func Newest(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	newest := msgs[0]
	for _, m := range msgs[1:] {
		if !m.CreatedAt.Before(newest.CreatedAt) {
			newest = m
		}
	}
	return newest, true
}
