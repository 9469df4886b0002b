// Package counterparty talks to PFI exchange endpoints over HTTP.
package counterparty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/go-exchange-reconciler/internal/domain/protocol"
	"github.com/go-exchange-reconciler/internal/platform/identity"
)

// ErrUnknownCounterparty indicates a PFI DID with no configured endpoint
var ErrUnknownCounterparty = errors.New("unknown counterparty")

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// StatusError is returned when a counterparty answers with a non-2xx status
type StatusError struct {
	PFIDID string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("counterparty %s responded %d: %s", e.PFIDID, e.Code, e.Body)
}

type exchangesResponse struct {
	Data []protocol.Conversation `json:"data"`
}

// HTTPClient fetches conversations from and submits messages to PFIs
type HTTPClient struct {
	endpoints map[string]string
	http      *http.Client
	now       func() time.Time
	logger    *slog.Logger
}

// NewHTTPClient creates a client for the PFIs in endpoints, keyed by DID
func NewHTTPClient(logger *slog.Logger, endpoints map[string]string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
		now:       time.Now,
		logger:    logger.With("component", "counterparty_client"),
	}
}

// FetchConversations returns every conversation the requester has with the PFI
func (c *HTTPClient) FetchConversations(ctx context.Context, requester identity.Identity, pfiDID string) ([]protocol.Conversation, error) {
	endpoint, err := c.endpoint(pfiDID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/exchanges", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build exchanges request: %w", err)
	}
	c.authorize(req, requester)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch exchanges", "pfi_did", pfiDID, "error", err)
		return nil, fmt.Errorf("failed to fetch exchanges from %s: %w", pfiDID, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(pfiDID, resp); err != nil {
		return nil, err
	}

	var body exchangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode exchanges from %s: %w", pfiDID, err)
	}
	return body.Data, nil
}

// SubmitOrder places an order on the exchange and returns the submitted message
func (c *HTTPClient) SubmitOrder(ctx context.Context, requester identity.Identity, pfiDID, exchangeID string) (protocol.Message, error) {
	msg := protocol.Message{
		Kind:       protocol.KindOrder,
		ID:         "order_" + uuid.NewString(),
		ExchangeID: exchangeID,
		From:       requester.URI,
		To:         pfiDID,
		CreatedAt:  c.now().UTC(),
	}
	return msg, c.submit(ctx, requester, pfiDID, exchangeID, "order", msg)
}

// SubmitClose closes the exchange as failed with reason and returns the submitted message
func (c *HTTPClient) SubmitClose(ctx context.Context, requester identity.Identity, pfiDID, exchangeID, reason string) (protocol.Message, error) {
	msg := protocol.Message{
		Kind:       protocol.KindClose,
		ID:         "close_" + uuid.NewString(),
		ExchangeID: exchangeID,
		From:       requester.URI,
		To:         pfiDID,
		CreatedAt:  c.now().UTC(),
		Close:      &protocol.ClosePayload{Success: false, Reason: reason},
	}
	return msg, c.submit(ctx, requester, pfiDID, exchangeID, "close", msg)
}

func (c *HTTPClient) submit(ctx context.Context, requester identity.Identity, pfiDID, exchangeID, action string, msg protocol.Message) error {
	endpoint, err := c.endpoint(pfiDID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", action, err)
	}

	url := fmt.Sprintf("%s/exchanges/%s/%s", endpoint, exchangeID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, requester)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Failed to submit message", "action", action, "pfi_did", pfiDID, "exchange_id", exchangeID, "error", err)
		return fmt.Errorf("failed to submit %s to %s: %w", action, pfiDID, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(pfiDID, resp); err != nil {
		return err
	}
	c.logger.Info("Submitted message", "action", action, "pfi_did", pfiDID, "exchange_id", exchangeID, "message_id", msg.ID)
	return nil
}

func (c *HTTPClient) endpoint(pfiDID string) (string, error) {
	endpoint, ok := c.endpoints[pfiDID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCounterparty, pfiDID)
	}
	return endpoint, nil
}

func (c *HTTPClient) authorize(req *http.Request, requester identity.Identity) {
	req.Header.Set("Authorization", "Bearer "+requester.URI)
	req.Header.Set("Accept", "application/json")
}

func checkStatus(pfiDID string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{PFIDID: pfiDID, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}
