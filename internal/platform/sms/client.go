// Package sms sends text messages through an Africa's Talking compatible gateway.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-exchange-reconciler/internal/config"
)

const (
	messagingPath = "/version1/messaging"
	maxErrorBody  = 512
)

// Recipient status codes the gateway reports for an accepted message
const (
	statusProcessed = 100
	statusSent      = 101
	statusQueued    = 102
)

// StatusError is returned when the gateway answers with a non-2xx status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sms gateway responded %d: %s", e.Code, e.Body)
}

// RejectedError is returned when the gateway accepted the request but refused the recipient.
// Retrying the same message will not succeed.
type RejectedError struct {
	To     string
	Status string
	Code   int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("sms to %s rejected: %s (%d)", e.To, e.Status, e.Code)
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// Client posts messages to the gateway's bulk messaging endpoint
type Client struct {
	baseURL  string
	username string
	apiKey   string
	from     string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(logger *slog.Logger, cfg *config.SMSConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		apiKey:   cfg.APIKey,
		from:     cfg.Shortcode,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With("component", "sms_client"),
	}
}

// Send delivers message to one phone number and returns the gateway message id
func (c *Client) Send(ctx context.Context, to, message string) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("from", c.from)
	form.Set("to", to)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagingPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Failed to reach sms gateway", "error", err)
		return "", fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode sms gateway response: %w", err)
	}
	if len(decoded.SMSMessageData.Recipients) == 0 {
		return "", &RejectedError{To: to, Status: decoded.SMSMessageData.Message}
	}

	recipient := decoded.SMSMessageData.Recipients[0]
	switch recipient.StatusCode {
	case statusProcessed, statusSent, statusQueued:
		c.logger.Debug("SMS accepted", "message_id", recipient.MessageID, "status", recipient.Status)
		return recipient.MessageID, nil
	default:
		return "", &RejectedError{To: to, Status: recipient.Status, Code: recipient.StatusCode}
	}
}
