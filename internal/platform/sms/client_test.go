package sms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-exchange-reconciler/internal/config"
)

func newClient(url string) *Client {
	return NewClient(slog.New(slog.NewJSONHandler(io.Discard, nil)), &config.SMSConfig{
		BaseURL:   url + "/",
		Username:  "sandbox",
		APIKey:    "secret",
		Shortcode: "12345",
		Timeout:   time.Second,
	})
}

func TestClient_Send(t *testing.T) {
	t.Run("PostsFormAndReturnsMessageID", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/version1/messaging", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("apiKey"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "sandbox", r.PostForm.Get("username"))
			assert.Equal(t, "12345", r.PostForm.Get("from"))
			assert.Equal(t, "+233200000000", r.PostForm.Get("to"))
			assert.Equal(t, "hello\nworld", r.PostForm.Get("message"))

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[{"statusCode":101,"number":"+233200000000","status":"Success","messageId":"ATXid_1"}]}}`))
		}))
		defer srv.Close()

		id, err := newClient(srv.URL).Send(context.Background(), "+233200000000", "hello\nworld")
		require.NoError(t, err)
		assert.Equal(t, "ATXid_1", id)
	})

	t.Run("RejectedRecipient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 0/1","Recipients":[{"statusCode":403,"number":"bad","status":"InvalidPhoneNumber"}]}}`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Send(context.Background(), "bad", "hi")
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, 403, rejected.Code)
		assert.Equal(t, "InvalidPhoneNumber", rejected.Status)
	})

	t.Run("NoRecipients", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"InvalidSenderId","Recipients":[]}}`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Send(context.Background(), "+1", "hi")
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "InvalidSenderId", rejected.Status)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Send(context.Background(), "+1", "hi")
		var status *StatusError
		require.True(t, errors.As(err, &status))
		assert.Equal(t, http.StatusServiceUnavailable, status.Code)
		assert.Equal(t, "unavailable", status.Body)
	})

	t.Run("UndecodableBody", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).Send(context.Background(), "+1", "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})
}
