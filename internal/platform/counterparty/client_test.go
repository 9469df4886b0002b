package counterparty

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-exchange-reconciler/internal/domain/protocol"
	"github.com/go-exchange-reconciler/internal/platform/identity"
)

const pfiDID = "did:dht:pfi"

var requester = identity.Identity{URI: "did:dht:alice"}

func newClient(url string) *HTTPClient {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewHTTPClient(logger, map[string]string{pfiDID: url}, time.Second)
	c.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestHTTPClient_FetchConversations(t *testing.T) {
	t.Run("decodes conversations", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/exchanges", r.URL.Path)
			assert.Equal(t, "Bearer did:dht:alice", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[[
				{"metadata":{"kind":"rfq","id":"rfq_1","exchangeId":"rfq_1","createdAt":"2024-06-01T10:00:00Z"},"data":{}},
				{"metadata":{"kind":"quote","id":"quote_1","exchangeId":"rfq_1","createdAt":"2024-06-01T10:01:00Z"},
				 "data":{"payin":{"currencyCode":"USD","amount":"100","fee":"2"},"payout":{"currencyCode":"GHS","amount":"90"}}}
			]]}`))
		}))
		defer srv.Close()

		convs, err := newClient(srv.URL).FetchConversations(context.Background(), requester, pfiDID)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "rfq_1", convs[0].RootID())
		require.Len(t, convs[0], 2)
		assert.Equal(t, protocol.KindQuote, convs[0][1].Kind)
		assert.Equal(t, "100", convs[0][1].Quote.PayinAmount.String())
	})

	t.Run("unknown counterparty", func(t *testing.T) {
		_, err := newClient("http://unused").FetchConversations(context.Background(), requester, "did:dht:other")
		assert.ErrorIs(t, err, ErrUnknownCounterparty)
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).FetchConversations(context.Background(), requester, pfiDID)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
		assert.Equal(t, "unauthorized", statusErr.Body)
	})

	t.Run("malformed message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[[{"metadata":{"kind":"quote","id":"quote_1"}}]]}`))
		}))
		defer srv.Close()

		_, err := newClient(srv.URL).FetchConversations(context.Background(), requester, pfiDID)
		assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
	})
}

func TestHTTPClient_Submit(t *testing.T) {
	var gotPath string
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	c := newClient(srv.URL)

	t.Run("order", func(t *testing.T) {
		msg, err := c.SubmitOrder(context.Background(), requester, pfiDID, "rfq_1")
		require.NoError(t, err)
		assert.Equal(t, "/exchanges/rfq_1/order", gotPath)
		assert.Equal(t, protocol.KindOrder, msg.Kind)
		assert.Equal(t, "did:dht:alice", msg.From)
		assert.Contains(t, string(got["metadata"]), `"kind":"order"`)
	})

	t.Run("close", func(t *testing.T) {
		msg, err := c.SubmitClose(context.Background(), requester, pfiDID, "rfq_1", "User cancelled transaction")
		require.NoError(t, err)
		assert.Equal(t, "/exchanges/rfq_1/close", gotPath)
		require.NotNil(t, msg.Close)
		assert.False(t, msg.Close.Success)
		assert.JSONEq(t, `{"success":false,"reason":"User cancelled transaction"}`, string(got["data"]))
	})
}
