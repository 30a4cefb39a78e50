package razorpay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-gateway/internal/checkout/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(slog.New(slog.DiscardHandler), srv.URL, "key_id", "key_secret")
	require.NoError(t, err)
	return c
}

func TestCreateOrder(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "order_abc", "status": "created"})
	})

	id, err := c.CreateOrder(context.Background(), 10000, "INR", "ORD-1", map[string]string{"customer_id": "cust-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", id)

	assert.Equal(t, "/orders", gotPath)
	assert.Equal(t, "key_id", gotUser)
	assert.Equal(t, "key_secret", gotPass)
	assert.Equal(t, 10000.0, gotBody["amount"])
	assert.Equal(t, "INR", gotBody["currency"])
	assert.Equal(t, "ORD-1", gotBody["receipt"])
	assert.Equal(t, map[string]any{"customer_id": "cust-1"}, gotBody["notes"])
}

func TestCreateOrderMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "created"})
	})

	_, err := c.CreateOrder(context.Background(), 10000, "INR", "ORD-1", nil)
	assert.ErrorIs(t, err, domain.ErrProcessor)
}

func TestCreateOrderHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"description":"Authentication failed"}}`, http.StatusUnauthorized)
	})

	_, err := c.CreateOrder(context.Background(), 10000, "INR", "ORD-1", nil)
	assert.ErrorIs(t, err, domain.ErrProcessor)
}

func TestFetchPayment(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "pay_1",
			"status": "captured",
			"method": "upi",
			"amount": 10000,
		})
	})

	p, err := c.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "/payments/pay_1", gotPath)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, "captured", p.Status)
	assert.Equal(t, "upi", p.Method)
	assert.Equal(t, int64(10000), p.AmountMinor)
}

func TestFetchPaymentMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := c.FetchPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, domain.ErrProcessor)
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	c, err := NewClient(slog.New(slog.DiscardHandler), "", "k", "s")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL.String())
}
