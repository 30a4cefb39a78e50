package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-gateway/internal/checkout/application"
	"checkout-gateway/internal/checkout/infrastructure/memory"
	"checkout-gateway/pkg/signature"
)

const webhookSecret = "test-webhook-secret"

type stubProcessor struct {
	status string
	method string
	amount int64
}

func (s *stubProcessor) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error) {
	return "order_stub1", nil
}

func (s *stubProcessor) FetchPayment(ctx context.Context, paymentID string) (application.ProcessorPayment, error) {
	return application.ProcessorPayment{ID: paymentID, Status: s.status, Method: s.method, AmountMinor: s.amount}, nil
}

func newTestServer(t *testing.T, testEndpoints bool) (*httptest.Server, *stubProcessor) {
	t.Helper()
	proc := &stubProcessor{status: "captured", method: "card", amount: 10000}
	svc := application.NewService(slog.New(slog.DiscardHandler), application.Config{
		ProcessorKeyID:         "rzp_test_key",
		ProcessorKeySecret:     "rzp_test_secret",
		ProcessorWebhookSecret: signature.Key(webhookSecret),
		InternalWebhookSecret:  signature.Key("internal"),
		DefaultCurrency:        "INR",
		FrontendURL:            "http://localhost:3000",
		AllowUnsignedManual:    testEndpoints,
	}, memory.NewStore(), proc, nil)

	h := NewHandler(slog.New(slog.DiscardHandler), svc, testEndpoints)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, proc
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func createPayment(t *testing.T, srv *httptest.Server, amount float64) map[string]any {
	t.Helper()
	resp, out := postJSON(t, srv.URL+"/create-payment", map[string]any{"amount": amount})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return out
}

func TestCreatePayment(t *testing.T) {
	srv, _ := newTestServer(t, false)

	out := createPayment(t, srv, 100)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["orderId"])
	assert.Equal(t, "order_stub1", out["razorpayOrderId"])
	assert.Equal(t, 100.0, out["amount"])
	assert.Equal(t, "INR", out["currency"])
	assert.Equal(t, "rzp_test_key", out["key"])
	assert.Contains(t, out["paymentUrl"], "/pay?orderId=")
}

func TestCreatePaymentInvalidAmount(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp, out := postJSON(t, srv.URL+"/create-payment", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "amount")

	resp, _ = postJSON(t, srv.URL+"/create-payment", map[string]any{"amount": -10})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentNotConfigured(t *testing.T) {
	svc := application.NewService(slog.New(slog.DiscardHandler), application.Config{DefaultCurrency: "INR"},
		memory.NewStore(), &stubProcessor{}, nil)
	h := NewHandler(slog.New(slog.DiscardHandler), svc, false)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, _ := postJSON(t, srv.URL+"/create-payment", map[string]any{"amount": 100})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestVerifyPaymentProcessorFlow(t *testing.T) {
	srv, _ := newTestServer(t, false)
	created := createPayment(t, srv, 100)
	procOrderID := created["razorpayOrderId"].(string)

	sig := signature.Key(webhookSecret).Sign([]byte(procOrderID + "|pay_42"))
	resp, out := postJSON(t, srv.URL+"/verify-payment", map[string]any{
		"razorpay_order_id":   procOrderID,
		"razorpay_payment_id": "pay_42",
		"razorpay_signature":  sig,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "pay_42", out["transactionId"])

	// order reflects the terminal state
	_, orderOut := getJSON(t, srv.URL+"/order/"+created["orderId"].(string))
	order := orderOut["order"].(map[string]any)
	assert.Equal(t, "success", order["status"])
	assert.Equal(t, "pay_42", order["transactionId"])

	// transaction log has exactly one record
	_, txOut := getJSON(t, srv.URL+"/transactions")
	txs := txOut["transactions"].([]any)
	require.Len(t, txs, 1)
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	srv, _ := newTestServer(t, false)
	created := createPayment(t, srv, 100)

	resp, _ := postJSON(t, srv.URL+"/verify-payment", map[string]any{
		"razorpay_order_id":   created["razorpayOrderId"],
		"razorpay_payment_id": "pay_42",
		"razorpay_signature":  "ffffffff",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	srv, _ := newTestServer(t, false)

	sig := signature.Key(webhookSecret).Sign([]byte("order_ghost|pay_1"))
	resp, _ := postJSON(t, srv.URL+"/verify-payment", map[string]any{
		"razorpay_order_id":   "order_ghost",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  sig,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVerifyPaymentInvalidShape(t *testing.T) {
	srv, _ := newTestServer(t, false)

	resp, _ := postJSON(t, srv.URL+"/verify-payment", map[string]any{"something": "else"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyProcessorPaymentReturnsPaymentBlock(t *testing.T) {
	srv, proc := newTestServer(t, false)
	proc.method = "upi"
	created := createPayment(t, srv, 100)
	procOrderID := created["razorpayOrderId"].(string)

	sig := signature.Key(webhookSecret).Sign([]byte(procOrderID + "|pay_9"))
	resp, out := postJSON(t, srv.URL+"/verify-razorpay-payment", map[string]any{
		"razorpay_order_id":   procOrderID,
		"razorpay_payment_id": "pay_9",
		"razorpay_signature":  sig,
		"orderId":             created["orderId"],
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payment := out["payment"].(map[string]any)
	assert.Equal(t, "pay_9", payment["id"])
	assert.Equal(t, "captured", payment["status"])
	assert.Equal(t, "upi", payment["method"])
	assert.Equal(t, 100.0, payment["amount"], "amount in major units")
}

func TestVerifyProcessorPaymentMissingFields(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resp, _ := postJSON(t, srv.URL+"/verify-razorpay-payment", map[string]any{
		"razorpay_order_id": "order_x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resp, _ := getJSON(t, srv.URL+"/order/ORD-missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSimulatePaymentDisabledInProduction(t *testing.T) {
	srv, _ := newTestServer(t, false)
	b, _ := json.Marshal(map[string]any{"orderId": "ORD-1"})
	resp, err := http.Post(srv.URL+"/simulate-payment", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSimulatePayment(t *testing.T) {
	srv, _ := newTestServer(t, true)
	created := createPayment(t, srv, 100)

	resp, out := postJSON(t, srv.URL+"/simulate-payment", map[string]any{
		"orderId": created["orderId"],
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", out["status"])
	assert.NotEmpty(t, out["transactionId"])

	_, orderOut := getJSON(t, srv.URL+"/order/"+created["orderId"].(string))
	assert.Equal(t, "success", orderOut["order"].(map[string]any)["status"])
}

func TestSimulatePaymentUnknownOrder(t *testing.T) {
	srv, _ := newTestServer(t, true)
	resp, _ := postJSON(t, srv.URL+"/simulate-payment", map[string]any{"orderId": "ORD-nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resp, out := getJSON(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
}
