// Package razorpay implements the ProcessorClient against the Razorpay v1
// API. The processor is treated as fallible and latent: every call carries
// the request context and the client enforces a hard timeout.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"checkout-gateway/internal/checkout/application"
	"checkout-gateway/internal/checkout/domain"
)

const DefaultBaseURL = "https://api.razorpay.com/v1"

type Client struct {
	log       *slog.Logger
	baseURL   *url.URL
	keyID     string
	keySecret string
	client    *http.Client
}

func NewClient(log *slog.Logger, baseURL, keyID, keySecret string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		log:       log,
		baseURL:   u,
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder mints a processor-side order for the given minor-unit amount
// and returns its id. The receipt is our internal order id.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error) {
	var resp orderResponse
	err := c.do(ctx, http.MethodPost, "/orders", createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: order response missing id", domain.ErrProcessor)
	}
	return resp.ID, nil
}

type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Method string `json:"method"`
	Amount int64  `json:"amount"`
}

// FetchPayment returns the processor's authoritative view of a payment.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (application.ProcessorPayment, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		return application.ProcessorPayment{}, err
	}
	return application.ProcessorPayment{
		ID:          resp.ID,
		Status:      resp.Status,
		Method:      resp.Method,
		AmountMinor: resp.Amount,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, &buf)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProcessor, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("processor request failed", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrProcessor, method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response body", domain.ErrProcessor)
	}
	return nil
}
