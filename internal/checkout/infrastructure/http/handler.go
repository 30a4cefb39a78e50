// Package http exposes the order lifecycle over the wire format the checkout
// frontend consumes. It validates input shapes, parses confirmations into
// their explicit variants and maps lifecycle errors to status codes; business
// logic stays in the application layer.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"checkout-gateway/internal/checkout/application"
	"checkout-gateway/internal/checkout/domain"
)

type Handler struct {
	log           *slog.Logger
	service       *application.Service
	tracer        trace.Tracer
	testEndpoints bool
}

func NewHandler(log *slog.Logger, service *application.Service, testEndpoints bool) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		tracer:        otel.Tracer("checkout-http"),
		testEndpoints: testEndpoints,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/create-payment", h.createPayment)
	r.Post("/verify-payment", h.verifyPayment)
	r.Post("/verify-razorpay-payment", h.verifyProcessorPayment)
	r.Get("/order/{orderID}", h.getOrder)
	r.Get("/transactions", h.listTransactions)
	r.Post("/simulate-payment", h.simulatePayment)
	r.Get("/healthz", h.healthz)
	return r
}

type createPaymentReq struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CustomerID  string          `json:"customerId"`
	Description string          `json:"description"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePayment")
	defer span.End()

	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid body", domain.ErrInvalidRequest))
		return
	}

	res, err := h.service.CreateOrder(ctx, req.Amount, req.Currency, req.CustomerID, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"orderId":         res.OrderID,
		"razorpayOrderId": res.ProcessorOrderID,
		"amount":          res.Amount.InexactFloat64(),
		"currency":        res.Currency,
		"key":             res.ClientKey,
		"paymentUrl":      res.PaymentURL,
	})
}

// confirmationReq covers both confirmation shapes the endpoint accepts; the
// populated fields decide which variant is built.
type confirmationReq struct {
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	RazorpaySignature string          `json:"razorpay_signature"`
	OrderID           string          `json:"orderId"`
	Status            string          `json:"status"`
	TransactionID     string          `json:"transactionId"`
	Signature         string          `json:"signature"`
	Amount            decimal.Decimal `json:"amount"`
}

func (req confirmationReq) confirmation() (domain.Confirmation, error) {
	switch {
	case req.RazorpayOrderID != "" && req.RazorpayPaymentID != "" && req.RazorpaySignature != "":
		return domain.Confirmation{Processor: &domain.ProcessorConfirmation{
			ProcessorOrderID:   req.RazorpayOrderID,
			ProcessorPaymentID: req.RazorpayPaymentID,
			Signature:          req.RazorpaySignature,
			OrderID:            req.OrderID,
		}}, nil
	case req.OrderID != "" && req.TransactionID != "":
		return domain.Confirmation{Manual: &domain.ManualConfirmation{
			OrderID:       req.OrderID,
			Status:        domain.OrderStatus(req.Status),
			TransactionID: req.TransactionID,
			Signature:     req.Signature,
			Amount:        req.Amount,
		}}, nil
	default:
		return domain.Confirmation{}, fmt.Errorf("%w: unrecognized confirmation shape", domain.ErrInvalidRequest)
	}
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	var req confirmationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid body", domain.ErrInvalidRequest))
		return
	}
	c, err := req.confirmation()
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.service.ConfirmPayment(ctx, c)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"orderId":       res.OrderID,
		"status":        res.Status,
		"transactionId": res.TransactionID,
	})
}

// verifyProcessorPayment is the frontend-initiated confirmation: same
// semantics as the webhook's processor path, but the response echoes the
// processor's payment details for display.
func (h *Handler) verifyProcessorPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyProcessorPayment")
	defer span.End()

	var req confirmationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid body", domain.ErrInvalidRequest))
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		h.writeError(w, fmt.Errorf("%w: missing processor payment details", domain.ErrInvalidRequest))
		return
	}

	res, err := h.service.ConfirmPayment(ctx, domain.Confirmation{Processor: &domain.ProcessorConfirmation{
		ProcessorOrderID:   req.RazorpayOrderID,
		ProcessorPaymentID: req.RazorpayPaymentID,
		Signature:          req.RazorpaySignature,
		OrderID:            req.OrderID,
	}})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"orderId":       res.OrderID,
		"status":        res.Status,
		"transactionId": res.TransactionID,
		"payment": map[string]any{
			"id":     res.TransactionID,
			"status": res.ProcessorStatus,
			"method": res.PaymentMethod,
			"amount": res.Amount.InexactFloat64(),
		},
	})
}

type orderDTO struct {
	OrderID           string    `json:"orderId"`
	RazorpayOrderID   string    `json:"razorpayOrderId,omitempty"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	CustomerID        string    `json:"customerId,omitempty"`
	Description       string    `json:"description,omitempty"`
	Status            string    `json:"status"`
	TransactionID     string    `json:"transactionId,omitempty"`
	RazorpayPaymentID string    `json:"razorpayPaymentId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toOrderDTO(o domain.Order) orderDTO {
	return orderDTO{
		OrderID:           o.OrderID,
		RazorpayOrderID:   o.ProcessorOrderID,
		Amount:            o.Amount.InexactFloat64(),
		Currency:          o.Currency,
		CustomerID:        o.CustomerID,
		Description:       o.Description,
		Status:            string(o.Status),
		TransactionID:     o.TransactionID,
		RazorpayPaymentID: o.ProcessorPaymentID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": toOrderDTO(o)})
}

type transactionDTO struct {
	TransactionID   string    `json:"transactionId"`
	OrderID         string    `json:"orderId"`
	RazorpayOrderID string    `json:"razorpayOrderId,omitempty"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	PaymentMethod   string    `json:"paymentMethod,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListTransactions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, transactionDTO{
			TransactionID:   t.TransactionID,
			OrderID:         t.OrderID,
			RazorpayOrderID: t.ProcessorOrderID,
			Amount:          t.Amount.InexactFloat64(),
			Currency:        t.Currency,
			Status:          string(t.Status),
			PaymentMethod:   t.PaymentMethod,
			CreatedAt:       t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactions": dtos})
}

type simulatePaymentReq struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (h *Handler) simulatePayment(w http.ResponseWriter, r *http.Request) {
	if !h.testEndpoints {
		http.NotFound(w, r)
		return
	}
	ctx, span := h.tracer.Start(r.Context(), "SimulatePayment")
	defer span.End()

	var req simulatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid body", domain.ErrInvalidRequest))
		return
	}

	res, err := h.service.SimulateConfirmation(ctx, req.OrderID, domain.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Payment simulated",
		"orderId":       res.OrderID,
		"status":        res.Status,
		"transactionId": res.TransactionID,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
