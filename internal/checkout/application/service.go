package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"checkout-gateway/internal/checkout/domain"
	"checkout-gateway/pkg/signature"
)

// Config carries the lifecycle manager's explicit configuration; nothing is
// read from the environment here.
type Config struct {
	ProcessorKeyID         string
	ProcessorKeySecret     string
	ProcessorWebhookSecret signature.Key
	InternalWebhookSecret  signature.Key
	DefaultCurrency        string
	FrontendURL            string

	// AllowUnsignedManual permits manual confirmations without a signature.
	// Local/test deployments only; production keeps this off.
	AllowUnsignedManual bool
}

// Service drives the order lifecycle: creation against the processor,
// verified confirmations, and the pending -> success/failed transition.
type Service struct {
	log       *slog.Logger
	cfg       Config
	store     OrderStore
	processor ProcessorClient
	guard     DuplicateGuard
}

func NewService(log *slog.Logger, cfg Config, store OrderStore, processor ProcessorClient, guard DuplicateGuard) *Service {
	return &Service{
		log:       log,
		cfg:       cfg,
		store:     store,
		processor: processor,
		guard:     guard,
	}
}

type CreateResult struct {
	OrderID          string
	ProcessorOrderID string
	Amount           decimal.Decimal
	Currency         string
	ClientKey        string
	PaymentURL       string
}

type ConfirmResult struct {
	OrderID         string
	Status          domain.OrderStatus
	TransactionID   string
	PaymentMethod   string
	Amount          decimal.Decimal
	ProcessorStatus string
}

// CreateOrder mints a processor-side order and persists a pending Order. The
// processor call happens before the durable write, so a processor failure
// leaves no partial state behind.
func (s *Service) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, customerID, description string) (CreateResult, error) {
	if amount.Sign() <= 0 {
		return CreateResult{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidRequest)
	}
	if s.cfg.ProcessorKeyID == "" || s.cfg.ProcessorKeySecret == "" {
		return CreateResult{}, fmt.Errorf("%w: missing processor credentials", domain.ErrNotConfigured)
	}
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if description == "" {
		description = "Payment"
	}

	order := domain.NewOrder(amount, currency, customerID, description)

	notes := map[string]string{"description": description}
	if customerID != "" {
		notes["customerId"] = customerID
	}

	processorOrderID, err := s.processor.CreateOrder(ctx, MinorUnits(amount), currency, order.OrderID, notes)
	if err != nil {
		return CreateResult{}, err
	}
	order.ProcessorOrderID = processorOrderID

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return CreateResult{}, err
	}
	s.log.Info("order created", "order_id", order.OrderID, "processor_order_id", processorOrderID, "amount", amount.String(), "currency", currency)

	return CreateResult{
		OrderID:          order.OrderID,
		ProcessorOrderID: processorOrderID,
		Amount:           amount,
		Currency:         currency,
		ClientKey:        s.cfg.ProcessorKeyID,
		PaymentURL: fmt.Sprintf("%s/pay?orderId=%s&processorOrderId=%s&amount=%s",
			strings.TrimRight(s.cfg.FrontendURL, "/"), order.OrderID, processorOrderID, amount.String()),
	}, nil
}

// ConfirmPayment applies a verified confirmation to its order. Re-delivered
// confirmations are recognized by transaction id and answered with the
// existing terminal state.
func (s *Service) ConfirmPayment(ctx context.Context, c domain.Confirmation) (ConfirmResult, error) {
	switch {
	case c.Processor != nil:
		return s.confirmProcessor(ctx, c.Processor)
	case c.Manual != nil:
		return s.confirmManual(ctx, c.Manual)
	default:
		return ConfirmResult{}, fmt.Errorf("%w: unrecognized confirmation shape", domain.ErrInvalidRequest)
	}
}

func (s *Service) confirmProcessor(ctx context.Context, pc *domain.ProcessorConfirmation) (ConfirmResult, error) {
	if pc.ProcessorOrderID == "" || pc.ProcessorPaymentID == "" || pc.Signature == "" {
		return ConfirmResult{}, fmt.Errorf("%w: missing processor payment details", domain.ErrInvalidRequest)
	}
	if !s.cfg.ProcessorWebhookSecret.VerifyProcessor(pc.ProcessorOrderID, pc.ProcessorPaymentID, pc.Signature) {
		return ConfirmResult{}, fmt.Errorf("%w: processor webhook signature mismatch", domain.ErrUnauthorized)
	}

	order, err := s.store.GetOrderByProcessorOrderID(ctx, pc.ProcessorOrderID)
	if err != nil && pc.OrderID != "" {
		order, err = s.store.GetOrder(ctx, pc.OrderID)
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	if s.alreadyRecorded(ctx, pc.ProcessorPaymentID) {
		s.log.Info("duplicate confirmation skipped", "order_id", order.OrderID, "transaction_id", pc.ProcessorPaymentID)
		return ConfirmResult{
			OrderID:       order.OrderID,
			Status:        order.Status,
			TransactionID: pc.ProcessorPaymentID,
			Amount:        order.Amount,
		}, nil
	}

	payment, err := s.processor.FetchPayment(ctx, pc.ProcessorPaymentID)
	if err != nil {
		return ConfirmResult{}, err
	}

	status := domain.StatusFailed
	if payment.Status == "captured" || payment.Status == "authorized" {
		status = domain.StatusSuccess
	}

	tx := domain.Transaction{
		TransactionID:      pc.ProcessorPaymentID,
		OrderID:            order.OrderID,
		ProcessorOrderID:   order.ProcessorOrderID,
		ProcessorPaymentID: pc.ProcessorPaymentID,
		Amount:             order.Amount,
		Currency:           order.Currency,
		Status:             status,
		PaymentMethod:      payment.Method,
		CreatedAt:          time.Now().UTC(),
	}

	updated, err := s.finalize(ctx, order, status, tx)
	if err != nil {
		return ConfirmResult{}, err
	}
	return ConfirmResult{
		OrderID:         updated.OrderID,
		Status:          updated.Status,
		TransactionID:   tx.TransactionID,
		PaymentMethod:   payment.Method,
		Amount:          MajorUnits(payment.AmountMinor),
		ProcessorStatus: payment.Status,
	}, nil
}

func (s *Service) confirmManual(ctx context.Context, mc *domain.ManualConfirmation) (ConfirmResult, error) {
	if mc.OrderID == "" || mc.Status == "" || mc.TransactionID == "" {
		return ConfirmResult{}, fmt.Errorf("%w: missing required fields", domain.ErrInvalidRequest)
	}
	if mc.Status != domain.StatusSuccess && mc.Status != domain.StatusFailed {
		return ConfirmResult{}, fmt.Errorf("%w: status must be success or failed", domain.ErrInvalidRequest)
	}

	if mc.Signature != "" {
		payload := signature.ConfirmationPayload{
			OrderID:       mc.OrderID,
			Status:        string(mc.Status),
			TransactionID: mc.TransactionID,
			Amount:        mc.Amount.String(),
		}
		if !s.cfg.InternalWebhookSecret.VerifyConfirmation(payload, mc.Signature) {
			return ConfirmResult{}, fmt.Errorf("%w: confirmation signature mismatch", domain.ErrUnauthorized)
		}
	} else if !s.cfg.AllowUnsignedManual {
		return ConfirmResult{}, fmt.Errorf("%w: confirmation signature required", domain.ErrUnauthorized)
	}

	order, err := s.store.GetOrder(ctx, mc.OrderID)
	if err != nil {
		return ConfirmResult{}, err
	}

	if s.alreadyRecorded(ctx, mc.TransactionID) {
		s.log.Info("duplicate confirmation skipped", "order_id", order.OrderID, "transaction_id", mc.TransactionID)
		return ConfirmResult{
			OrderID:       order.OrderID,
			Status:        order.Status,
			TransactionID: mc.TransactionID,
			Amount:        order.Amount,
		}, nil
	}

	tx := domain.Transaction{
		TransactionID:    mc.TransactionID,
		OrderID:          order.OrderID,
		ProcessorOrderID: order.ProcessorOrderID,
		Amount:           order.Amount,
		Currency:         order.Currency,
		Status:           mc.Status,
		CreatedAt:        time.Now().UTC(),
	}

	updated, err := s.finalize(ctx, order, mc.Status, tx)
	if err != nil {
		return ConfirmResult{}, err
	}
	return ConfirmResult{
		OrderID:       updated.OrderID,
		Status:        updated.Status,
		TransactionID: tx.TransactionID,
		Amount:        order.Amount,
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// SimulateConfirmation signs a synthetic manual confirmation and replays it
// through the regular manual path, so it exercises the same invariants as a
// real delivery. Test deployments only.
func (s *Service) SimulateConfirmation(ctx context.Context, orderID string, status domain.OrderStatus) (ConfirmResult, error) {
	if orderID == "" {
		return ConfirmResult{}, fmt.Errorf("%w: order id required", domain.ErrInvalidRequest)
	}
	if status == "" {
		status = domain.StatusSuccess
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return ConfirmResult{}, err
	}

	transactionID := domain.NewTransactionID()
	sig := s.cfg.InternalWebhookSecret.SignConfirmation(signature.ConfirmationPayload{
		OrderID:       orderID,
		Status:        string(status),
		TransactionID: transactionID,
		Amount:        order.Amount.String(),
	})

	return s.confirmManual(ctx, &domain.ManualConfirmation{
		OrderID:       orderID,
		Status:        status,
		TransactionID: transactionID,
		Signature:     sig,
		Amount:        order.Amount,
	})
}

// finalize persists the transition and stages the outbox event.
func (s *Service) finalize(ctx context.Context, order domain.Order, status domain.OrderStatus, tx domain.Transaction) (domain.Order, error) {
	eventType, payload := confirmationEvent(order, tx)
	updated, applied, err := s.store.FinalizeOrder(ctx, order.OrderID, status, tx, eventType, payload, traceparentFromContext(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	if applied {
		if s.guard != nil {
			_, _ = s.guard.Seen(ctx, tx.TransactionID)
		}
		s.log.Info("order finalized", "order_id", updated.OrderID, "status", updated.Status, "transaction_id", tx.TransactionID)
	} else {
		s.log.Info("confirmation ignored, order already terminal", "order_id", updated.OrderID, "status", updated.Status)
	}
	return updated, nil
}

// alreadyRecorded reports whether a confirmation with this transaction id has
// been durably applied. The redis guard is only a pre-filter; the store
// answer is authoritative.
func (s *Service) alreadyRecorded(ctx context.Context, transactionID string) bool {
	if s.guard != nil {
		if dup, err := s.guard.Seen(ctx, transactionID); err == nil && !dup {
			return false
		}
	}
	exists, err := s.store.TransactionExists(ctx, transactionID)
	if err != nil {
		return false
	}
	return exists
}

func confirmationEvent(order domain.Order, tx domain.Transaction) (string, []byte) {
	if tx.Status == domain.StatusSuccess {
		payload, _ := json.Marshal(domain.PaymentConfirmed{
			OrderID:          order.OrderID,
			ProcessorOrderID: order.ProcessorOrderID,
			TransactionID:    tx.TransactionID,
			Amount:           tx.Amount,
			Currency:         tx.Currency,
		})
		return "PaymentConfirmed", payload
	}
	payload, _ := json.Marshal(domain.PaymentFailed{
		OrderID:       order.OrderID,
		TransactionID: tx.TransactionID,
		Reason:        "processor reported failure",
	})
	return "PaymentFailed", payload
}

// MinorUnits converts a major-unit amount to the processor's integer minor
// unit, rounding halves away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MajorUnits re-expresses a processor minor-unit amount in major units.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}

func traceparentFromContext(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"]
}
