package application

import (
	"context"

	"checkout-gateway/internal/checkout/domain"
)

// OrderStore is the durable order/transaction mapping. FinalizeOrder must be
// atomic per order: implementations serialize the status check, transaction
// append and outbox staging under a per-order lock or row lock.
type OrderStore interface {
	CreateOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderByProcessorOrderID(ctx context.Context, processorOrderID string) (domain.Order, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	TransactionExists(ctx context.Context, transactionID string) (bool, error)

	// FinalizeOrder applies a verified confirmation: set the terminal status,
	// record the transaction and stage an outbox event, all in one atomic
	// step. It returns the resulting order and whether the confirmation was
	// applied; applied=false means the order was already terminal or the
	// transaction already recorded, with no mutation performed.
	FinalizeOrder(ctx context.Context, orderID string, status domain.OrderStatus, tx domain.Transaction, eventType string, payload []byte, traceparent string) (domain.Order, bool, error)
}

// ProcessorPayment is the processor's authoritative view of one payment.
type ProcessorPayment struct {
	ID          string
	Status      string
	Method      string
	AmountMinor int64
}

// ProcessorClient talks to the external payment processor. Both calls are
// network bound and must respect ctx deadlines.
type ProcessorClient interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error)
	FetchPayment(ctx context.Context, paymentID string) (ProcessorPayment, error)
}

// DuplicateGuard is an optional fast-path check for re-delivered
// confirmations. The store's transaction uniqueness stays authoritative.
type DuplicateGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
}
