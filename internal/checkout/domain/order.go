package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusSuccess OrderStatus = "success"
	StatusFailed  OrderStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Order is one checkout attempt. ProcessorOrderID is assigned by the payment
// processor at creation and never changes; TransactionID and
// ProcessorPaymentID are set by the first verified confirmation.
type Order struct {
	OrderID            string
	ProcessorOrderID   string
	Amount             decimal.Decimal
	Currency           string
	CustomerID         string
	Description        string
	Status             OrderStatus
	TransactionID      string
	ProcessorPaymentID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewOrder(amount decimal.Decimal, currency, customerID, description string) Order {
	now := time.Now().UTC()
	return Order{
		OrderID:     NewOrderID(),
		Amount:      amount,
		Currency:    currency,
		CustomerID:  customerID,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transaction records one confirmed payment event. Immutable once written.
type Transaction struct {
	TransactionID      string
	OrderID            string
	ProcessorOrderID   string
	ProcessorPaymentID string
	Amount             decimal.Decimal
	Currency           string
	Status             OrderStatus
	PaymentMethod      string
	CreatedAt          time.Time
}

func NewOrderID() string {
	return newID("ORD")
}

func NewTransactionID() string {
	return newID("TXN")
}

func newID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return prefix + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + suffix
}
