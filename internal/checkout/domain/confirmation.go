package domain

import "github.com/shopspring/decimal"

// ProcessorConfirmation is the shape delivered by the processor's webhook or
// relayed from the checkout widget: the signature covers
// "<processorOrderID>|<processorPaymentID>".
type ProcessorConfirmation struct {
	ProcessorOrderID   string
	ProcessorPaymentID string
	Signature          string
	// OrderID is an optional fallback lookup key sent by the frontend.
	OrderID string
}

// ManualConfirmation carries a caller-asserted terminal status, signed with
// the internal webhook secret.
type ManualConfirmation struct {
	OrderID       string
	Status        OrderStatus
	TransactionID string
	Signature     string
	Amount        decimal.Decimal
}

// Confirmation is a tagged union over the two confirmation shapes. Exactly
// one variant is non-nil; the parser at the API boundary enforces that.
type Confirmation struct {
	Processor *ProcessorConfirmation
	Manual    *ManualConfirmation
}
