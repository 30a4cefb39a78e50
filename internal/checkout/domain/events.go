package domain

import "github.com/shopspring/decimal"

type PaymentConfirmed struct {
	OrderID          string
	ProcessorOrderID string
	TransactionID    string
	Amount           decimal.Decimal
	Currency         string
}

type PaymentFailed struct {
	OrderID       string
	TransactionID string
	Reason        string
}
