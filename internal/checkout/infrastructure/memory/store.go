// Package memory provides an in-process OrderStore used by tests and local
// runs without Postgres. Orders are guarded by per-order locks so the
// check-then-finalize sequence is serialized per order id.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkout-gateway/internal/checkout/domain"
)

type Store struct {
	mu          sync.RWMutex
	orders      map[string]domain.Order
	byProcessor map[string]string
	txs         []domain.Transaction
	txIndex     map[string]struct{}
	locks       map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		orders:      make(map[string]domain.Order),
		byProcessor: make(map[string]string),
		txIndex:     make(map[string]struct{}),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.OrderID]; ok {
		return fmt.Errorf("order %s already exists", o.OrderID)
	}
	s.orders[o.OrderID] = o
	if o.ProcessorOrderID != "" {
		s.byProcessor[o.ProcessorOrderID] = o.OrderID
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *Store) GetOrderByProcessorOrderID(ctx context.Context, processorOrderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byProcessor[processorOrderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.orders[id], nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

func (s *Store) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.txIndex[transactionID]
	return ok, nil
}

func (s *Store) FinalizeOrder(ctx context.Context, orderID string, status domain.OrderStatus, tx domain.Transaction, eventType string, payload []byte, traceparent string) (domain.Order, bool, error) {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, false, domain.ErrNotFound
	}
	if o.Status.Terminal() {
		return o, false, nil
	}
	if _, dup := s.txIndex[tx.TransactionID]; dup {
		return o, false, nil
	}

	o.Status = status
	o.TransactionID = tx.TransactionID
	if tx.ProcessorPaymentID != "" {
		o.ProcessorPaymentID = tx.ProcessorPaymentID
	}
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o

	s.txs = append(s.txs, tx)
	s.txIndex[tx.TransactionID] = struct{}{}
	return o, true, nil
}

func (s *Store) orderLock(orderID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[orderID] = l
	}
	return l
}
