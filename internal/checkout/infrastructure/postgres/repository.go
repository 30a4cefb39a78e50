package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkout-gateway/internal/checkout/domain"
)

// Store is the pgx-backed OrderStore. FinalizeOrder serializes per order via
// a row lock (SELECT ... FOR UPDATE) so concurrent confirmations for the same
// order cannot both observe pending.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    order_id             TEXT PRIMARY KEY,
    processor_order_id   TEXT NOT NULL DEFAULT '',
    amount               NUMERIC NOT NULL,
    currency             TEXT NOT NULL,
    customer_id          TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL,
    transaction_id       TEXT NOT NULL DEFAULT '',
    processor_payment_id TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_processor_order_id
    ON orders (processor_order_id) WHERE processor_order_id <> '';

CREATE TABLE IF NOT EXISTS transactions (
    transaction_id       TEXT PRIMARY KEY,
    order_id             TEXT NOT NULL REFERENCES orders (order_id),
    processor_order_id   TEXT NOT NULL DEFAULT '',
    processor_payment_id TEXT NOT NULL DEFAULT '',
    amount               NUMERIC NOT NULL,
    currency             TEXT NOT NULL,
    status               TEXT NOT NULL,
    payment_method       TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id             BIGSERIAL PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id   TEXT NOT NULL,
    type           TEXT NOT NULL,
    payload        JSONB NOT NULL,
    traceparent    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'pending',
    relay_id       TEXT,
    lease_until    TIMESTAMPTZ,
    retry_count    INT NOT NULL DEFAULT 0,
    last_error     TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO orders
		(order_id, processor_order_id, amount, currency, customer_id, description, status, transaction_id, processor_payment_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.OrderID, o.ProcessorOrderID, o.Amount, o.Currency, o.CustomerID, o.Description,
		o.Status, o.TransactionID, o.ProcessorPaymentID, o.CreatedAt, o.UpdatedAt)
	return err
}

const orderColumns = `order_id, processor_order_id, amount, currency, customer_id, description, status, transaction_id, processor_payment_id, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.OrderID, &o.ProcessorOrderID, &o.Amount, &o.Currency, &o.CustomerID,
		&o.Description, &o.Status, &o.TransactionID, &o.ProcessorPaymentID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID))
}

func (s *Store) GetOrderByProcessorOrderID(ctx context.Context, processorOrderID string) (domain.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE processor_order_id=$1 AND processor_order_id <> ''`, processorOrderID))
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT transaction_id, order_id, processor_order_id, processor_payment_id, amount, currency, status, payment_method, created_at
		FROM transactions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.TransactionID, &t.OrderID, &t.ProcessorOrderID, &t.ProcessorPaymentID,
			&t.Amount, &t.Currency, &t.Status, &t.PaymentMethod, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *Store) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id=$1)`, transactionID).Scan(&exists)
	return exists, err
}

func (s *Store) FinalizeOrder(ctx context.Context, orderID string, status domain.OrderStatus, t domain.Transaction, eventType string, payload []byte, traceparent string) (domain.Order, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return domain.Order{}, false, err
	}
	if o.Status.Terminal() {
		return o, false, tx.Commit(ctx)
	}

	var dup bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id=$1)`, t.TransactionID).Scan(&dup); err != nil {
		return domain.Order{}, false, err
	}
	if dup {
		return o, false, tx.Commit(ctx)
	}

	o.Status = status
	o.TransactionID = t.TransactionID
	if t.ProcessorPaymentID != "" {
		o.ProcessorPaymentID = t.ProcessorPaymentID
	}
	o.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `UPDATE orders SET status=$2, transaction_id=$3, processor_payment_id=$4, updated_at=$5 WHERE order_id=$1`,
		o.OrderID, o.Status, o.TransactionID, o.ProcessorPaymentID, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, false, err
	}

	_, err = tx.Exec(ctx, `INSERT INTO transactions
		(transaction_id, order_id, processor_order_id, processor_payment_id, amount, currency, status, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.TransactionID, t.OrderID, t.ProcessorOrderID, t.ProcessorPaymentID, t.Amount, t.Currency, t.Status, t.PaymentMethod, t.CreatedAt)
	if err != nil {
		return domain.Order{}, false, err
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status) VALUES ($1,$2,$3,$4,$5,'pending')`,
		"order", o.OrderID, eventType, payload, traceparent)
	if err != nil {
		return domain.Order{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}
