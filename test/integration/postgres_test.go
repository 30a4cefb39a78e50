package integration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-gateway/internal/checkout/domain"
	checkoutpg "checkout-gateway/internal/checkout/infrastructure/postgres"
)

func setupStore(t *testing.T) (*checkoutpg.Store, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { env.Teardown(ctx) })

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := checkoutpg.NewStore(slog.New(slog.DiscardHandler), pool)
	require.NoError(t, store.Migrate(ctx))
	return store, pool
}

func pendingOrder(orderID, processorOrderID string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		OrderID:          orderID,
		ProcessorOrderID: processorOrderID,
		Amount:           decimal.NewFromInt(100),
		Currency:         "INR",
		CustomerID:       "cust-1",
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestPostgresStoreLifecycle(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, pendingOrder("ORD-1", "proc-1")))

	o, err := store.GetOrder(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.True(t, o.Amount.Equal(decimal.NewFromInt(100)))

	o, err = store.GetOrderByProcessorOrderID(ctx, "proc-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", o.OrderID)

	_, err = store.GetOrder(ctx, "ORD-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tx := domain.Transaction{
		TransactionID:      "pay_1",
		OrderID:            "ORD-1",
		ProcessorOrderID:   "proc-1",
		ProcessorPaymentID: "pay_1",
		Amount:             decimal.NewFromInt(100),
		Currency:           "INR",
		Status:             domain.StatusSuccess,
		PaymentMethod:      "card",
		CreatedAt:          time.Now().UTC(),
	}

	o, applied, err := store.FinalizeOrder(ctx, "ORD-1", domain.StatusSuccess, tx, "PaymentConfirmed", []byte(`{"orderId":"ORD-1"}`), "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.StatusSuccess, o.Status)
	assert.Equal(t, "pay_1", o.TransactionID)

	// redelivery is a no-op
	o, applied, err = store.FinalizeOrder(ctx, "ORD-1", domain.StatusFailed, tx, "PaymentFailed", []byte(`{}`), "")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.StatusSuccess, o.Status)

	exists, err := store.TransactionExists(ctx, "pay_1")
	require.NoError(t, err)
	assert.True(t, exists)

	txs, err := store.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "pay_1", txs[0].TransactionID)
	assert.Equal(t, "card", txs[0].PaymentMethod)
}

func TestPostgresOutboxRelayHandoff(t *testing.T) {
	store, pool := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateOrder(ctx, pendingOrder("ORD-1", "proc-1")))

	tx := domain.Transaction{
		TransactionID: "pay_1",
		OrderID:       "ORD-1",
		Amount:        decimal.NewFromInt(100),
		Currency:      "INR",
		Status:        domain.StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}
	_, applied, err := store.FinalizeOrder(ctx, "ORD-1", domain.StatusSuccess, tx, "PaymentConfirmed", []byte(`{"orderId":"ORD-1"}`), "00-abc-def-01")
	require.NoError(t, err)
	require.True(t, applied)

	ob := checkoutpg.NewOutboxStore(slog.New(slog.DiscardHandler), pool)

	events, err := ob.LockBatch(ctx, "relay-a", 10, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "PaymentConfirmed", events[0].Type)
	assert.Equal(t, "ORD-1", events[0].AggregateID)
	assert.Equal(t, "00-abc-def-01", events[0].Traceparent)

	// claimed rows are invisible to a second relay
	other, err := ob.LockBatch(ctx, "relay-b", 10, 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, ob.MarkSent(ctx, []int64{events[0].ID}))

	var status string
	require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM outbox WHERE id=$1`, events[0].ID).Scan(&status))
	assert.Equal(t, "sent", status)
}
