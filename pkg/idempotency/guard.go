// Package idempotency provides a redis-backed duplicate filter for
// re-delivered confirmations. It is a fast-path pre-check only; transaction
// uniqueness in the order store remains the source of truth.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

// Seen marks the transaction id and reports whether it was already marked.
func (g *Guard) Seen(ctx context.Context, transactionID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, "confirm:txn:"+transactionID, "1", g.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
