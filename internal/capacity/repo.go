package capacity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
)

var counter = postgres.Counter{Table: "capacity_counters", Key: "key", Value: "reserved"}

// Repo is the PostgreSQL Store.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InCounterTx(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(ctx, counterTx{tx: tx})
	})
}

func (r *Repo) ReadCounter(ctx context.Context, key string) (int, error) {
	return counter.Read(ctx, r.DB, key)
}

type counterTx struct{ tx pgx.Tx }

func (c counterTx) Ensure(ctx context.Context, key string) error {
	return counter.Ensure(ctx, c.tx, key)
}

func (c counterTx) Lock(ctx context.Context, key string) (int, error) {
	return counter.Lock(ctx, c.tx, key)
}

func (c counterTx) Add(ctx context.Context, key string, delta, limit int) (int, bool, error) {
	if limit < 0 {
		limit = postgres.NoLimit
	}
	return counter.Add(ctx, c.tx, key, delta, limit)
}
