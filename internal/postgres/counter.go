package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrCounterMissing = errors.New("counter row missing")

// NoLimit disables the upper bound in Counter.Add.
const NoLimit = -1

// Counter is an integer column keyed by a single column, mutated only under
// a row lock and through a conditional update. Both stock lots and
// capacity counters go through it.
type Counter struct {
	Table string
	Key   string
	Value string
}

func (c Counter) ident() (table, key, value string) {
	return pgx.Identifier{c.Table}.Sanitize(), pgx.Identifier{c.Key}.Sanitize(), pgx.Identifier{c.Value}.Sanitize()
}

// Ensure inserts a zero row for key if none exists.
func (c Counter) Ensure(ctx context.Context, q Querier, key string) error {
	t, k, v := c.ident()
	_, err := q.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s, %s) VALUES ($1, 0) ON CONFLICT (%s) DO NOTHING`, t, k, v, k), key)
	return err
}

// Lock takes the row lock for key and returns the current value.
func (c Counter) Lock(ctx context.Context, q Querier, key string) (int, error) {
	t, k, v := c.ident()
	var n int
	err := q.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`, v, t, k), key).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrCounterMissing
	}
	return n, err
}

// Read returns the value without locking.
func (c Counter) Read(ctx context.Context, q Querier, key string) (int, error) {
	t, k, v := c.ident()
	var n int
	err := q.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, v, t, k), key).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Add applies delta only if the result stays within [0, limit] (limit
// NoLimit means unbounded above). The bound is re-checked by the UPDATE
// itself, so a stale read can never push the value out of range. ok is false
// when the update was refused.
func (c Counter) Add(ctx context.Context, q Querier, key string, delta, limit int) (n int, ok bool, err error) {
	t, k, v := c.ident()
	err = q.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %[1]s SET %[3]s = %[3]s + $2
		WHERE %[2]s = $1 AND %[3]s + $2 >= 0 AND ($3::int < 0 OR %[3]s + $2 <= $3::int)
		RETURNING %[3]s`, t, k, v), key, delta, limit).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
