package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Dedup remembers processed event ids for one consumer.
type Dedup struct {
	Client  *redis.Client
	Service string
}

// FirstSeen marks id as processed and reports whether this call was the
// first to do so.
func (d Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.Client.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
}

// Forget drops a mark so the event can be processed again after a failure.
func (d Dedup) Forget(ctx context.Context, id string) error {
	return d.Client.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}

// Idempotency maps placement external ids to order ids.
type Idempotency struct{ Client *redis.Client }

func (i Idempotency) Lookup(ctx context.Context, externalID string) (string, bool, error) {
	v, err := i.Client.Get(ctx, fmt.Sprintf(KeyIdemOrderPlace, externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (i Idempotency) Remember(ctx context.Context, externalID, orderID string) error {
	return i.Client.Set(ctx, fmt.Sprintf(KeyIdemOrderPlace, externalID), orderID, TTLIdempotency).Err()
}
