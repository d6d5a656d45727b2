package redisx

import "time"

const (
	// Placement idempotency: idem:order:place:{external_id} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
