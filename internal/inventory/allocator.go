package inventory

import (
	"context"
	"fmt"
	"time"
)

// LotStore is the transaction-scoped view of the lot table.
type LotStore interface {
	// LockLots returns the candidate lots for q with an exclusive row lock
	// held until the enclosing transaction ends.
	LockLots(ctx context.Context, q LotQuery) ([]Lot, error)
	// TakeFromLot decrements a lot only if it still holds at least qty.
	TakeFromLot(ctx context.Context, lotID string, qty int) (bool, error)
}

type Store interface {
	LotStore
	MovementStore
}

type Request struct {
	ProductID string
	Quantity  int
	// SameDayOnly restricts candidates to lots expiring today; discounted
	// sales draw from those only.
	SameDayOnly bool
	OrderLineID string
	StaffID     string
}

type Allocation struct {
	LotID    string
	Quantity int
}

// Allocator deducts stock first-expiring-first-out. It must be built per
// transaction since the store it wraps is bound to one.
type Allocator struct {
	lots   LotStore
	ledger *Ledger
	today  time.Time
}

func NewAllocator(s Store, today time.Time, now func() time.Time) *Allocator {
	return &Allocator{
		lots:   s,
		ledger: &Ledger{Store: s, Now: now},
		today:  today,
	}
}

// Deduct takes req.Quantity units across one or more lots and records a
// movement per lot touched. On *InsufficientStockError the deductions made
// so far are left to the caller's rollback.
func (a *Allocator) Deduct(ctx context.Context, req Request) ([]Allocation, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("inventory: invalid quantity %d for product %s", req.Quantity, req.ProductID)
	}

	q := LotQuery{ProductID: req.ProductID}
	if req.SameDayOnly {
		d := a.today
		q.ExpiringOn = &d
	}
	locked, err := a.lots.LockLots(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lock lots for product %s: %w", req.ProductID, err)
	}

	candidates := make([]Lot, 0, len(locked))
	for _, lot := range locked {
		if Eligible(lot, q) {
			candidates = append(candidates, lot)
		}
	}
	SortFEFO(candidates)

	needed := req.Quantity
	var out []Allocation
	for _, lot := range candidates {
		if needed == 0 {
			break
		}
		take := min(lot.Quantity, needed)
		ok, err := a.lots.TakeFromLot(ctx, lot.ID, take)
		if err != nil {
			return out, fmt.Errorf("decrement lot %s: %w", lot.ID, err)
		}
		if !ok {
			continue
		}
		if _, err := a.ledger.Record(ctx, Movement{
			LotID:       lot.ID,
			Delta:       -take,
			OrderLineID: optional(req.OrderLineID),
			StaffID:     optional(req.StaffID),
		}); err != nil {
			return out, fmt.Errorf("record movement for lot %s: %w", lot.ID, err)
		}
		out = append(out, Allocation{LotID: lot.ID, Quantity: take})
		needed -= take
	}

	if needed > 0 {
		return out, &InsufficientStockError{ProductID: req.ProductID, Requested: req.Quantity, Shortfall: needed}
	}
	return out, nil
}
