package inventory

import (
	"cmp"
	"slices"
	"time"
)

// Lot is a batch of stock for one product. ExpiresOn is a calendar date at
// UTC midnight; nil means the lot does not perish.
type Lot struct {
	ID         string
	ProductID  string
	Quantity   int
	ExpiresOn  *time.Time
	ReceivedAt time.Time
}

// Movement is one append-only ledger row. Delta is negative for a sale.
type Movement struct {
	ID          string
	LotID       string
	Delta       int
	OrderLineID *string
	StaffID     *string
	CreatedAt   time.Time
}

// LotQuery selects candidate lots for a deduction. When ExpiringOn is set
// only lots expiring on that date qualify.
type LotQuery struct {
	ProductID  string
	ExpiringOn *time.Time
}

// Eligible reports whether lot may be drawn from for q.
func Eligible(lot Lot, q LotQuery) bool {
	if lot.ProductID != q.ProductID || lot.Quantity <= 0 {
		return false
	}
	if q.ExpiringOn == nil {
		return true
	}
	return lot.ExpiresOn != nil && SameDate(*lot.ExpiresOn, *q.ExpiringOn)
}

// SortFEFO orders lots soonest-expiry first, non-perishable lots last, lot
// id as the tie breaker. It matches the ORDER BY of the locking query.
func SortFEFO(lots []Lot) {
	slices.SortStableFunc(lots, func(a, b Lot) int {
		switch {
		case a.ExpiresOn == nil && b.ExpiresOn != nil:
			return 1
		case a.ExpiresOn != nil && b.ExpiresOn == nil:
			return -1
		case a.ExpiresOn != nil && b.ExpiresOn != nil:
			if c := a.ExpiresOn.Compare(*b.ExpiresOn); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// DateOf truncates t to its calendar date in loc, expressed at UTC midnight
// so it compares equal to DATE values scanned from the store.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
