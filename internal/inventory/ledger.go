package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type MovementStore interface {
	AppendMovement(ctx context.Context, m Movement) error
}

// Ledger appends movement records. It has no update or delete path.
type Ledger struct {
	Store MovementStore
	Now   func() time.Time
}

func (l *Ledger) Record(ctx context.Context, m Movement) (Movement, error) {
	if m.Delta == 0 {
		return Movement{}, errors.New("inventory: zero movement")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		now := time.Now
		if l.Now != nil {
			now = l.Now
		}
		m.CreatedAt = now().UTC()
	}
	if err := l.Store.AppendMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	return m, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
