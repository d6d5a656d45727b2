// Package memstore is an in-memory backend for the order engine and the
// capacity counters. A transaction holds the store mutex from begin to
// commit, so transactions are fully serialized, and a failed transaction
// restores the snapshot taken at begin.
package memstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders/internal/capacity"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type Product struct {
	ID              string
	BasePrice       *decimal.Decimal
	TracksInventory bool
}

type variantKey struct {
	productID string
	hot       bool
}

type state struct {
	products   map[string]Product
	variants   map[variantKey]string
	lots       map[string]inventory.Lot
	movements  []inventory.Movement
	orders     map[string]orders.Order
	byExternal map[string]string
	counters   map[string]int
}

func (s state) clone() state {
	c := state{
		products:   maps.Clone(s.products),
		variants:   maps.Clone(s.variants),
		lots:       maps.Clone(s.lots),
		movements:  slices.Clone(s.movements),
		orders:     maps.Clone(s.orders),
		byExternal: maps.Clone(s.byExternal),
		counters:   maps.Clone(s.counters),
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		products:   map[string]Product{},
		variants:   map[variantKey]string{},
		lots:       map[string]inventory.Lot{},
		orders:     map[string]orders.Order{},
		byExternal: map[string]string{},
		counters:   map[string]int{},
	}}
}

// inTx runs fn under the store lock and rolls the state back if it fails.
func (s *Store) inTx(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	if err := fn(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// ---- seeding ----

func (s *Store) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) AddDrinkVariant(productID string, hot bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.st.variants[variantKey{productID, hot}] = id
	return id
}

// ReceiveLot stores a lot and its intake movement.
func (s *Store) ReceiveLot(_ context.Context, lot inventory.Lot, staffID string) (inventory.Lot, error) {
	if lot.Quantity <= 0 {
		return inventory.Lot{}, errors.New("memstore: lot quantity must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if lot.ID == "" {
		lot.ID = uuid.NewString()
	}
	if lot.ReceivedAt.IsZero() {
		lot.ReceivedAt = time.Now().UTC()
	}
	s.st.lots[lot.ID] = lot
	m := inventory.Movement{ID: uuid.NewString(), LotID: lot.ID, Delta: lot.Quantity, CreatedAt: lot.ReceivedAt}
	if staffID != "" {
		m.StaffID = &staffID
	}
	s.st.movements = append(s.st.movements, m)
	return lot, nil
}

// ---- reads ----

func (s *Store) Lot(id string) (inventory.Lot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.st.lots[id]
	return l, ok
}

func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.movements)
}

func (s *Store) MovementsForLine(_ context.Context, orderLineID string) ([]inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range s.st.movements {
		if m.OrderLineID != nil && *m.OrderLineID == orderLineID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

// ---- orders.Store ----

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return s.inTx(ctx, func() error {
		return fn(ctx, &orderTx{st: &s.st})
	})
}

func (s *Store) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Lines = slices.Clone(o.Lines)
	return &o, nil
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*orders.Order, error) {
	s.mu.Lock()
	id, ok := s.st.byExternal[externalID]
	s.mu.Unlock()
	if !ok {
		return nil, orders.ErrNotFound
	}
	return s.GetOrder(ctx, id)
}

type orderTx struct{ st *state }

func (t *orderTx) BasePrice(_ context.Context, productID string) (decimal.Decimal, bool, error) {
	p, ok := t.st.products[productID]
	if !ok || p.BasePrice == nil {
		return decimal.Zero, false, nil
	}
	return *p.BasePrice, true, nil
}

func (t *orderTx) TracksInventory(_ context.Context, productID string) (bool, error) {
	return t.st.products[productID].TracksInventory, nil
}

func (t *orderTx) DrinkVariantID(_ context.Context, productID string, hot bool) (string, bool, error) {
	id, ok := t.st.variants[variantKey{productID, hot}]
	return id, ok, nil
}

func (t *orderTx) InsertOrder(_ context.Context, o *orders.Order) error {
	if o.ExternalID != nil {
		if _, taken := t.st.byExternal[*o.ExternalID]; taken {
			return orders.ErrDuplicateOrder
		}
		t.st.byExternal[*o.ExternalID] = o.ID
	}
	stored := *o
	stored.Lines = nil
	t.st.orders[o.ID] = stored
	return nil
}

func (t *orderTx) InsertLine(_ context.Context, l *orders.OrderLine) error {
	o, ok := t.st.orders[l.OrderID]
	if !ok {
		return errors.New("memstore: order line references unknown order")
	}
	if (l.ProductID == nil) == (l.DrinkVariantID == nil) {
		return errors.New("memstore: order line needs exactly one of product or drink variant")
	}
	o.Lines = append(slices.Clone(o.Lines), *l)
	t.st.orders[l.OrderID] = o
	return nil
}

func (t *orderTx) LockLots(_ context.Context, q inventory.LotQuery) ([]inventory.Lot, error) {
	var out []inventory.Lot
	for _, l := range t.st.lots {
		if inventory.Eligible(l, q) {
			out = append(out, l)
		}
	}
	inventory.SortFEFO(out)
	return out, nil
}

func (t *orderTx) TakeFromLot(_ context.Context, lotID string, qty int) (bool, error) {
	l, ok := t.st.lots[lotID]
	if !ok || l.Quantity < qty {
		return false, nil
	}
	l.Quantity -= qty
	t.st.lots[lotID] = l
	return true, nil
}

func (t *orderTx) AppendMovement(_ context.Context, m inventory.Movement) error {
	if _, ok := t.st.lots[m.LotID]; !ok {
		return errors.New("memstore: movement references unknown lot")
	}
	t.st.movements = append(t.st.movements, m)
	return nil
}

// ---- capacity.Store ----

func (s *Store) InCounterTx(ctx context.Context, fn func(ctx context.Context, tx capacity.CounterTx) error) error {
	return s.inTx(ctx, func() error {
		return fn(ctx, counterTx{st: &s.st})
	})
}

func (s *Store) ReadCounter(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.counters[key], nil
}

type counterTx struct{ st *state }

func (c counterTx) Ensure(_ context.Context, key string) error {
	if _, ok := c.st.counters[key]; !ok {
		c.st.counters[key] = 0
	}
	return nil
}

func (c counterTx) Lock(_ context.Context, key string) (int, error) {
	n, ok := c.st.counters[key]
	if !ok {
		return 0, errors.New("memstore: counter row missing")
	}
	return n, nil
}

func (c counterTx) Add(_ context.Context, key string, delta, limit int) (int, bool, error) {
	n := c.st.counters[key] + delta
	if n < 0 || (limit >= 0 && n > limit) {
		return 0, false, nil
	}
	c.st.counters[key] = n
	return n, true, nil
}
