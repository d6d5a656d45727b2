package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
)

var lotCounter = postgres.Counter{Table: "inventory_lots", Key: "id", Value: "quantity"}

// TxStore implements Store on an open pgx transaction.
type TxStore struct{ Tx pgx.Tx }

func (s TxStore) LockLots(ctx context.Context, q LotQuery) ([]Lot, error) {
	sql := `SELECT id, product_id, quantity, expires_on, received_at
	        FROM inventory_lots
	        WHERE product_id = $1 AND quantity > 0`
	args := []any{q.ProductID}
	if q.ExpiringOn != nil {
		sql += ` AND expires_on = $2`
		args = append(args, *q.ExpiringOn)
	}
	sql += ` ORDER BY expires_on IS NULL, expires_on, id FOR UPDATE`

	rows, err := s.Tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLots(rows)
}

func (s TxStore) TakeFromLot(ctx context.Context, lotID string, qty int) (bool, error) {
	_, ok, err := lotCounter.Add(ctx, s.Tx, lotID, -qty, postgres.NoLimit)
	return ok, err
}

func (s TxStore) AppendMovement(ctx context.Context, m Movement) error {
	_, err := s.Tx.Exec(ctx, `
		INSERT INTO inventory_movements(id, lot_id, delta, order_line_id, staff_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.LotID, m.Delta, m.OrderLineID, m.StaffID, m.CreatedAt)
	return err
}

func scanLots(rows pgx.Rows) ([]Lot, error) {
	var out []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.ExpiresOn, &l.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Repo serves the reads and stock intake that happen outside an order.
type Repo struct{ DB *pgxpool.Pool }

// StockLevel reports the available quantity of a product and whether the
// product tracks inventory at all. An unknown product is untracked.
func (r *Repo) StockLevel(ctx context.Context, productID string) (available int, tracked bool, err error) {
	err = r.DB.QueryRow(ctx, `
		SELECT p.tracks_inventory, COALESCE(SUM(l.quantity), 0)::int
		FROM products p
		LEFT JOIN inventory_lots l ON l.product_id = p.id
		WHERE p.id = $1
		GROUP BY p.tracks_inventory`, productID).Scan(&tracked, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return available, tracked, err
}

func (r *Repo) ListLots(ctx context.Context, productID string) ([]Lot, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, quantity, expires_on, received_at
		FROM inventory_lots
		WHERE product_id = $1
		ORDER BY expires_on IS NULL, expires_on, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLots(rows)
}

// ReceiveLot stores a new lot and its positive intake movement.
func (r *Repo) ReceiveLot(ctx context.Context, lot Lot, staffID string) (Lot, error) {
	if lot.Quantity <= 0 {
		return Lot{}, errors.New("inventory: lot quantity must be positive")
	}
	if lot.ID == "" {
		lot.ID = uuid.NewString()
	}
	if lot.ReceivedAt.IsZero() {
		lot.ReceivedAt = time.Now().UTC()
	}
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_lots(id, product_id, quantity, expires_on, received_at)
			VALUES ($1,$2,$3,$4,$5)`,
			lot.ID, lot.ProductID, lot.Quantity, lot.ExpiresOn, lot.ReceivedAt); err != nil {
			return err
		}
		ledger := &Ledger{Store: TxStore{Tx: tx}}
		_, err := ledger.Record(ctx, Movement{LotID: lot.ID, Delta: lot.Quantity, StaffID: optional(staffID)})
		return err
	})
	if err != nil {
		return Lot{}, err
	}
	return lot, nil
}

func (r *Repo) MovementsForLine(ctx context.Context, orderLineID string) ([]Movement, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, lot_id, delta, order_line_id, staff_id, created_at
		FROM inventory_movements
		WHERE order_line_id = $1
		ORDER BY created_at, id`, orderLineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.LotID, &m.Delta, &m.OrderLineID, &m.StaffID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
