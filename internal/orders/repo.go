package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
)

// Repo is the PostgreSQL Store.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(ctx, &repoTx{TxStore: inventory.TxStore{Tx: tx}, tx: tx})
	})
}

// CheckProductID rejects ids the uuid columns would refuse.
func (r *Repo) CheckProductID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("%w: product id %q is not a uuid", ErrInvalidCart, id)
	}
	return nil
}

type repoTx struct {
	inventory.TxStore
	tx pgx.Tx
}

// Catalog rows are read FOR SHARE so they cannot change under the placement.

func (t *repoTx) BasePrice(ctx context.Context, productID string) (decimal.Decimal, bool, error) {
	var n pgtype.Numeric
	err := t.tx.QueryRow(ctx, `SELECT base_price FROM products WHERE id=$1 FOR SHARE`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	if !n.Valid {
		return decimal.Zero, false, nil
	}
	d, err := postgres.Decimal(n)
	return d, err == nil, err
}

func (t *repoTx) TracksInventory(ctx context.Context, productID string) (bool, error) {
	var tracked bool
	err := t.tx.QueryRow(ctx, `SELECT tracks_inventory FROM products WHERE id=$1 FOR SHARE`, productID).Scan(&tracked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return tracked, err
}

func (t *repoTx) DrinkVariantID(ctx context.Context, productID string, hot bool) (string, bool, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		SELECT id FROM drink_variants WHERE product_id=$1 AND is_hot=$2 FOR SHARE`, productID, hot).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (t *repoTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(id, external_id, member_id, staff_id, payment_method_id,
		                   subtotal, discount_amount, grand_total, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		o.ID, o.ExternalID, o.MemberID, o.StaffID, o.PaymentMethodID,
		postgres.Numeric(o.Subtotal), postgres.Numeric(o.DiscountAmount), postgres.Numeric(o.GrandTotal), o.CreatedAt,
	).Scan(&o.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicateOrder
	}
	return err
}

func (t *repoTx) InsertLine(ctx context.Context, l *OrderLine) error {
	var total pgtype.Numeric
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_lines(id, order_id, product_id, drink_variant_id, line_option, quantity, unit_price, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING line_total`,
		l.ID, l.OrderID, l.ProductID, l.DrinkVariantID, string(l.Option), l.Quantity, postgres.Numeric(l.UnitPrice), l.Position,
	).Scan(&total)
	if err != nil {
		return err
	}
	l.LineTotal, err = postgres.Decimal(total)
	return err
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, ErrNotFound
	}
	var (
		o                         Order
		subtotal, discount, grand pgtype.Numeric
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, external_id, member_id, staff_id, payment_method_id,
		       subtotal, discount_amount, grand_total, created_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.ExternalID, &o.MemberID, &o.StaffID, &o.PaymentMethodID,
			&subtotal, &discount, &grand, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src pgtype.Numeric
	}{{&o.Subtotal, subtotal}, {&o.DiscountAmount, discount}, {&o.GrandTotal, grand}} {
		if *f.dst, err = postgres.Decimal(f.src); err != nil {
			return nil, err
		}
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, drink_variant_id, line_option, quantity, unit_price, line_total, position
		FROM order_lines WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l           OrderLine
			opt         string
			unit, total pgtype.Numeric
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.DrinkVariantID, &opt, &l.Quantity, &unit, &total, &l.Position); err != nil {
			return nil, err
		}
		l.Option = Option(opt)
		if l.UnitPrice, err = postgres.Decimal(unit); err != nil {
			return nil, err
		}
		if l.LineTotal, err = postgres.Decimal(total); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE external_id=$1`, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}
