package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders/internal/money"
)

// Numeric renders an amount as a NUMERIC parameter. Strings are sent in text
// format, so the server parses the exact value.
func Numeric(d decimal.Decimal) string { return money.String(d) }

// Decimal converts a scanned NUMERIC. NULL becomes zero.
func Decimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	val, err := n.Value()
	if err != nil {
		return decimal.Zero, err
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected numeric value %T", val)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Round(d), nil
}
