package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits carried by every amount.
const Scale = 2

var Zero = decimal.Zero

// Round rounds half away from zero to two fraction digits, which is half-up
// for the non-negative amounts the engine deals with.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Mul returns price × qty rounded to two fraction digits.
func Mul(price decimal.Decimal, qty int) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(int64(qty))))
}

// Sum adds amounts and rounds the result.
func Sum(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return Round(total)
}

func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Round(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats with exactly two fraction digits, e.g. "12.50".
func String(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
