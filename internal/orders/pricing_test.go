package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/money"
)

type priceMap map[string]string

func (p priceMap) BasePrice(_ context.Context, id string) (decimal.Decimal, bool, error) {
	s, ok := p[id]
	if !ok {
		return decimal.Zero, false, nil
	}
	return money.MustParse(s), true, nil
}

type failingPrices struct{ err error }

func (f failingPrices) BasePrice(context.Context, string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, f.err
}

func line(id string, opt Option, qty int, price string) CartLine {
	return CartLine{ProductID: id, Option: opt, Quantity: qty, UnitPrice: money.MustParse(price)}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name                      string
		lines                     []CartLine
		prices                    priceMap
		subtotal, discount, grand string
	}{
		{
			name:     "no discounted lines",
			lines:    []CartLine{line("bread", OptionRegular, 3, "12.50"), line("latte", OptionHot, 2, "4.20"), line("tea", OptionCold, 1, "3.00")},
			subtotal: "48.90", discount: "0.00", grand: "48.90",
		},
		{
			name:     "single discounted line",
			lines:    []CartLine{line("cake", OptionDiscount, 2, "400.00")},
			prices:   priceMap{"cake": "1000.00"},
			subtotal: "2000.00", discount: "1200.00", grand: "800.00",
		},
		{
			name:     "mixed cart",
			lines:    []CartLine{line("cake", OptionDiscount, 2, "400.00"), line("bread", OptionRegular, 1, "10.00")},
			prices:   priceMap{"cake": "1000.00"},
			subtotal: "2010.00", discount: "1200.00", grand: "810.00",
		},
		{
			name:     "discount priced above base clamps to zero",
			lines:    []CartLine{line("cake", OptionDiscount, 1, "12.00")},
			prices:   priceMap{"cake": "10.00"},
			subtotal: "10.00", discount: "0.00", grand: "12.00",
		},
		{
			name:     "half-up rounding per line",
			lines:    []CartLine{line("candy", OptionRegular, 3, "0.335")},
			subtotal: "1.02", discount: "0.00", grand: "1.02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTotals(context.Background(), tt.lines, tt.prices)
			require.NoError(t, err)
			assert.Equal(t, tt.subtotal, money.String(got.Subtotal))
			assert.Equal(t, tt.discount, money.String(got.DiscountAmount))
			assert.Equal(t, tt.grand, money.String(got.GrandTotal))
		})
	}
}

func TestComputeTotalsIdentity(t *testing.T) {
	lines := []CartLine{
		line("cake", OptionDiscount, 3, "7.50"),
		line("pie", OptionDiscount, 1, "2.25"),
		line("bread", OptionRegular, 4, "1.10"),
	}
	got, err := ComputeTotals(context.Background(), lines, priceMap{"cake": "15.00", "pie": "4.50"})
	require.NoError(t, err)

	charged := decimal.Zero
	for _, l := range lines {
		charged = charged.Add(money.Mul(l.UnitPrice, l.Quantity))
	}
	assert.True(t, got.GrandTotal.Equal(charged))
	assert.True(t, got.Subtotal.Sub(got.DiscountAmount).Equal(got.GrandTotal))
}

func TestComputeTotalsMissingBasePrice(t *testing.T) {
	_, err := ComputeTotals(context.Background(), []CartLine{line("cake", OptionDiscount, 1, "5.00")}, priceMap{})

	var pricingErr *PricingError
	require.ErrorAs(t, err, &pricingErr)
	assert.Equal(t, "cake", pricingErr.ProductID)
}

func TestComputeTotalsLookupError(t *testing.T) {
	boom := errors.New("catalog down")
	_, err := ComputeTotals(context.Background(), []CartLine{line("cake", OptionDiscount, 1, "5.00")}, failingPrices{boom})
	assert.ErrorIs(t, err, boom)
}

func TestParseOption(t *testing.T) {
	o, err := ParseOption(" hot ")
	require.NoError(t, err)
	assert.Equal(t, OptionHot, o)
	assert.True(t, o.IsDrink())

	_, err = ParseOption("LUKEWARM")
	assert.ErrorIs(t, err, ErrInvalidCart)
}

func TestCartValidate(t *testing.T) {
	valid := Cart{StaffID: "s1", PaymentMethodID: "cash", Lines: []CartLine{line("bread", OptionRegular, 1, "1.00")}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Cart)
		want   error
	}{
		{"empty", func(c *Cart) { c.Lines = nil }, ErrEmptyCart},
		{"no staff", func(c *Cart) { c.StaffID = " " }, ErrInvalidCart},
		{"no payment method", func(c *Cart) { c.PaymentMethodID = "" }, ErrInvalidCart},
		{"zero quantity", func(c *Cart) { c.Lines = []CartLine{line("bread", OptionRegular, 0, "1.00")} }, ErrInvalidCart},
		{"negative price", func(c *Cart) { c.Lines = []CartLine{line("bread", OptionRegular, 1, "-1.00")} }, ErrInvalidCart},
		{"bad option", func(c *Cart) { c.Lines = []CartLine{line("bread", Option("WARM"), 1, "1.00")} }, ErrInvalidCart},
		{"no product", func(c *Cart) { c.Lines = []CartLine{line("", OptionRegular, 1, "1.00")} }, ErrInvalidCart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), tt.want)
		})
	}
}

func TestPersistenceErrorClassification(t *testing.T) {
	boom := errors.New("disk full")
	err := classify("insert order", boom)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, boom)
	assert.False(t, perr.Temporary())

	err = classify("insert order", context.DeadlineExceeded)
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Temporary())

	pricing := &PricingError{ProductID: "x"}
	assert.Same(t, pricing, classify("compute totals", pricing))
}
