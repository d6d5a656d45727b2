package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders/internal/money"
)

// BasePrices resolves the undiscounted price of a product.
type BasePrices interface {
	BasePrice(ctx context.Context, productID string) (decimal.Decimal, bool, error)
}

// ComputeTotals prices a cart. GrandTotal is always the sum of charged line
// amounts; discounted lines count at their base price in Subtotal and the
// difference goes to DiscountAmount.
func ComputeTotals(ctx context.Context, lines []CartLine, prices BasePrices) (Totals, error) {
	subtotal := decimal.Zero
	discount := decimal.Zero
	grand := decimal.Zero

	for _, l := range lines {
		charged := money.Mul(l.UnitPrice, l.Quantity)
		grand = grand.Add(charged)

		if l.Option != OptionDiscount {
			subtotal = subtotal.Add(charged)
			continue
		}

		base, ok, err := prices.BasePrice(ctx, l.ProductID)
		if err != nil {
			return Totals{}, err
		}
		if !ok {
			return Totals{}, &PricingError{ProductID: l.ProductID}
		}
		normal := money.Mul(base, l.Quantity)
		subtotal = subtotal.Add(normal)
		discount = discount.Add(normal.Sub(charged))
	}

	return Totals{
		Subtotal:       money.Round(subtotal),
		DiscountAmount: money.Round(money.NonNegative(discount)),
		GrandTotal:     money.Round(grand),
	}, nil
}
