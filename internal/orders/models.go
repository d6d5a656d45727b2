package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Option tags a cart line: discounted vs regular product, or a drink
// served hot or cold.
type Option string

const (
	OptionRegular  Option = "REGULAR"
	OptionDiscount Option = "DISCOUNT"
	OptionHot      Option = "HOT"
	OptionCold     Option = "COLD"
)

func ParseOption(s string) (Option, error) {
	o := Option(strings.ToUpper(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("%w: unknown option %q", ErrInvalidCart, s)
	}
	return o, nil
}

func (o Option) Valid() bool {
	switch o {
	case OptionRegular, OptionDiscount, OptionHot, OptionCold:
		return true
	}
	return false
}

func (o Option) IsDrink() bool { return o == OptionHot || o == OptionCold }

// CartLine is one requested line. UnitPrice is resolved by the caller and
// already includes any variant delta.
type CartLine struct {
	ProductID string
	Option    Option
	Quantity  int
	UnitPrice decimal.Decimal
}

// Cart is the request-scoped input of one placement.
type Cart struct {
	Lines           []CartLine
	StaffID         string
	PaymentMethodID string
	MemberID        *string
	// ExternalID makes the placement idempotent when set.
	ExternalID string
}

type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	GrandTotal     decimal.Decimal
}

type Order struct {
	ID              string
	ExternalID      *string
	CreatedAt       time.Time
	MemberID        *string
	StaffID         string
	PaymentMethodID string
	Totals
	Lines []OrderLine
}

// OrderLine references exactly one of ProductID or DrinkVariantID.
type OrderLine struct {
	ID             string
	OrderID        string
	ProductID      *string
	DrinkVariantID *string
	Option         Option
	Quantity       int
	UnitPrice      decimal.Decimal
	LineTotal      decimal.Decimal
	Position       int
}
