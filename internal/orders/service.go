package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/money"
)

// Catalog is the read side the engine needs from the product screens. A
// store must return the same answers for the whole transaction.
type Catalog interface {
	BasePrices
	TracksInventory(ctx context.Context, productID string) (bool, error)
	DrinkVariantID(ctx context.Context, productID string, hot bool) (string, bool, error)
}

// Tx is everything one placement touches, bound to a single transaction.
type Tx interface {
	Catalog
	inventory.Store
	InsertOrder(ctx context.Context, o *Order) error
	InsertLine(ctx context.Context, l *OrderLine) error
}

type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	FindByExternalID(ctx context.Context, externalID string) (*Order, error)
}

// ProductIDChecker is implemented by stores whose product ids have a fixed
// format. PlaceOrder rejects malformed ids before opening a transaction.
type ProductIDChecker interface {
	CheckProductID(id string) error
}

type Service struct {
	Store Store
	Now   func() time.Time
	// Location decides which calendar day "today" is for same-day lots.
	Location *time.Location
	Log      logrus.FieldLogger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func (c Cart) Validate() error {
	if len(c.Lines) == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(c.StaffID) == "" {
		return fmt.Errorf("%w: staff id is required", ErrInvalidCart)
	}
	if strings.TrimSpace(c.PaymentMethodID) == "" {
		return fmt.Errorf("%w: payment method is required", ErrInvalidCart)
	}
	for i, l := range c.Lines {
		switch {
		case strings.TrimSpace(l.ProductID) == "":
			return fmt.Errorf("%w: line %d has no product", ErrInvalidCart, i+1)
		case l.Quantity <= 0:
			return fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidCart, i+1)
		case l.UnitPrice.IsNegative():
			return fmt.Errorf("%w: line %d has a negative price", ErrInvalidCart, i+1)
		case !l.UnitPrice.Equal(money.Round(l.UnitPrice)):
			// line totals are stored as unit_price × qty at two decimals
			return fmt.Errorf("%w: line %d price %s has more than %d decimals", ErrInvalidCart, i+1, l.UnitPrice, money.Scale)
		case !l.Option.Valid():
			return fmt.Errorf("%w: line %d has unknown option %q", ErrInvalidCart, i+1, l.Option)
		}
	}
	return nil
}

// PlaceOrder prices the cart, writes the order and its lines, and deducts
// stock for tracked products, all in one transaction. existed is true when
// the cart's external id matched an order placed earlier; that order is
// returned unchanged.
func (s *Service) PlaceOrder(ctx context.Context, cart Cart) (order *Order, existed bool, err error) {
	if err := cart.Validate(); err != nil {
		return nil, false, err
	}
	if c, ok := s.Store.(ProductIDChecker); ok {
		for i, l := range cart.Lines {
			if err := c.CheckProductID(l.ProductID); err != nil {
				return nil, false, fmt.Errorf("line %d: %w", i+1, err)
			}
		}
	}

	if cart.ExternalID != "" {
		prev, err := s.Store.FindByExternalID(ctx, cart.ExternalID)
		if err == nil {
			return prev, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, classify("find order", err)
		}
	}

	now := s.now()
	today := inventory.DateOf(now, s.Location)

	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := s.write(ctx, tx, cart, now, today)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if errors.Is(err, ErrDuplicateOrder) {
		// lost the race to a concurrent submission of the same cart
		prev, findErr := s.Store.FindByExternalID(ctx, cart.ExternalID)
		if findErr == nil {
			return prev, true, nil
		}
		err = &PersistenceError{Op: "find duplicate order", Err: findErr}
	}
	if err != nil {
		err = classify("place order", err)
		s.log().WithFields(logrus.Fields{
			"staff_id":    cart.StaffID,
			"external_id": cart.ExternalID,
			"lines":       len(cart.Lines),
		}).WithError(err).Warn("order placement rolled back")
		return nil, false, err
	}

	s.log().WithFields(logrus.Fields{
		"order_id":    order.ID,
		"grand_total": money.String(order.GrandTotal),
		"lines":       len(order.Lines),
	}).Info("order placed")
	return order, false, nil
}

func (s *Service) write(ctx context.Context, tx Tx, cart Cart, now, today time.Time) (*Order, error) {
	totals, err := ComputeTotals(ctx, cart.Lines, tx)
	if err != nil {
		return nil, classify("compute totals", err)
	}

	o := &Order{
		ID:              uuid.NewString(),
		CreatedAt:       now.UTC(),
		MemberID:        cart.MemberID,
		StaffID:         cart.StaffID,
		PaymentMethodID: cart.PaymentMethodID,
		Totals:          totals,
	}
	if cart.ExternalID != "" {
		ext := cart.ExternalID
		o.ExternalID = &ext
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, classify("insert order", err)
	}

	alloc := inventory.NewAllocator(tx, today, s.Now)
	for i, cl := range cart.Lines {
		line, err := s.writeLine(ctx, tx, o.ID, i, cl)
		if err != nil {
			return nil, err
		}

		tracked, err := tx.TracksInventory(ctx, cl.ProductID)
		if err != nil {
			return nil, classify("lookup product", err)
		}
		if tracked {
			if _, err := alloc.Deduct(ctx, inventory.Request{
				ProductID:   cl.ProductID,
				Quantity:    cl.Quantity,
				SameDayOnly: cl.Option == OptionDiscount,
				OrderLineID: line.ID,
				StaffID:     cart.StaffID,
			}); err != nil {
				return nil, classify("allocate stock", err)
			}
		}
		o.Lines = append(o.Lines, *line)
	}
	return o, nil
}

func (s *Service) writeLine(ctx context.Context, tx Tx, orderID string, pos int, cl CartLine) (*OrderLine, error) {
	unit := money.Round(cl.UnitPrice)
	line := &OrderLine{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Option:    cl.Option,
		Quantity:  cl.Quantity,
		UnitPrice: unit,
		LineTotal: money.Mul(unit, cl.Quantity),
		Position:  pos,
	}

	if cl.Option.IsDrink() {
		variantID, ok, err := tx.DrinkVariantID(ctx, cl.ProductID, cl.Option == OptionHot)
		if err != nil {
			return nil, classify("lookup drink variant", err)
		}
		if !ok {
			return nil, &MissingVariantError{ProductID: cl.ProductID, Option: cl.Option}
		}
		line.DrinkVariantID = &variantID
	} else {
		productID := cl.ProductID
		line.ProductID = &productID
	}

	if err := tx.InsertLine(ctx, line); err != nil {
		return nil, classify("insert order line", err)
	}
	return line, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, classify("get order", err)
	}
	return o, err
}

// ChargedTotal sums line totals; it equals GrandTotal for every placed order.
func (o *Order) ChargedTotal() decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(o.Lines))
	for _, l := range o.Lines {
		totals = append(totals, l.LineTotal)
	}
	return money.Sum(totals...)
}
