package orders

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
)

var (
	ErrEmptyCart   = errors.New("cart has no lines")
	ErrInvalidCart = errors.New("invalid cart")
	ErrNotFound    = errors.New("order not found")
	// ErrDuplicateOrder is returned by a store when the external id is taken.
	ErrDuplicateOrder = errors.New("order with this external id already exists")
)

// PricingError means a discounted line's product has no base price.
type PricingError struct {
	ProductID string
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("no base price for discounted product %s", e.ProductID)
}

// MissingVariantError means a drink line has no matching catalog variant.
type MissingVariantError struct {
	ProductID string
	Option    Option
}

func (e *MissingVariantError) Error() string {
	return fmt.Sprintf("no %s variant for product %s", e.Option, e.ProductID)
}

// PersistenceError wraps a store failure. Temporary ones may be retried by
// resubmitting the whole placement.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Temporary() bool { return postgres.IsTransient(e.Err) }

// classify leaves domain errors as they are and wraps anything else.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		stockErr   *inventory.InsufficientStockError
		pricingErr *PricingError
		variantErr *MissingVariantError
		persistErr *PersistenceError
	)
	switch {
	case errors.As(err, &stockErr), errors.As(err, &pricingErr), errors.As(err, &variantErr), errors.As(err, &persistErr):
		return err
	case errors.Is(err, ErrDuplicateOrder), errors.Is(err, ErrInvalidCart), errors.Is(err, ErrEmptyCart):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
