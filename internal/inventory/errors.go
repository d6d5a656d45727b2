package inventory

import "fmt"

// InsufficientStockError is returned when eligible lots cannot cover a
// deduction. It is not retryable without changing the request.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Shortfall int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, short by %d",
		e.ProductID, e.Requested, e.Shortfall)
}
