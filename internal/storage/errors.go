package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError reports a cart line that asks for more units than the product has.
type StockError struct {
	ProductID   int
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("not enough stock for %s", e.ProductName)
}

// Is makes errors.Is(err, ErrInsufficientStock) match any *StockError.
func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// failureReason maps a bill error to a metric label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "store_error"
	}
}
