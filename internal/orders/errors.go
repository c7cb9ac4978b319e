package orders

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRequest  = errors.New("malformed request")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrOrderNotFound     = errors.New("order not found")
	ErrShopNotFound      = errors.New("shop not found")
	ErrUnauthorized      = errors.New("actor not allowed on this order")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// InsufficientStockError membawa nama produk + stok tersisa supaya caller
// bisa menampilkan pesan yang berguna, bukan failure buram.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// IsBusinessError memisahkan error aturan bisnis (aman dilaporkan verbatim,
// jangan di-retry) dari error infrastruktur (boleh retry).
func IsBusinessError(err error) bool {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return true
	}
	for _, target := range []error{
		ErrMalformedRequest, ErrEmptyCart, ErrInvalidQuantity, ErrUnknownProduct, ErrOrderNotFound,
		ErrShopNotFound, ErrUnauthorized, ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
