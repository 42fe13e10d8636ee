package stock

import "errors"

// Item is the stock ledger's view of a sellable item. UnitPrice is the price
// charged when the item enters an order; Stock is the available quantity.
// IsActive always mirrors Stock > 0.
type Item struct {
	ID        int64
	Name      string
	UnitPrice float64
	Stock     int
	IsActive  bool
	StoreID   int64
	StoreName string
}

var (
	// ErrItemNotFound indicates the referenced item does not exist.
	ErrItemNotFound = errors.New("stock: item not found")
	// ErrInsufficientStock indicates an order line asked for more than is available.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrNegativeStock guards the ledger against an adjustment below zero.
	ErrNegativeStock = errors.New("stock: adjustment would make stock negative")
)
