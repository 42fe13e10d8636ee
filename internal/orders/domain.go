package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/gbalekage/MY-POS-sub000/internal/stock"
)

// Status enumerates order lifecycle states. An order only ever persists as
// pending: settlement replaces it with a sale or signed bill record and
// cancelling the last line deletes it outright.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusSigned    Status = "signed"
)

// Order is the live cart bound to one occupied table.
type Order struct {
	ID            int64
	TableID       int64
	TableNumber   int
	Status        Status
	TotalAmount   float64
	AttendantID   int64
	AttendantName string
	CustomerID    *int64
	Lines         []Line
	CreatedAt     time.Time
}

// Line is one order line. UnitPrice is frozen at the moment the item entered
// the order; LineTotal = Quantity * UnitPrice.
type Line struct {
	ID        int64
	OrderID   int64
	ItemID    int64
	ItemName  string
	StoreID   int64
	StoreName string
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

// Cancellation is an append-only log row recording one cancelled quantity,
// denormalized so the day closure can aggregate it after the order is gone.
type Cancellation struct {
	ID          int64
	OrderID     int64
	ItemID      int64
	ItemName    string
	Quantity    int
	UnitPrice   float64
	Amount      float64
	ActorID     int64
	ActorName   string
	CancelledAt time.Time
}

// Discount is an append-only log row recording one discount application.
type Discount struct {
	ID         int64
	OrderID    int64
	Percentage int
	Amount     float64
	ActorID    int64
	ActorName  string
	AppliedAt  time.Time
}

// ValidDiscount reports whether pct belongs to the allowed set {5,10,...,100}.
func ValidDiscount(pct int) bool {
	return pct >= 5 && pct <= 100 && pct%5 == 0
}

var (
	// ErrOrderNotFound indicates the referenced order does not exist (it may
	// have been settled or emptied already).
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrLineNotFound indicates the item is not on the order.
	ErrLineNotFound = errors.New("orders: item not on order")
	// ErrTooMuchToCancel indicates a cancellation exceeding the line quantity.
	ErrTooMuchToCancel = errors.New("orders: cancel quantity exceeds line quantity")
	// ErrInvalidBreakQuantity indicates a break quantity outside 0 < q < line
	// quantity. Breaking the entire line is a no-op and must use cancellation.
	ErrInvalidBreakQuantity = errors.New("orders: break quantity must be positive and below the line quantity")
	// ErrInvalidDiscount indicates a percentage outside the allowed set.
	ErrInvalidDiscount = errors.New("orders: discount percentage not allowed")
	// ErrInvalidSplit indicates a split quantity exceeding its line quantity.
	ErrInvalidSplit = errors.New("orders: split quantity exceeds line quantity")
)

// InsufficientStockError reports the first order line that asked for more
// than the item has available.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for %s: requested %d, available %d", e.ItemName, e.Requested, e.Available)
}

// Unwrap lets callers match the error with errors.Is against the stock
// ledger sentinel.
func (e *InsufficientStockError) Unwrap() error {
	return stock.ErrInsufficientStock
}
