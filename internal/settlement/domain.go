package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/gbalekage/MY-POS-sub000/internal/payments"
)

// SnapshotLine is one billed line copied off the order at settlement time.
// Sales and signed bills keep their own denormalized copy so receipts and the
// day closure survive catalogue edits and the order's deletion.
type SnapshotLine struct {
	ItemID    int64   `json:"itemId"`
	ItemName  string  `json:"itemName"`
	StoreID   int64   `json:"storeId"`
	StoreName string  `json:"storeName"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

// Sale is the immutable record of a paid order. ReceiptRef is the opaque
// reference printed on the receipt so a paper slip can be traced back here.
type Sale struct {
	ID            int64           `json:"id"`
	ReceiptRef    string          `json:"receiptRef"`
	OrderID       int64           `json:"orderId"`
	TableID       int64           `json:"tableId"`
	TableNumber   int             `json:"tableNumber"`
	AttendantID   int64           `json:"attendantId"`
	AttendantName string          `json:"attendantName"`
	Lines         []SnapshotLine  `json:"lines"`
	TotalAmount   float64         `json:"totalAmount"`
	AmountPaid    float64         `json:"amountPaid"`
	Change        float64         `json:"change"`
	PaymentMethod payments.Method `json:"paymentMethod"`
	PaidAt        time.Time       `json:"paidAt"`
}

// SignedBill statuses.
const (
	BillOutstanding = "outstanding"
	BillPaid        = "paid"
)

// SignedBill is an order converted into a customer debt instead of a payment.
type SignedBill struct {
	ID            int64          `json:"id"`
	OrderID       int64          `json:"orderId"`
	CustomerID    int64          `json:"customerId"`
	CustomerName  string         `json:"customerName"`
	TableID       int64          `json:"tableId"`
	TableNumber   int            `json:"tableNumber"`
	AttendantID   int64          `json:"attendantId"`
	AttendantName string         `json:"attendantName"`
	Lines         []SnapshotLine `json:"lines"`
	TotalAmount   float64        `json:"totalAmount"`
	Status        string         `json:"status"`
	SignedAt      time.Time      `json:"signedAt"`
}

// BillPayment records the later settlement of a signed bill.
type BillPayment struct {
	ID            int64           `json:"id"`
	SignedBillID  int64           `json:"signedBillId"`
	AmountPaid    float64         `json:"amountPaid"`
	Change        float64         `json:"change"`
	PaymentMethod payments.Method `json:"paymentMethod"`
	PaidAt        time.Time       `json:"paidAt"`
}

var (
	ErrSaleNotFound       = errors.New("settlement: sale not found")
	ErrSignedBillNotFound = errors.New("settlement: signed bill not found")
	// ErrAlreadySettled guards against settling the same order or bill twice.
	// In the common case a second settlement attempt sees a not-found error
	// instead, because paying deletes the open order.
	ErrAlreadySettled = errors.New("settlement: already settled")
	// ErrInsufficientPayment is the sentinel behind InsufficientPaymentError.
	ErrInsufficientPayment = errors.New("settlement: insufficient payment")
	ErrInvalidMethod       = errors.New("settlement: unknown payment method")
)

// InsufficientPaymentError carries the remaining amount so the till can
// prompt for the difference.
type InsufficientPaymentError struct {
	Required  float64
	Tendered  float64
	Remaining float64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("settlement: insufficient payment: tendered %.2f of %.2f, remaining %.2f", e.Tendered, e.Required, e.Remaining)
}

func (e *InsufficientPaymentError) Unwrap() error {
	return ErrInsufficientPayment
}
