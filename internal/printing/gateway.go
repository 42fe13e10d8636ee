package printing

import (
	"context"
	"time"
)

// Gateway sends documents to the physical printers. Implementations must be
// safe to call from request handlers after the owning transaction has
// committed; a returned error means the document could not be handed off, not
// that the business operation failed.
type Gateway interface {
	PrintOrderTicket(ctx context.Context, ticket OrderTicket) error
	PrintReceipt(ctx context.Context, receipt Receipt) error
	PrintSignedBill(ctx context.Context, bill SignedBill) error
	PrintClosureReport(ctx context.Context, report ClosureReport) error
}

// TicketLine is one item row on a kitchen or bar ticket.
type TicketLine struct {
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// OrderTicket tells one store which items to prepare for a table.
type OrderTicket struct {
	OrderID       int64        `json:"orderId"`
	TableNumber   int          `json:"tableNumber"`
	AttendantName string       `json:"attendantName"`
	StoreID       int64        `json:"storeId"`
	StoreName     string       `json:"storeName"`
	Lines         []TicketLine `json:"lines"`
}

// ReceiptLine is one billed row on a customer receipt.
type ReceiptLine struct {
	ItemName  string  `json:"itemName"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

// Receipt is the customer-facing settlement document.
type Receipt struct {
	SaleID        int64         `json:"saleId"`
	TableNumber   int           `json:"tableNumber"`
	AttendantName string        `json:"attendantName"`
	Lines         []ReceiptLine `json:"lines"`
	TotalAmount   float64       `json:"totalAmount"`
	AmountPaid    float64       `json:"amountPaid"`
	Change        float64       `json:"change"`
	PaymentMethod string        `json:"paymentMethod"`
	PaidAt        time.Time     `json:"paidAt"`
}

// SignedBill is the acknowledgement slip printed when a known customer signs
// instead of paying.
type SignedBill struct {
	SignedBillID  int64         `json:"signedBillId"`
	CustomerName  string        `json:"customerName"`
	TableNumber   int           `json:"tableNumber"`
	AttendantName string        `json:"attendantName"`
	Lines         []ReceiptLine `json:"lines"`
	TotalAmount   float64       `json:"totalAmount"`
	SignedAt      time.Time     `json:"signedAt"`
}

// ClosureReport is the end-of-day summary printed at the till.
type ClosureReport struct {
	ReportDate      string             `json:"reportDate"`
	TotalSales      float64            `json:"totalSales"`
	TotalExpenses   float64            `json:"totalExpenses"`
	DeclaredCash    float64            `json:"declaredCash"`
	ExpectedCash    float64            `json:"expectedCash"`
	TotalDifference float64            `json:"totalDifference"`
	Status          string             `json:"status"`
	ByMethod        map[string]float64 `json:"byMethod"`
	Notes           string             `json:"notes,omitempty"`
}
