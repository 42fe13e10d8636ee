package closeday

import (
	"errors"
	"time"

	"github.com/gbalekage/MY-POS-sub000/internal/payments"
)

// Status classifies the drawer against the computed takings. The comparison
// runs on the summed difference across every payment method, so a shortfall
// in cash can be masked by an excess in card only when the totals say so.
type Status string

const (
	StatusBalanced  Status = "balanced"
	StatusExcess    Status = "excess"
	StatusShortfall Status = "shortfall"
)

// MethodSummary reconciles one payment method for the day.
type MethodSummary struct {
	Method     payments.Method `json:"method"`
	Computed   float64         `json:"computed"`
	Declared   float64         `json:"declared"`
	Difference float64         `json:"difference"`
}

// ItemSales is the day's moved quantity and revenue for one item within a
// store group.
type ItemSales struct {
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

// StoreSales groups the day's paid and signed line items under the store that
// served them, with a per-item breakdown and the store's combined total.
type StoreSales struct {
	StoreID    int64                `json:"storeId"`
	StoreName  string               `json:"storeName"`
	Items      map[string]ItemSales `json:"items"`
	StoreTotal float64              `json:"storeTotal"`
}

// AttendantSales is the day's activity attributed to one attendant by name:
// paid sales plus signed bills plus the discounts that attendant granted.
type AttendantSales struct {
	AttendantName string  `json:"attendantName"`
	Amount        float64 `json:"amount"`
}

// Report is the immutable end-of-day closure record. TotalSales is gross
// activity: paid sales plus bills signed plus discounts granted, so the day's
// trading volume is visible even when part of it left as debt or goodwill.
type Report struct {
	ID              int64            `json:"id"`
	ReportDate      string           `json:"reportDate"`
	TotalSales      float64          `json:"totalSales"`
	PaidSales       float64          `json:"paidSales"`
	SignedSales     float64          `json:"signedSales"`
	DiscountTotal   float64          `json:"discountTotal"`
	CancelledTotal  float64          `json:"cancelledTotal"`
	TotalExpenses   float64          `json:"totalExpenses"`
	Methods         []MethodSummary  `json:"methods"`
	DeclaredTotal   float64          `json:"declaredTotal"`
	ComputedTotal   float64          `json:"computedTotal"`
	TotalDifference float64          `json:"totalDifference"`
	Status          Status           `json:"status"`
	Stores          []StoreSales     `json:"stores"`
	Attendants      []AttendantSales `json:"attendants"`
	Notes           string           `json:"notes,omitempty"`
	ClosedByID      int64            `json:"closedById"`
	ClosedByName    string           `json:"closedByName"`
	ClosedAt        time.Time        `json:"closedAt"`
}

var (
	// ErrAlreadyClosed indicates the date already has a closure report.
	ErrAlreadyClosed = errors.New("closeday: date already closed")
	// ErrTablesStillOpen indicates occupied tables block the closure.
	ErrTablesStillOpen = errors.New("closeday: tables still open")
	ErrReportNotFound  = errors.New("closeday: report not found")
	ErrInvalidDate     = errors.New("closeday: invalid date")
	ErrUnknownMethod   = errors.New("closeday: unknown payment method in declaration")
)

// statusFor classifies the summed declared-minus-computed difference.
func statusFor(totalDifference float64) Status {
	switch {
	case totalDifference > 0:
		return StatusExcess
	case totalDifference < 0:
		return StatusShortfall
	default:
		return StatusBalanced
	}
}
