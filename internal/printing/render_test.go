package printing

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestOrderTicket(t *testing.T) {
	r := NewRenderer()
	out := r.OrderTicket(OrderTicket{
		OrderID:       12,
		TableNumber:   4,
		AttendantName: "Alice",
		StoreName:     "Bar",
		Lines: []TicketLine{
			{ItemName: "Primus 72cl", Quantity: 4},
			{ItemName: "Coca 50cl", Quantity: 2},
		},
	})

	require.Contains(t, out, "BAR")
	require.Contains(t, out, "TABLE 4")
	require.Contains(t, out, "Alice")
	require.Contains(t, out, "Primus 72cl")
	require.Contains(t, out, "x4")
	require.Contains(t, out, "x2")
}

func TestReceipt(t *testing.T) {
	r := NewRenderer()
	out := r.Receipt(Receipt{
		SaleID:        3,
		TableNumber:   4,
		AttendantName: "Alice",
		Lines: []ReceiptLine{
			{ItemName: "Brochette", Quantity: 2, UnitPrice: 2500, LineTotal: 5000},
		},
		TotalAmount:   5000,
		AmountPaid:    10000,
		Change:        5000,
		PaymentMethod: "cash",
		PaidAt:        time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC),
	})

	require.Contains(t, out, "RECU")
	require.Contains(t, out, "2x Brochette")
	require.Contains(t, out, "TOTAL")
	require.Contains(t, out, "RECU CASH")
	require.Contains(t, out, "RENDU")
	require.Contains(t, out, "14/03/2025")
}

func TestSignedBill(t *testing.T) {
	r := NewRenderer()
	out := r.SignedBill(SignedBill{
		CustomerName:  "M. Kabila",
		TableNumber:   1,
		AttendantName: "Bob",
		Lines:         []ReceiptLine{{ItemName: "Primus 72cl", Quantity: 1, UnitPrice: 5000, LineTotal: 5000}},
		TotalAmount:   5000,
		SignedAt:      time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC),
	})

	require.Contains(t, out, "FACTURE SIGNEE")
	require.Contains(t, out, "M. Kabila")
	require.Contains(t, out, "A PAYER")
}

func TestClosureReportListsMethodsInOrder(t *testing.T) {
	r := NewRenderer()
	out := r.ClosureReport(ClosureReport{
		ReportDate:    "2025-03-14",
		TotalSales:    60000,
		TotalExpenses: 8000,
		Status:        "shortfall",
		ByMethod:      map[string]float64{"mpesa": 10000, "cash": 40000, "card": 10000},
	})

	require.Contains(t, out, "CLOTURE 2025-03-14")
	require.Contains(t, out, "STATUT")
	require.Contains(t, out, "SHORTFALL")
	require.Less(t, strings.Index(out, "CARD"), strings.Index(out, "CASH"))
	require.Less(t, strings.Index(out, "CASH"), strings.Index(out, "MPESA"))
}

func TestLinesFitPaperWidth(t *testing.T) {
	out := row("TOTAL", "12500 FC")
	require.Len(t, out, receiptWidth)
}

func TestAccentedNamesKeepColumnWidth(t *testing.T) {
	out := row("2x Brochette épicée", "5000 FC")
	require.Equal(t, receiptWidth, utf8.RuneCountInString(out))

	plain := row("2x Brochette epicee", "5000 FC")
	require.Equal(t, utf8.RuneCountInString(plain), utf8.RuneCountInString(out))

	centered := center("Thé")
	require.Equal(t, (receiptWidth-3)/2+3, utf8.RuneCountInString(centered))
}
