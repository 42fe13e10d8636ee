package printing

import (
	"fmt"
	"sort"
	"strings"

	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// receiptWidth is the character width of the thermal printer paper.
const receiptWidth = 32

// Renderer turns documents into fixed-width text for thermal printers.
// Amounts are grouped French-style (10 000) to match the till currency.
type Renderer struct {
	printer *message.Printer
}

func NewRenderer() *Renderer {
	return &Renderer{printer: message.NewPrinter(language.French)}
}

func (r *Renderer) money(amount float64) string {
	return r.printer.Sprintf("%.0f FC", amount)
}

// Widths count runes, not bytes: accented item names must line up on paper.
func center(s string) string {
	width := utf8.RuneCountInString(s)
	if width >= receiptWidth {
		return s
	}
	pad := (receiptWidth - width) / 2
	return strings.Repeat(" ", pad) + s
}

func rule() string {
	return strings.Repeat("-", receiptWidth)
}

// row right-aligns value against label within the paper width.
func row(label, value string) string {
	gap := receiptWidth - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}

// OrderTicket renders a preparation ticket for one store.
func (r *Renderer) OrderTicket(t OrderTicket) string {
	var b strings.Builder
	b.WriteString(center(strings.ToUpper(t.StoreName)) + "\n")
	b.WriteString(center(fmt.Sprintf("TABLE %d", t.TableNumber)) + "\n")
	b.WriteString(center(t.AttendantName) + "\n")
	b.WriteString(rule() + "\n")
	for _, line := range t.Lines {
		b.WriteString(row(line.ItemName, fmt.Sprintf("x%d", line.Quantity)) + "\n")
	}
	b.WriteString(rule() + "\n")
	return b.String()
}

// Receipt renders the customer settlement slip.
func (r *Renderer) Receipt(doc Receipt) string {
	var b strings.Builder
	b.WriteString(center("RECU") + "\n")
	b.WriteString(center(fmt.Sprintf("Table %d / %s", doc.TableNumber, doc.AttendantName)) + "\n")
	b.WriteString(center(doc.PaidAt.Format("02/01/2006 15:04")) + "\n")
	b.WriteString(rule() + "\n")
	for _, line := range doc.Lines {
		b.WriteString(row(fmt.Sprintf("%dx %s", line.Quantity, line.ItemName), r.money(line.LineTotal)) + "\n")
	}
	b.WriteString(rule() + "\n")
	b.WriteString(row("TOTAL", r.money(doc.TotalAmount)) + "\n")
	b.WriteString(row("RECU "+strings.ToUpper(doc.PaymentMethod), r.money(doc.AmountPaid)) + "\n")
	b.WriteString(row("RENDU", r.money(doc.Change)) + "\n")
	return b.String()
}

// SignedBill renders the acknowledgement slip for a signed bill.
func (r *Renderer) SignedBill(doc SignedBill) string {
	var b strings.Builder
	b.WriteString(center("FACTURE SIGNEE") + "\n")
	b.WriteString(center(doc.CustomerName) + "\n")
	b.WriteString(center(fmt.Sprintf("Table %d / %s", doc.TableNumber, doc.AttendantName)) + "\n")
	b.WriteString(center(doc.SignedAt.Format("02/01/2006 15:04")) + "\n")
	b.WriteString(rule() + "\n")
	for _, line := range doc.Lines {
		b.WriteString(row(fmt.Sprintf("%dx %s", line.Quantity, line.ItemName), r.money(line.LineTotal)) + "\n")
	}
	b.WriteString(rule() + "\n")
	b.WriteString(row("A PAYER", r.money(doc.TotalAmount)) + "\n")
	return b.String()
}

// ClosureReport renders the end-of-day summary.
func (r *Renderer) ClosureReport(doc ClosureReport) string {
	var b strings.Builder
	b.WriteString(center("CLOTURE " + doc.ReportDate) + "\n")
	b.WriteString(rule() + "\n")
	b.WriteString(row("VENTES", r.money(doc.TotalSales)) + "\n")
	b.WriteString(row("DEPENSES", r.money(doc.TotalExpenses)) + "\n")
	methods := make([]string, 0, len(doc.ByMethod))
	for method := range doc.ByMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	for _, method := range methods {
		b.WriteString(row(strings.ToUpper(method), r.money(doc.ByMethod[method])) + "\n")
	}
	b.WriteString(rule() + "\n")
	b.WriteString(row("ECART", r.money(doc.TotalDifference)) + "\n")
	b.WriteString(row("STATUT", strings.ToUpper(doc.Status)) + "\n")
	if doc.Notes != "" {
		b.WriteString(rule() + "\n")
		b.WriteString(doc.Notes + "\n")
	}
	return b.String()
}
