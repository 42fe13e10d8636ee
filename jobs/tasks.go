package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gbalekage/MY-POS-sub000/internal/observability"
	"github.com/gbalekage/MY-POS-sub000/internal/printing"
)

const (
	// QueuePrinting carries all print deliveries. Printing is best effort:
	// the enqueueing request has already committed, so a dead spooler only
	// delays paper, it never rolls back a sale.
	QueuePrinting = "printing"

	TaskPrintOrderTicket   = "print:order-ticket"
	TaskPrintReceipt       = "print:receipt"
	TaskPrintSignedBill    = "print:signed-bill"
	TaskPrintClosureReport = "print:closure-report"
)

// maxPrintRetries bounds redelivery attempts before a document is dropped.
const maxPrintRetries = 5

func newPrintTask(taskType string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueuePrinting), asynq.MaxRetry(maxPrintRetries)), nil
}

// NewPrintOrderTicketTask constructs an Asynq task for a preparation ticket.
func NewPrintOrderTicketTask(ticket printing.OrderTicket) (*asynq.Task, error) {
	return newPrintTask(TaskPrintOrderTicket, ticket)
}

// NewPrintReceiptTask constructs an Asynq task for a customer receipt.
func NewPrintReceiptTask(receipt printing.Receipt) (*asynq.Task, error) {
	return newPrintTask(TaskPrintReceipt, receipt)
}

// NewPrintSignedBillTask constructs an Asynq task for a signed bill slip.
func NewPrintSignedBillTask(bill printing.SignedBill) (*asynq.Task, error) {
	return newPrintTask(TaskPrintSignedBill, bill)
}

// NewPrintClosureReportTask constructs an Asynq task for the closure summary.
func NewPrintClosureReportTask(report printing.ClosureReport) (*asynq.Task, error) {
	return newPrintTask(TaskPrintClosureReport, report)
}

// PrintHandlers processes print tasks by rendering the document and handing
// it to the spooler.
type PrintHandlers struct {
	spooler  *printing.Client
	renderer *printing.Renderer
	logger   *slog.Logger
}

func NewPrintHandlers(spooler *printing.Client, renderer *printing.Renderer, logger *slog.Logger) *PrintHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrintHandlers{spooler: spooler, renderer: renderer, logger: logger}
}

// Handlers returns the task registrations for the worker mux.
func (h *PrintHandlers) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskPrintOrderTicket, Handler: h.handleOrderTicket},
		{Type: TaskPrintReceipt, Handler: h.handleReceipt},
		{Type: TaskPrintSignedBill, Handler: h.handleSignedBill},
		{Type: TaskPrintClosureReport, Handler: h.handleClosureReport},
	}
}

func (h *PrintHandlers) handleOrderTicket(ctx context.Context, t *asynq.Task) error {
	var ticket printing.OrderTicket
	if err := json.Unmarshal(t.Payload(), &ticket); err != nil {
		return asynq.SkipRetry
	}
	return h.deliver(ctx, "order_ticket", ticket.StoreName, h.renderer.OrderTicket(ticket))
}

func (h *PrintHandlers) handleReceipt(ctx context.Context, t *asynq.Task) error {
	var receipt printing.Receipt
	if err := json.Unmarshal(t.Payload(), &receipt); err != nil {
		return asynq.SkipRetry
	}
	return h.deliver(ctx, "receipt", printing.TillStation, h.renderer.Receipt(receipt))
}

func (h *PrintHandlers) handleSignedBill(ctx context.Context, t *asynq.Task) error {
	var bill printing.SignedBill
	if err := json.Unmarshal(t.Payload(), &bill); err != nil {
		return asynq.SkipRetry
	}
	return h.deliver(ctx, "signed_bill", printing.TillStation, h.renderer.SignedBill(bill))
}

func (h *PrintHandlers) handleClosureReport(ctx context.Context, t *asynq.Task) error {
	var report printing.ClosureReport
	if err := json.Unmarshal(t.Payload(), &report); err != nil {
		return asynq.SkipRetry
	}
	return h.deliver(ctx, "closure_report", printing.TillStation, h.renderer.ClosureReport(report))
}

func (h *PrintHandlers) deliver(ctx context.Context, document, station, content string) error {
	if err := h.spooler.Print(ctx, station, content); err != nil {
		observability.PrintJobs.WithLabelValues(document, "error").Inc()
		h.logger.Warn("print delivery failed", slog.String("document", document), slog.String("station", station), slog.Any("error", err))
		return err
	}
	observability.PrintJobs.WithLabelValues(document, "ok").Inc()
	return nil
}
