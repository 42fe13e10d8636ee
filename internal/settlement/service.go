package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gbalekage/MY-POS-sub000/internal/customers"
	"github.com/gbalekage/MY-POS-sub000/internal/observability"
	"github.com/gbalekage/MY-POS-sub000/internal/orders"
	"github.com/gbalekage/MY-POS-sub000/internal/payments"
	"github.com/gbalekage/MY-POS-sub000/internal/printing"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// Tx exposes the transactional operations settlement needs. Converting an
// order into a sale or signed bill deletes the order and frees its table in
// the same transaction that writes the settlement record.
type Tx interface {
	GetTableForUpdate(ctx context.Context, tableID int64) (tables.Table, error)
	GetOrderForUpdate(ctx context.Context, orderID int64) (orders.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	FreeTable(ctx context.Context, tableID int64) error

	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSignedBill(ctx context.Context, bill SignedBill) (int64, error)
	GetSignedBillForUpdate(ctx context.Context, billID int64) (SignedBill, error)
	MarkSignedBillPaid(ctx context.Context, billID int64) error
	InsertBillPayment(ctx context.Context, payment BillPayment) (int64, error)
}

// Repository abstracts settlement persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetOrder(ctx context.Context, orderID int64) (orders.Order, error)
	GetSale(ctx context.Context, saleID int64) (Sale, error)
	ListSalesByDate(ctx context.Context, date time.Time) ([]Sale, error)
	ListSignedBills(ctx context.Context, filter BillFilter) ([]SignedBill, error)
}

// BillFilter narrows a signed bill listing. A zero CustomerID matches every
// customer.
type BillFilter struct {
	OnlyOutstanding bool
	CustomerID      int64
}

// CustomerPort resolves patrons allowed to sign bills.
type CustomerPort interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service converts open orders into sales and signed bills and collects
// payments on outstanding bills.
type Service struct {
	repo      Repository
	customers CustomerPort
	printer   printing.Gateway
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, customerPort CustomerPort, printer printing.Gateway, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		customers: customerPort,
		printer:   printer,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PayOrder settles an open order in full. The tendered amount must cover the
// total; the overpayment comes back as change. The order row is deleted and
// its table freed atomically with the sale insert.
func (s *Service) PayOrder(ctx context.Context, orderID int64, in PayInput, actor shared.Actor) (Sale, error) {
	method := payments.Method(in.Method)
	if !payments.Valid(method) {
		return Sale{}, fmt.Errorf("%w: %q", ErrInvalidMethod, in.Method)
	}

	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := s.lockTableThenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != orders.StatusPending {
			return ErrAlreadySettled
		}
		if in.AmountPaid < order.TotalAmount {
			return &InsufficientPaymentError{
				Required:  order.TotalAmount,
				Tendered:  in.AmountPaid,
				Remaining: order.TotalAmount - in.AmountPaid,
			}
		}

		sale = Sale{
			ReceiptRef:    uuid.NewString(),
			OrderID:       order.ID,
			TableID:       order.TableID,
			TableNumber:   order.TableNumber,
			AttendantID:   order.AttendantID,
			AttendantName: order.AttendantName,
			Lines:         snapshotLines(order.Lines),
			TotalAmount:   order.TotalAmount,
			AmountPaid:    in.AmountPaid,
			Change:        in.AmountPaid - order.TotalAmount,
			PaymentMethod: method,
			PaidAt:        s.now().UTC(),
		}
		sale.ID, err = tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, order.ID); err != nil {
			return err
		}
		return tx.FreeTable(ctx, order.TableID)
	})
	if err != nil {
		return Sale{}, err
	}

	observability.SalesSettled.WithLabelValues(string(method)).Inc()
	observability.SalesAmount.WithLabelValues(string(method)).Add(sale.TotalAmount)
	s.recordAudit(ctx, actor, "settlement:pay-order", "sale", sale.ID, map[string]any{"order_id": orderID, "method": method, "total": sale.TotalAmount})
	s.printReceipt(ctx, sale)
	return sale, nil
}

// SignBill converts an open order into an outstanding debt for a registered
// customer.
func (s *Service) SignBill(ctx context.Context, orderID, customerID int64, actor shared.Actor) (SignedBill, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return SignedBill{}, err
	}

	var bill SignedBill
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := s.lockTableThenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != orders.StatusPending {
			return ErrAlreadySettled
		}

		bill = SignedBill{
			OrderID:       order.ID,
			CustomerID:    customer.ID,
			CustomerName:  customer.Name,
			TableID:       order.TableID,
			TableNumber:   order.TableNumber,
			AttendantID:   order.AttendantID,
			AttendantName: order.AttendantName,
			Lines:         snapshotLines(order.Lines),
			TotalAmount:   order.TotalAmount,
			Status:        BillOutstanding,
			SignedAt:      s.now().UTC(),
		}
		bill.ID, err = tx.InsertSignedBill(ctx, bill)
		if err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, order.ID); err != nil {
			return err
		}
		return tx.FreeTable(ctx, order.TableID)
	})
	if err != nil {
		return SignedBill{}, err
	}

	observability.BillsSigned.Inc()
	s.recordAudit(ctx, actor, "settlement:sign-bill", "signed_bill", bill.ID, map[string]any{"order_id": orderID, "customer_id": customerID, "total": bill.TotalAmount})
	s.printSignedBill(ctx, bill)
	return bill, nil
}

// ReceivePayment settles an outstanding signed bill in full.
func (s *Service) ReceivePayment(ctx context.Context, billID int64, in PayInput, actor shared.Actor) (BillPayment, error) {
	method := payments.Method(in.Method)
	if !payments.Valid(method) {
		return BillPayment{}, fmt.Errorf("%w: %q", ErrInvalidMethod, in.Method)
	}

	var (
		payment BillPayment
		bill    SignedBill
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		bill, err = tx.GetSignedBillForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if bill.Status != BillOutstanding {
			return ErrAlreadySettled
		}
		if in.AmountPaid < bill.TotalAmount {
			return &InsufficientPaymentError{
				Required:  bill.TotalAmount,
				Tendered:  in.AmountPaid,
				Remaining: bill.TotalAmount - in.AmountPaid,
			}
		}

		payment = BillPayment{
			SignedBillID:  bill.ID,
			AmountPaid:    in.AmountPaid,
			Change:        in.AmountPaid - bill.TotalAmount,
			PaymentMethod: method,
			PaidAt:        s.now().UTC(),
		}
		payment.ID, err = tx.InsertBillPayment(ctx, payment)
		if err != nil {
			return err
		}
		return tx.MarkSignedBillPaid(ctx, bill.ID)
	})
	if err != nil {
		return BillPayment{}, err
	}

	observability.SalesSettled.WithLabelValues(string(method)).Inc()
	observability.SalesAmount.WithLabelValues(string(method)).Add(bill.TotalAmount)
	s.recordAudit(ctx, actor, "settlement:receive-payment", "signed_bill", bill.ID, map[string]any{"method": method, "amount": in.AmountPaid})
	s.printReceipt(ctx, Sale{
		ID:            payment.ID,
		TableNumber:   bill.TableNumber,
		AttendantName: bill.AttendantName,
		Lines:         bill.Lines,
		TotalAmount:   bill.TotalAmount,
		AmountPaid:    payment.AmountPaid,
		Change:        payment.Change,
		PaymentMethod: method,
		PaidAt:        payment.PaidAt,
	})
	return payment, nil
}

// ListSales returns the sales recorded on one business date.
func (s *Service) ListSales(ctx context.Context, date time.Time) ([]Sale, error) {
	return s.repo.ListSalesByDate(ctx, date)
}

// ListSignedBills returns signed bills narrowed by the filter, covering both
// the till's outstanding list and a single customer's open account.
func (s *Service) ListSignedBills(ctx context.Context, filter BillFilter) ([]SignedBill, error) {
	return s.repo.ListSignedBills(ctx, filter)
}

// lockTableThenOrder mirrors the order engine's lock sequence so the two
// services cannot deadlock against each other.
func (s *Service) lockTableThenOrder(ctx context.Context, tx Tx, orderID int64) (orders.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if _, err := tx.GetTableForUpdate(ctx, order.TableID); err != nil {
		return orders.Order{}, err
	}
	return tx.GetOrderForUpdate(ctx, orderID)
}

func snapshotLines(lines []orders.Line) []SnapshotLine {
	out := make([]SnapshotLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, SnapshotLine{
			ItemID:    l.ItemID,
			ItemName:  l.ItemName,
			StoreID:   l.StoreID,
			StoreName: l.StoreName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return out
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func (s *Service) printReceipt(ctx context.Context, sale Sale) {
	if s.printer == nil {
		return
	}
	receipt := printing.Receipt{
		SaleID:        sale.ID,
		TableNumber:   sale.TableNumber,
		AttendantName: sale.AttendantName,
		TotalAmount:   sale.TotalAmount,
		AmountPaid:    sale.AmountPaid,
		Change:        sale.Change,
		PaymentMethod: string(sale.PaymentMethod),
		PaidAt:        sale.PaidAt,
	}
	for _, l := range sale.Lines {
		receipt.Lines = append(receipt.Lines, printing.ReceiptLine{
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	if err := s.printer.PrintReceipt(ctx, receipt); err != nil {
		s.logger.Warn("print receipt", slog.Int64("sale_id", sale.ID), slog.Any("error", err))
	}
}

func (s *Service) printSignedBill(ctx context.Context, bill SignedBill) {
	if s.printer == nil {
		return
	}
	doc := printing.SignedBill{
		SignedBillID:  bill.ID,
		CustomerName:  bill.CustomerName,
		TableNumber:   bill.TableNumber,
		AttendantName: bill.AttendantName,
		TotalAmount:   bill.TotalAmount,
		SignedAt:      bill.SignedAt,
	}
	for _, l := range bill.Lines {
		doc.Lines = append(doc.Lines, printing.ReceiptLine{
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	if err := s.printer.PrintSignedBill(ctx, doc); err != nil {
		s.logger.Warn("print signed bill", slog.Int64("signed_bill_id", bill.ID), slog.Any("error", err))
	}
}
