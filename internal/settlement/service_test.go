package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gbalekage/MY-POS-sub000/internal/customers"
	"github.com/gbalekage/MY-POS-sub000/internal/orders"
	"github.com/gbalekage/MY-POS-sub000/internal/payments"
	"github.com/gbalekage/MY-POS-sub000/internal/printing"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

type fakeState struct {
	orders   map[int64]orders.Order
	tables   map[int64]tables.Table
	sales    map[int64]Sale
	bills    map[int64]SignedBill
	payments map[int64]BillPayment
	nextID   int64
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		orders:   map[int64]orders.Order{},
		tables:   map[int64]tables.Table{},
		sales:    map[int64]Sale{},
		bills:    map[int64]SignedBill{},
		payments: map[int64]BillPayment{},
		nextID:   s.nextID,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.bills {
		c.bills[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

type fakeRepo struct {
	state *fakeState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: &fakeState{
		orders:   map[int64]orders.Order{},
		tables:   map[int64]tables.Table{},
		sales:    map[int64]Sale{},
		bills:    map[int64]SignedBill{},
		payments: map[int64]BillPayment{},
	}}
}

func (r *fakeRepo) WithTx(_ context.Context, fn func(context.Context, Tx) error) error {
	working := r.state.clone()
	if err := fn(context.Background(), &fakeTx{s: working}); err != nil {
		return err
	}
	r.state = working
	return nil
}

func (r *fakeRepo) GetOrder(_ context.Context, orderID int64) (orders.Order, error) {
	order, ok := r.state.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeRepo) GetSale(_ context.Context, saleID int64) (Sale, error) {
	sale, ok := r.state.sales[saleID]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return sale, nil
}

func (r *fakeRepo) ListSalesByDate(_ context.Context, date time.Time) ([]Sale, error) {
	var out []Sale
	for _, sale := range r.state.sales {
		if sale.PaidAt.Format("2006-01-02") == date.Format("2006-01-02") {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListSignedBills(_ context.Context, filter BillFilter) ([]SignedBill, error) {
	var out []SignedBill
	for _, bill := range r.state.bills {
		if filter.OnlyOutstanding && bill.Status != BillOutstanding {
			continue
		}
		if filter.CustomerID != 0 && bill.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, bill)
	}
	return out, nil
}

type fakeTx struct {
	s *fakeState
}

func (t *fakeTx) GetTableForUpdate(_ context.Context, tableID int64) (tables.Table, error) {
	table, ok := t.s.tables[tableID]
	if !ok {
		return tables.Table{}, tables.ErrTableNotFound
	}
	return table, nil
}

func (t *fakeTx) GetOrderForUpdate(_ context.Context, orderID int64) (orders.Order, error) {
	order, ok := t.s.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return order, nil
}

func (t *fakeTx) DeleteOrder(_ context.Context, orderID int64) error {
	delete(t.s.orders, orderID)
	return nil
}

func (t *fakeTx) FreeTable(_ context.Context, tableID int64) error {
	table, ok := t.s.tables[tableID]
	if !ok {
		return tables.ErrTableNotFound
	}
	table.Status = tables.StatusAvailable
	table.CurrentOrderID = nil
	table.AssignedServerID = nil
	table.TotalAmount = 0
	t.s.tables[tableID] = table
	return nil
}

func (t *fakeTx) InsertSale(_ context.Context, sale Sale) (int64, error) {
	t.s.nextID++
	sale.ID = t.s.nextID
	t.s.sales[sale.ID] = sale
	return sale.ID, nil
}

func (t *fakeTx) InsertSignedBill(_ context.Context, bill SignedBill) (int64, error) {
	t.s.nextID++
	bill.ID = t.s.nextID
	t.s.bills[bill.ID] = bill
	return bill.ID, nil
}

func (t *fakeTx) GetSignedBillForUpdate(_ context.Context, billID int64) (SignedBill, error) {
	bill, ok := t.s.bills[billID]
	if !ok {
		return SignedBill{}, ErrSignedBillNotFound
	}
	return bill, nil
}

func (t *fakeTx) MarkSignedBillPaid(_ context.Context, billID int64) error {
	bill, ok := t.s.bills[billID]
	if !ok {
		return ErrSignedBillNotFound
	}
	bill.Status = BillPaid
	t.s.bills[billID] = bill
	return nil
}

func (t *fakeTx) InsertBillPayment(_ context.Context, payment BillPayment) (int64, error) {
	t.s.nextID++
	payment.ID = t.s.nextID
	t.s.payments[payment.ID] = payment
	return payment.ID, nil
}

type fakeCustomers struct {
	byID map[int64]customers.Customer
}

func (f *fakeCustomers) Get(_ context.Context, id int64) (customers.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return customers.Customer{}, customers.ErrCustomerNotFound
	}
	return c, nil
}

type fakePrinter struct {
	receipts []printing.Receipt
	bills    []printing.SignedBill
}

func (p *fakePrinter) PrintOrderTicket(context.Context, printing.OrderTicket) error { return nil }

func (p *fakePrinter) PrintReceipt(_ context.Context, r printing.Receipt) error {
	p.receipts = append(p.receipts, r)
	return nil
}

func (p *fakePrinter) PrintSignedBill(_ context.Context, b printing.SignedBill) error {
	p.bills = append(p.bills, b)
	return nil
}

func (p *fakePrinter) PrintClosureReport(context.Context, printing.ClosureReport) error { return nil }

var (
	testActor = shared.Actor{ID: 9, Name: "Bob"}
	testTime  = time.Date(2025, 3, 14, 22, 30, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakePrinter) {
	t.Helper()
	repo := newFakeRepo()
	orderID := int64(100)
	serverID := int64(9)
	repo.state.tables[1] = tables.Table{ID: 1, Number: 1, Status: tables.StatusOccupied, CurrentOrderID: &orderID, AssignedServerID: &serverID, TotalAmount: 12500}
	repo.state.orders[100] = orders.Order{
		ID:            100,
		TableID:       1,
		TableNumber:   1,
		Status:        orders.StatusPending,
		TotalAmount:   12500,
		AttendantID:   9,
		AttendantName: "Bob",
		Lines: []orders.Line{
			{ID: 1, OrderID: 100, ItemID: 1, ItemName: "Primus 72cl", StoreID: 1, StoreName: "Bar", Quantity: 2, UnitPrice: 5000, LineTotal: 10000},
			{ID: 2, OrderID: 100, ItemID: 2, ItemName: "Brochette", StoreID: 2, StoreName: "Kitchen", Quantity: 1, UnitPrice: 2500, LineTotal: 2500},
		},
	}
	printer := &fakePrinter{}
	custs := &fakeCustomers{byID: map[int64]customers.Customer{5: {ID: 5, Name: "M. Kabila"}}}
	svc := NewService(repo, custs, printer, nil, nil)
	svc.WithNow(func() time.Time { return testTime })
	return svc, repo, printer
}

func TestPayOrderWithChange(t *testing.T) {
	svc, repo, printer := newTestService(t)

	sale, err := svc.PayOrder(context.Background(), 100, PayInput{AmountPaid: 15000, Method: "cash"}, testActor)
	require.NoError(t, err)

	require.Equal(t, float64(12500), sale.TotalAmount)
	require.Equal(t, float64(15000), sale.AmountPaid)
	require.Equal(t, float64(2500), sale.Change)
	require.Equal(t, payments.MethodCash, sale.PaymentMethod)
	require.Equal(t, testTime, sale.PaidAt)
	require.NotEmpty(t, sale.ReceiptRef)
	require.Len(t, sale.Lines, 2)
	require.Equal(t, "Primus 72cl", sale.Lines[0].ItemName)

	// The order is gone and its table freed.
	require.Empty(t, repo.state.orders)
	table := repo.state.tables[1]
	require.Equal(t, tables.StatusAvailable, table.Status)
	require.Nil(t, table.CurrentOrderID)
	require.Zero(t, table.TotalAmount)

	require.Len(t, printer.receipts, 1)
	require.Equal(t, float64(2500), printer.receipts[0].Change)
}

func TestPayOrderExactAmount(t *testing.T) {
	svc, _, _ := newTestService(t)

	sale, err := svc.PayOrder(context.Background(), 100, PayInput{AmountPaid: 12500, Method: "mpesa"}, testActor)
	require.NoError(t, err)
	require.Zero(t, sale.Change)
	require.Equal(t, payments.MethodMpesa, sale.PaymentMethod)
}

func TestPayOrderInsufficientPayment(t *testing.T) {
	svc, repo, printer := newTestService(t)

	_, err := svc.PayOrder(context.Background(), 100, PayInput{AmountPaid: 10000, Method: "cash"}, testActor)
	require.ErrorIs(t, err, ErrInsufficientPayment)

	var payErr *InsufficientPaymentError
	require.ErrorAs(t, err, &payErr)
	require.Equal(t, float64(2500), payErr.Remaining)

	// Nothing settled.
	require.Contains(t, repo.state.orders, int64(100))
	require.Equal(t, tables.StatusOccupied, repo.state.tables[1].Status)
	require.Empty(t, repo.state.sales)
	require.Empty(t, printer.receipts)
}

func TestPayOrderUnknownMethod(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.PayOrder(context.Background(), 100, PayInput{AmountPaid: 12500, Method: "cowries"}, testActor)
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestPayOrderTwice(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.PayOrder(context.Background(), 100, PayInput{AmountPaid: 12500, Method: "cash"}, testActor)
	require.NoError(t, err)

	// Settling deletes the order, so a replayed request sees nothing left.
	_, err = svc.PayOrder(context.Background(), 100, PayInput{AmountPaid: 12500, Method: "cash"}, testActor)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestSignBill(t *testing.T) {
	svc, repo, printer := newTestService(t)

	bill, err := svc.SignBill(context.Background(), 100, 5, testActor)
	require.NoError(t, err)

	require.Equal(t, "M. Kabila", bill.CustomerName)
	require.Equal(t, BillOutstanding, bill.Status)
	require.Equal(t, float64(12500), bill.TotalAmount)
	require.Equal(t, testTime, bill.SignedAt)
	require.Len(t, bill.Lines, 2)

	require.Empty(t, repo.state.orders)
	require.Equal(t, tables.StatusAvailable, repo.state.tables[1].Status)
	require.Len(t, printer.bills, 1)
	require.Equal(t, "M. Kabila", printer.bills[0].CustomerName)
}

func TestSignBillUnknownCustomer(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.SignBill(context.Background(), 100, 404, testActor)
	require.ErrorIs(t, err, customers.ErrCustomerNotFound)
	require.Contains(t, repo.state.orders, int64(100))
}

func TestReceivePayment(t *testing.T) {
	svc, repo, printer := newTestService(t)

	bill, err := svc.SignBill(context.Background(), 100, 5, testActor)
	require.NoError(t, err)

	payment, err := svc.ReceivePayment(context.Background(), bill.ID, PayInput{AmountPaid: 13000, Method: "card"}, testActor)
	require.NoError(t, err)

	require.Equal(t, float64(13000), payment.AmountPaid)
	require.Equal(t, float64(500), payment.Change)
	require.Equal(t, payments.MethodCard, payment.PaymentMethod)
	require.Equal(t, BillPaid, repo.state.bills[bill.ID].Status)

	// The collection prints a receipt against the original bill lines.
	require.Len(t, printer.receipts, 1)
	require.Len(t, printer.receipts[0].Lines, 2)
}

func TestReceivePaymentInsufficient(t *testing.T) {
	svc, repo, _ := newTestService(t)

	bill, err := svc.SignBill(context.Background(), 100, 5, testActor)
	require.NoError(t, err)

	_, err = svc.ReceivePayment(context.Background(), bill.ID, PayInput{AmountPaid: 5000, Method: "cash"}, testActor)
	require.ErrorIs(t, err, ErrInsufficientPayment)

	var payErr *InsufficientPaymentError
	require.ErrorAs(t, err, &payErr)
	require.Equal(t, float64(7500), payErr.Remaining)
	require.Equal(t, BillOutstanding, repo.state.bills[bill.ID].Status)
	require.Empty(t, repo.state.payments)
}

func TestReceivePaymentTwice(t *testing.T) {
	svc, _, _ := newTestService(t)

	bill, err := svc.SignBill(context.Background(), 100, 5, testActor)
	require.NoError(t, err)

	_, err = svc.ReceivePayment(context.Background(), bill.ID, PayInput{AmountPaid: 12500, Method: "cash"}, testActor)
	require.NoError(t, err)

	_, err = svc.ReceivePayment(context.Background(), bill.ID, PayInput{AmountPaid: 12500, Method: "cash"}, testActor)
	require.ErrorIs(t, err, ErrAlreadySettled)
}

func TestListSignedBillsFiltersOutstanding(t *testing.T) {
	svc, _, _ := newTestService(t)

	bill, err := svc.SignBill(context.Background(), 100, 5, testActor)
	require.NoError(t, err)
	_, err = svc.ReceivePayment(context.Background(), bill.ID, PayInput{AmountPaid: 12500, Method: "cash"}, testActor)
	require.NoError(t, err)

	outstanding, err := svc.ListSignedBills(context.Background(), BillFilter{OnlyOutstanding: true})
	require.NoError(t, err)
	require.Empty(t, outstanding)

	all, err := svc.ListSignedBills(context.Background(), BillFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	mine, err := svc.ListSignedBills(context.Background(), BillFilter{CustomerID: 5})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	other, err := svc.ListSignedBills(context.Background(), BillFilter{CustomerID: 6})
	require.NoError(t, err)
	require.Empty(t, other)
}
