package orders

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gbalekage/MY-POS-sub000/internal/printing"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/stock"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

type fakeState struct {
	items         map[int64]stock.Item
	tables        map[int64]tables.Table
	orders        map[int64]Order
	lines         map[int64]Line
	cancellations []Cancellation
	discounts     []Discount
	nextID        int64
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		items:   map[int64]stock.Item{},
		tables:  map[int64]tables.Table{},
		orders:  map[int64]Order{},
		lines:   map[int64]Line{},
		nextID:  s.nextID,
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	c.cancellations = append(c.cancellations, s.cancellations...)
	c.discounts = append(c.discounts, s.discounts...)
	return c
}

func (s *fakeState) composeOrder(id int64) (Order, bool) {
	order, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	for _, line := range s.lines {
		if line.OrderID == id {
			order.Lines = append(order.Lines, line)
		}
	}
	sort.Slice(order.Lines, func(i, j int) bool { return order.Lines[i].ID < order.Lines[j].ID })
	return order, true
}

type fakeRepo struct {
	state *fakeState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{state: &fakeState{
		items:  map[int64]stock.Item{},
		tables: map[int64]tables.Table{},
		orders: map[int64]Order{},
		lines:  map[int64]Line{},
	}}
}

// WithTx runs fn against a deep copy and only commits it on success, so a
// failing operation leaves every entity untouched.
func (r *fakeRepo) WithTx(_ context.Context, fn func(context.Context, Tx) error) error {
	working := r.state.clone()
	if err := fn(context.Background(), &fakeTx{s: working}); err != nil {
		return err
	}
	r.state = working
	return nil
}

func (r *fakeRepo) Get(_ context.Context, orderID int64) (Order, error) {
	order, ok := r.state.composeOrder(orderID)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeRepo) GetByTable(_ context.Context, tableID int64) (Order, error) {
	for id, o := range r.state.orders {
		if o.TableID == tableID {
			order, _ := r.state.composeOrder(id)
			return order, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

type fakeTx struct {
	s *fakeState
}

func (t *fakeTx) GetItemForUpdate(_ context.Context, itemID int64) (stock.Item, error) {
	item, ok := t.s.items[itemID]
	if !ok {
		return stock.Item{}, stock.ErrItemNotFound
	}
	return item, nil
}

func (t *fakeTx) AdjustStock(_ context.Context, itemID int64, delta int) error {
	item, ok := t.s.items[itemID]
	if !ok {
		return stock.ErrItemNotFound
	}
	if item.Stock+delta < 0 {
		return stock.ErrNegativeStock
	}
	item.Stock += delta
	item.IsActive = item.Stock > 0
	t.s.items[itemID] = item
	return nil
}

func (t *fakeTx) GetTableForUpdate(_ context.Context, tableID int64) (tables.Table, error) {
	table, ok := t.s.tables[tableID]
	if !ok {
		return tables.Table{}, tables.ErrTableNotFound
	}
	return table, nil
}

func (t *fakeTx) OccupyTable(_ context.Context, tableID, orderID, serverID int64, total float64) error {
	table, ok := t.s.tables[tableID]
	if !ok {
		return tables.ErrTableNotFound
	}
	table.Status = tables.StatusOccupied
	table.CurrentOrderID = &orderID
	table.AssignedServerID = &serverID
	table.TotalAmount = total
	t.s.tables[tableID] = table
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

func (t *fakeTx) SetTableTotal(_ context.Context, tableID int64, total float64) error {
	table, ok := t.s.tables[tableID]
	if !ok {
		return tables.ErrTableNotFound
	}
	table.TotalAmount = total
	t.s.tables[tableID] = table
	return nil
}

func (t *fakeTx) GetOrderForUpdate(_ context.Context, orderID int64) (Order, error) {
	order, ok := t.s.composeOrder(orderID)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (t *fakeTx) InsertOrder(_ context.Context, order Order) (int64, error) {
	t.s.nextID++
	order.ID = t.s.nextID
	order.Lines = nil
	t.s.orders[order.ID] = order
	return order.ID, nil
}

func (t *fakeTx) InsertLine(_ context.Context, line Line) (int64, error) {
	t.s.nextID++
	line.ID = t.s.nextID
	t.s.lines[line.ID] = line
	return line.ID, nil
}

func (t *fakeTx) UpdateLine(_ context.Context, lineID int64, quantity int, lineTotal float64) error {
	line, ok := t.s.lines[lineID]
	if !ok {
		return ErrLineNotFound
	}
	line.Quantity = quantity
	line.LineTotal = lineTotal
	t.s.lines[lineID] = line
	return nil
}

func (t *fakeTx) DeleteLine(_ context.Context, lineID int64) error {
	delete(t.s.lines, lineID)
	return nil
}

func (t *fakeTx) DeleteOrder(_ context.Context, orderID int64) error {
	for id, line := range t.s.lines {
		if line.OrderID == orderID {
			delete(t.s.lines, id)
		}
	}
	delete(t.s.orders, orderID)
	return nil
}

func (t *fakeTx) SetOrderTotal(_ context.Context, orderID int64, total float64) error {
	order, ok := t.s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.TotalAmount = total
	t.s.orders[orderID] = order
	return nil
}

func (t *fakeTx) InsertCancellation(_ context.Context, c Cancellation) error {
	c.ID = int64(len(t.s.cancellations) + 1)
	t.s.cancellations = append(t.s.cancellations, c)
	return nil
}

func (t *fakeTx) InsertDiscount(_ context.Context, d Discount) (Discount, error) {
	t.s.nextID++
	d.ID = t.s.nextID
	t.s.discounts = append(t.s.discounts, d)
	return d, nil
}

type fakePrinter struct {
	tickets []printing.OrderTicket
}

func (p *fakePrinter) PrintOrderTicket(_ context.Context, t printing.OrderTicket) error {
	p.tickets = append(p.tickets, t)
	return nil
}

func (p *fakePrinter) PrintReceipt(context.Context, printing.Receipt) error          { return nil }
func (p *fakePrinter) PrintSignedBill(context.Context, printing.SignedBill) error    { return nil }
func (p *fakePrinter) PrintClosureReport(context.Context, printing.ClosureReport) error { return nil }

var testActor = shared.Actor{ID: 7, Name: "Alice"}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakePrinter) {
	t.Helper()
	repo := newFakeRepo()
	repo.state.items[1] = stock.Item{ID: 1, Name: "Primus 72cl", UnitPrice: 5000, Stock: 24, IsActive: true, StoreID: 1, StoreName: "Bar"}
	repo.state.items[2] = stock.Item{ID: 2, Name: "Brochette", UnitPrice: 2500, Stock: 10, IsActive: true, StoreID: 2, StoreName: "Kitchen"}
	repo.state.items[3] = stock.Item{ID: 3, Name: "Coca 50cl", UnitPrice: 1500, Stock: 2, IsActive: true, StoreID: 1, StoreName: "Bar"}
	repo.state.tables[1] = tables.Table{ID: 1, Number: 1, Status: tables.StatusAvailable}
	repo.state.tables[2] = tables.Table{ID: 2, Number: 2, Status: tables.StatusAvailable}
	printer := &fakePrinter{}
	svc := NewService(repo, printer, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC) })
	return svc, repo, printer
}

func placeTestOrder(t *testing.T, svc *Service) Order {
	t.Helper()
	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		TableID: 1,
		Lines: []LineInput{
			{ItemID: 1, Quantity: 4},
			{ItemID: 2, Quantity: 2},
		},
	}, testActor)
	require.NoError(t, err)
	return order
}

func TestPlaceOrder(t *testing.T) {
	svc, repo, printer := newTestService(t)

	order := placeTestOrder(t, svc)

	require.NotZero(t, order.ID)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, float64(4*5000+2*2500), order.TotalAmount)
	require.Equal(t, "Alice", order.AttendantName)
	require.Len(t, order.Lines, 2)

	require.Equal(t, 20, repo.state.items[1].Stock)
	require.Equal(t, 8, repo.state.items[2].Stock)

	table := repo.state.tables[1]
	require.Equal(t, tables.StatusOccupied, table.Status)
	require.Equal(t, order.ID, *table.CurrentOrderID)
	require.Equal(t, testActor.ID, *table.AssignedServerID)
	require.Equal(t, order.TotalAmount, table.TotalAmount)

	// One ticket per store touched.
	require.Len(t, printer.tickets, 2)
	stores := map[string]int{}
	for _, ticket := range printer.tickets {
		stores[ticket.StoreName] = len(ticket.Lines)
	}
	require.Equal(t, map[string]int{"Bar": 1, "Kitchen": 1}, stores)
}

func TestPlaceOrderMergesDuplicateItems(t *testing.T) {
	svc, _, _ := newTestService(t)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		TableID: 1,
		Lines: []LineInput{
			{ItemID: 1, Quantity: 2},
			{ItemID: 1, Quantity: 3},
		},
	}, testActor)
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.Equal(t, 5, order.Lines[0].Quantity)
}

func TestPlaceOrderOccupiedTable(t *testing.T) {
	svc, _, _ := newTestService(t)
	placeTestOrder(t, svc)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		TableID: 1,
		Lines:   []LineInput{{ItemID: 1, Quantity: 1}},
	}, testActor)
	require.ErrorIs(t, err, tables.ErrTableOccupied)
}

func TestPlaceOrderInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	svc, repo, printer := newTestService(t)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		TableID: 1,
		Lines: []LineInput{
			{ItemID: 1, Quantity: 4},
			{ItemID: 3, Quantity: 5},
		},
	}, testActor)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(3), stockErr.ItemID)
	require.Equal(t, 5, stockErr.Requested)
	require.Equal(t, 2, stockErr.Available)

	// No partial reservation survives the rollback.
	require.Equal(t, 24, repo.state.items[1].Stock)
	require.Equal(t, 2, repo.state.items[3].Stock)
	require.Equal(t, tables.StatusAvailable, repo.state.tables[1].Status)
	require.Empty(t, repo.state.orders)
	require.Empty(t, printer.tickets)
}

func TestAddItemsMergesAtFrozenPrice(t *testing.T) {
	svc, repo, printer := newTestService(t)
	order := placeTestOrder(t, svc)

	// The catalogue price moves after the order opened; the open line keeps
	// the price it was sold at.
	item := repo.state.items[1]
	item.UnitPrice = 6000
	repo.state.items[1] = item

	updated, err := svc.AddItems(context.Background(), 1, AddItemsInput{
		Lines: []LineInput{{ItemID: 1, Quantity: 2}},
	}, testActor)
	require.NoError(t, err)

	require.Len(t, updated.Lines, 2)
	line := updated.Lines[0]
	require.Equal(t, int64(1), line.ItemID)
	require.Equal(t, 6, line.Quantity)
	require.Equal(t, float64(6*5000), line.LineTotal)
	require.Equal(t, order.TotalAmount+2*5000, updated.TotalAmount)
	require.Equal(t, updated.TotalAmount, repo.state.tables[1].TotalAmount)
	require.Equal(t, 18, repo.state.items[1].Stock)

	// The added quantity reprints for its store.
	require.Len(t, printer.tickets, 3)
	require.Equal(t, "Bar", printer.tickets[2].StoreName)
	require.Equal(t, 2, printer.tickets[2].Lines[0].Quantity)
}

func TestAddItemsOnFreeTable(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddItems(context.Background(), 2, AddItemsInput{
		Lines: []LineInput{{ItemID: 1, Quantity: 1}},
	}, testActor)
	require.ErrorIs(t, err, tables.ErrTableNotOccupied)
}

func TestCancelItemsRestoresStock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	updated, err := svc.CancelItems(context.Background(), order.ID, CancelItemsInput{
		Lines: []LineInput{{ItemID: 1, Quantity: 3}},
	}, testActor)
	require.NoError(t, err)

	require.Equal(t, 23, repo.state.items[1].Stock)
	line := updated.Lines[0]
	require.Equal(t, 1, line.Quantity)
	require.Equal(t, float64(5000), line.LineTotal)
	require.Equal(t, float64(5000+2*2500), updated.TotalAmount)
	require.Equal(t, updated.TotalAmount, repo.state.tables[1].TotalAmount)

	require.Len(t, repo.state.cancellations, 1)
	c := repo.state.cancellations[0]
	require.Equal(t, 3, c.Quantity)
	require.Equal(t, float64(15000), c.Amount)
	require.Equal(t, "Alice", c.ActorName)
}

func TestCancelItemsOverQuantity(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	_, err := svc.CancelItems(context.Background(), order.ID, CancelItemsInput{
		Lines: []LineInput{{ItemID: 1, Quantity: 5}},
	}, testActor)
	require.ErrorIs(t, err, ErrTooMuchToCancel)
	require.Equal(t, 20, repo.state.items[1].Stock)
	require.Empty(t, repo.state.cancellations)
}

func TestCancelLastItemFreesTable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	_, err := svc.CancelItems(context.Background(), order.ID, CancelItemsInput{
		Lines: []LineInput{
			{ItemID: 1, Quantity: 4},
			{ItemID: 2, Quantity: 2},
		},
	}, testActor)
	require.NoError(t, err)

	require.Empty(t, repo.state.orders)
	require.Empty(t, repo.state.lines)
	table := repo.state.tables[1]
	require.Equal(t, tables.StatusAvailable, table.Status)
	require.Nil(t, table.CurrentOrderID)
	require.Nil(t, table.AssignedServerID)
	require.Zero(t, table.TotalAmount)

	require.Equal(t, 24, repo.state.items[1].Stock)
	require.Equal(t, 10, repo.state.items[2].Stock)

	_, err = svc.Get(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestBreakItemPreservesTotal(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	updated, err := svc.BreakItem(context.Background(), order.ID, BreakItemInput{
		ItemID:   1,
		Quantity: 1,
	}, testActor)
	require.NoError(t, err)

	require.Len(t, updated.Lines, 3)
	require.Equal(t, order.TotalAmount, updated.TotalAmount)

	var quantities []int
	for _, line := range updated.Lines {
		if line.ItemID == 1 {
			quantities = append(quantities, line.Quantity)
			require.Equal(t, float64(5000), line.UnitPrice)
		}
	}
	require.ElementsMatch(t, []int{3, 1}, quantities)
	require.Equal(t, 20, repo.state.items[1].Stock)
}

func TestBreakItemInvalidQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	for _, qty := range []int{0, 4, 9} {
		_, err := svc.BreakItem(context.Background(), order.ID, BreakItemInput{ItemID: 1, Quantity: qty}, testActor)
		require.ErrorIs(t, err, ErrInvalidBreakQuantity, "quantity %d", qty)
	}
}

func TestDiscount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc) // 25000

	updated, discount, err := svc.Discount(context.Background(), order.ID, DiscountInput{Percentage: 50}, testActor)
	require.NoError(t, err)

	require.Equal(t, float64(12500), updated.TotalAmount)
	require.Equal(t, float64(12500), discount.Amount)
	require.Equal(t, 50, discount.Percentage)
	require.Equal(t, "Alice", discount.ActorName)
	require.Equal(t, float64(12500), repo.state.tables[1].TotalAmount)
	require.Len(t, repo.state.discounts, 1)
}

func TestDiscountRejectsOffStepPercentage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	for _, pct := range []int{33, 4, 101, 7} {
		_, _, err := svc.Discount(context.Background(), order.ID, DiscountInput{Percentage: pct}, testActor)
		require.ErrorIs(t, err, ErrInvalidDiscount, "percentage %d", pct)
	}
	require.Empty(t, repo.state.discounts)
}

func TestSplitBill(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	source, split, err := svc.SplitBill(context.Background(), order.ID, SplitBillInput{
		NewTableID: 2,
		Lines:      []LineInput{{ItemID: 1, Quantity: 3}},
	}, testActor)
	require.NoError(t, err)

	require.Equal(t, float64(5000+2*2500), source.TotalAmount)
	require.Equal(t, float64(3*5000), split.TotalAmount)
	require.Equal(t, order.TotalAmount, source.TotalAmount+split.TotalAmount)
	require.Equal(t, order.AttendantID, split.AttendantID)
	require.Equal(t, 2, split.TableNumber)

	table := repo.state.tables[2]
	require.Equal(t, tables.StatusOccupied, table.Status)
	require.Equal(t, split.ID, *table.CurrentOrderID)
	require.Equal(t, order.AttendantID, *table.AssignedServerID)

	// Stock carries the quantities once, not twice.
	require.Equal(t, 20, repo.state.items[1].Stock)
}

func TestSplitBillWholeOrderFreesSourceTable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	_, split, err := svc.SplitBill(context.Background(), order.ID, SplitBillInput{
		NewTableID: 2,
		Lines: []LineInput{
			{ItemID: 1, Quantity: 4},
			{ItemID: 2, Quantity: 2},
		},
	}, testActor)
	require.NoError(t, err)

	require.Equal(t, order.TotalAmount, split.TotalAmount)
	require.Equal(t, tables.StatusAvailable, repo.state.tables[1].Status)
	_, err = svc.Get(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSplitBillRejectsOccupiedTarget(t *testing.T) {
	svc, _, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		TableID: 2,
		Lines:   []LineInput{{ItemID: 2, Quantity: 1}},
	}, testActor)
	require.NoError(t, err)

	_, _, err = svc.SplitBill(context.Background(), order.ID, SplitBillInput{
		NewTableID: 2,
		Lines:      []LineInput{{ItemID: 1, Quantity: 1}},
	}, testActor)
	require.ErrorIs(t, err, tables.ErrTableOccupied)
}

func TestSplitBillOverQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	order := placeTestOrder(t, svc)

	_, _, err := svc.SplitBill(context.Background(), order.ID, SplitBillInput{
		NewTableID: 2,
		Lines:      []LineInput{{ItemID: 1, Quantity: 9}},
	}, testActor)
	require.ErrorIs(t, err, ErrInvalidSplit)
}

func TestValidDiscount(t *testing.T) {
	valid := []int{5, 10, 50, 95, 100}
	for _, pct := range valid {
		require.True(t, ValidDiscount(pct), "%d", pct)
	}
	invalid := []int{0, 4, 33, 99, 105, -5}
	for _, pct := range invalid {
		require.False(t, ValidDiscount(pct), "%d", pct)
	}
}

var _ error = (*InsufficientStockError)(nil)

func TestInsufficientStockErrorUnwrap(t *testing.T) {
	err := error(&InsufficientStockError{ItemName: "Primus 72cl", Requested: 5, Available: 2})
	require.True(t, errors.Is(err, stock.ErrInsufficientStock))
	require.Contains(t, err.Error(), "Primus 72cl")
}
