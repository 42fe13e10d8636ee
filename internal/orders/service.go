package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gbalekage/MY-POS-sub000/internal/printing"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/stock"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// Tx exposes the transactional operations the order engine composes. Every
// mutation below runs stock, order and table writes inside one transaction so
// the three entities can never disagree after a partial failure.
type Tx interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (stock.Item, error)
	AdjustStock(ctx context.Context, itemID int64, delta int) error

	GetTableForUpdate(ctx context.Context, tableID int64) (tables.Table, error)
	OccupyTable(ctx context.Context, tableID, orderID, serverID int64, total float64) error
	FreeTable(ctx context.Context, tableID int64) error
	SetTableTotal(ctx context.Context, tableID int64, total float64) error

	GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error)
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	UpdateLine(ctx context.Context, lineID int64, quantity int, lineTotal float64) error
	DeleteLine(ctx context.Context, lineID int64) error
	DeleteOrder(ctx context.Context, orderID int64) error
	SetOrderTotal(ctx context.Context, orderID int64, total float64) error

	InsertCancellation(ctx context.Context, c Cancellation) error
	InsertDiscount(ctx context.Context, d Discount) (Discount, error)
}

// Repository abstracts order persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	Get(ctx context.Context, orderID int64) (Order, error)
	GetByTable(ctx context.Context, tableID int64) (Order, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the open-order lifecycle.
type Service struct {
	repo    Repository
	printer printing.Gateway
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, printer printing.Gateway, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		printer: printer,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns one open order with its lines.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.Get(ctx, orderID)
}

// GetByTable returns the open order bound to a table.
func (s *Service) GetByTable(ctx context.Context, tableID int64) (Order, error) {
	return s.repo.GetByTable(ctx, tableID)
}

// PlaceOrder opens an order against a free table, reserving stock for every
// line. The attendant becomes the table's assigned server.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput, actor shared.Actor) (Order, error) {
	lines := mergeLineInputs(in.Lines)
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		table, err := tx.GetTableForUpdate(ctx, in.TableID)
		if err != nil {
			return err
		}
		if table.Occupied() {
			return tables.ErrTableOccupied
		}

		order = Order{
			TableID:       table.ID,
			TableNumber:   table.Number,
			Status:        StatusPending,
			AttendantID:   actor.ID,
			AttendantName: actor.Name,
			CreatedAt:     s.now().UTC(),
		}
		built, total, err := s.reserveLines(ctx, tx, lines)
		if err != nil {
			return err
		}
		order.Lines = built
		order.TotalAmount = total

		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for i := range order.Lines {
			order.Lines[i].OrderID = orderID
			lineID, err := tx.InsertLine(ctx, order.Lines[i])
			if err != nil {
				return err
			}
			order.Lines[i].ID = lineID
		}
		return tx.OccupyTable(ctx, table.ID, orderID, actor.ID, total)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, actor, "order:place", order.ID, map[string]any{"table_id": order.TableID, "total": order.TotalAmount})
	s.printOrderTickets(ctx, order, order.Lines)
	return order, nil
}

// AddItems appends quantities to the open order on a table. Lines for an item
// already on the order are merged rather than duplicated, and both totals are
// incremented by the added amount rather than recomputed.
func (s *Service) AddItems(ctx context.Context, tableID int64, in AddItemsInput, actor shared.Actor) (Order, error) {
	requested := mergeLineInputs(in.Lines)
	var (
		order Order
		added []Line
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		table, err := tx.GetTableForUpdate(ctx, tableID)
		if err != nil {
			return err
		}
		if !table.Occupied() || table.CurrentOrderID == nil {
			return tables.ErrTableNotOccupied
		}
		order, err = tx.GetOrderForUpdate(ctx, *table.CurrentOrderID)
		if err != nil {
			return err
		}

		added = added[:0]
		var addedAmount float64
		for _, req := range requested {
			item, err := tx.GetItemForUpdate(ctx, req.ItemID)
			if err != nil {
				return err
			}
			if item.Stock < req.Quantity {
				return &InsufficientStockError{ItemID: item.ID, ItemName: item.Name, Requested: req.Quantity, Available: item.Stock}
			}
			if err := tx.AdjustStock(ctx, item.ID, -req.Quantity); err != nil {
				return err
			}
			if existing := findLine(order.Lines, req.ItemID); existing != nil {
				// Merge at the line's frozen price.
				delta := float64(req.Quantity) * existing.UnitPrice
				existing.Quantity += req.Quantity
				existing.LineTotal += delta
				if err := tx.UpdateLine(ctx, existing.ID, existing.Quantity, existing.LineTotal); err != nil {
					return err
				}
				addedAmount += delta
				added = append(added, Line{ItemID: item.ID, ItemName: item.Name, StoreID: item.StoreID, StoreName: item.StoreName, Quantity: req.Quantity, UnitPrice: existing.UnitPrice})
				continue
			}
			line := Line{
				OrderID:   order.ID,
				ItemID:    item.ID,
				ItemName:  item.Name,
				StoreID:   item.StoreID,
				StoreName: item.StoreName,
				Quantity:  req.Quantity,
				UnitPrice: item.UnitPrice,
				LineTotal: float64(req.Quantity) * item.UnitPrice,
			}
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			order.Lines = append(order.Lines, line)
			addedAmount += line.LineTotal
			added = append(added, line)
		}

		order.TotalAmount += addedAmount
		if err := tx.SetOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return err
		}
		return tx.SetTableTotal(ctx, order.TableID, order.TotalAmount)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, actor, "order:add-items", order.ID, map[string]any{"table_id": order.TableID, "total": order.TotalAmount})
	s.printOrderTickets(ctx, order, added)
	return order, nil
}

// CancelItems removes quantities from an open order, restoring stock and
// appending one cancellation log row per line touched. Cancelling the last
// remaining quantity deletes the order and frees its table.
func (s *Service) CancelItems(ctx context.Context, orderID int64, in CancelItemsInput, actor shared.Actor) (Order, error) {
	toCancel := mergeLineInputs(in.Lines)
	var (
		order   Order
		emptied bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		order, err = s.lockTableThenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, req := range toCancel {
			line := findLine(order.Lines, req.ItemID)
			if line == nil {
				return fmt.Errorf("%w: item %d", ErrLineNotFound, req.ItemID)
			}
			if req.Quantity > line.Quantity {
				return fmt.Errorf("%w: %s has %d, asked to cancel %d", ErrTooMuchToCancel, line.ItemName, line.Quantity, req.Quantity)
			}
			if err := tx.AdjustStock(ctx, line.ItemID, req.Quantity); err != nil {
				return err
			}
			if err := tx.InsertCancellation(ctx, Cancellation{
				OrderID:     order.ID,
				ItemID:      line.ItemID,
				ItemName:    line.ItemName,
				Quantity:    req.Quantity,
				UnitPrice:   line.UnitPrice,
				Amount:      float64(req.Quantity) * line.UnitPrice,
				ActorID:     actor.ID,
				ActorName:   actor.Name,
				CancelledAt: now,
			}); err != nil {
				return err
			}
			line.Quantity -= req.Quantity
			line.LineTotal = float64(line.Quantity) * line.UnitPrice
			if line.Quantity == 0 {
				if err := tx.DeleteLine(ctx, line.ID); err != nil {
					return err
				}
			} else if err := tx.UpdateLine(ctx, line.ID, line.Quantity, line.LineTotal); err != nil {
				return err
			}
		}

		order.Lines = pruneEmptyLines(order.Lines)
		if len(order.Lines) == 0 {
			emptied = true
			if err := tx.DeleteOrder(ctx, order.ID); err != nil {
				return err
			}
			return tx.FreeTable(ctx, order.TableID)
		}
		order.TotalAmount = sumLines(order.Lines)
		if err := tx.SetOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return err
		}
		return tx.SetTableTotal(ctx, order.TableID, order.TotalAmount)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, actor, "order:cancel-items", orderID, map[string]any{"emptied": emptied})
	if emptied {
		return Order{}, nil
	}
	return order, nil
}

// BreakItem splits one line into two lines carrying the same item and unit
// price so a table's bill can be itemized per guest. The order total is
// unchanged by construction.
func (s *Service) BreakItem(ctx context.Context, orderID int64, in BreakItemInput, actor shared.Actor) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		order, err = s.lockTableThenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		line := findBreakableLine(order.Lines, in.ItemID, in.Quantity)
		if line == nil {
			if findLine(order.Lines, in.ItemID) == nil {
				return fmt.Errorf("%w: item %d", ErrLineNotFound, in.ItemID)
			}
			return ErrInvalidBreakQuantity
		}

		line.Quantity -= in.Quantity
		line.LineTotal = float64(line.Quantity) * line.UnitPrice
		if err := tx.UpdateLine(ctx, line.ID, line.Quantity, line.LineTotal); err != nil {
			return err
		}
		split := Line{
			OrderID:   order.ID,
			ItemID:    line.ItemID,
			ItemName:  line.ItemName,
			StoreID:   line.StoreID,
			StoreName: line.StoreName,
			Quantity:  in.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: float64(in.Quantity) * line.UnitPrice,
		}
		splitID, err := tx.InsertLine(ctx, split)
		if err != nil {
			return err
		}
		split.ID = splitID
		order.Lines = append(order.Lines, split)

		order.TotalAmount = sumLines(order.Lines)
		if err := tx.SetOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return err
		}
		return tx.SetTableTotal(ctx, order.TableID, order.TotalAmount)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, actor, "order:break-item", orderID, map[string]any{"item_id": in.ItemID, "quantity": in.Quantity})
	return order, nil
}

// Discount reduces the order total by one of the allowed percentages and logs
// the application against the acting user.
func (s *Service) Discount(ctx context.Context, orderID int64, in DiscountInput, actor shared.Actor) (Order, Discount, error) {
	if !ValidDiscount(in.Percentage) {
		return Order{}, Discount{}, fmt.Errorf("%w: %d%%", ErrInvalidDiscount, in.Percentage)
	}
	var (
		order    Order
		discount Discount
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		order, err = s.lockTableThenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		amount := order.TotalAmount * float64(in.Percentage) / 100
		discount, err = tx.InsertDiscount(ctx, Discount{
			OrderID:    order.ID,
			Percentage: in.Percentage,
			Amount:     amount,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			AppliedAt:  s.now().UTC(),
		})
		if err != nil {
			return err
		}
		order.TotalAmount -= amount
		if err := tx.SetOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
			return err
		}
		return tx.SetTableTotal(ctx, order.TableID, order.TotalAmount)
	})
	if err != nil {
		return Order{}, Discount{}, err
	}

	s.recordAudit(ctx, actor, "order:discount", orderID, map[string]any{"percentage": in.Percentage, "amount": discount.Amount})
	return order, discount, nil
}

// SplitBill moves the chosen quantities onto a brand-new order bound to a
// free table under the same attendant. Both totals are recomputed from their
// own surviving lines.
func (s *Service) SplitBill(ctx context.Context, orderID int64, in SplitBillInput, actor shared.Actor) (Order, Order, error) {
	toSplit := mergeLineInputs(in.Lines)
	var source, split Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		source, err = s.lockTableThenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		newTable, err := tx.GetTableForUpdate(ctx, in.NewTableID)
		if err != nil {
			return err
		}
		if newTable.Occupied() {
			return tables.ErrTableOccupied
		}

		split = Order{
			TableID:       newTable.ID,
			TableNumber:   newTable.Number,
			Status:        StatusPending,
			AttendantID:   source.AttendantID,
			AttendantName: source.AttendantName,
			CreatedAt:     s.now().UTC(),
		}
		for _, req := range toSplit {
			line := findLine(source.Lines, req.ItemID)
			if line == nil {
				return fmt.Errorf("%w: item %d", ErrLineNotFound, req.ItemID)
			}
			if req.Quantity > line.Quantity {
				return fmt.Errorf("%w: %s has %d, asked to move %d", ErrInvalidSplit, line.ItemName, line.Quantity, req.Quantity)
			}
			split.Lines = append(split.Lines, Line{
				ItemID:    line.ItemID,
				ItemName:  line.ItemName,
				StoreID:   line.StoreID,
				StoreName: line.StoreName,
				Quantity:  req.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: float64(req.Quantity) * line.UnitPrice,
			})
			line.Quantity -= req.Quantity
			line.LineTotal = float64(line.Quantity) * line.UnitPrice
			if line.Quantity == 0 {
				if err := tx.DeleteLine(ctx, line.ID); err != nil {
					return err
				}
			} else if err := tx.UpdateLine(ctx, line.ID, line.Quantity, line.LineTotal); err != nil {
				return err
			}
		}

		split.TotalAmount = sumLines(split.Lines)
		splitID, err := tx.InsertOrder(ctx, split)
		if err != nil {
			return err
		}
		split.ID = splitID
		for i := range split.Lines {
			split.Lines[i].OrderID = splitID
			lineID, err := tx.InsertLine(ctx, split.Lines[i])
			if err != nil {
				return err
			}
			split.Lines[i].ID = lineID
		}
		if err := tx.OccupyTable(ctx, newTable.ID, splitID, source.AttendantID, split.TotalAmount); err != nil {
			return err
		}

		source.Lines = pruneEmptyLines(source.Lines)
		if len(source.Lines) == 0 {
			if err := tx.DeleteOrder(ctx, source.ID); err != nil {
				return err
			}
			return tx.FreeTable(ctx, source.TableID)
		}
		source.TotalAmount = sumLines(source.Lines)
		if err := tx.SetOrderTotal(ctx, source.ID, source.TotalAmount); err != nil {
			return err
		}
		return tx.SetTableTotal(ctx, source.TableID, source.TotalAmount)
	})
	if err != nil {
		return Order{}, Order{}, err
	}

	s.recordAudit(ctx, actor, "order:split-bill", orderID, map[string]any{"new_table_id": in.NewTableID, "new_order_id": split.ID})
	return source, split, nil
}

// reserveLines locks the requested items in ascending id order, checks stock
// and decrements it, returning the built order lines and their total.
func (s *Service) reserveLines(ctx context.Context, tx Tx, requested []LineInput) ([]Line, float64, error) {
	sorted := make([]LineInput, len(requested))
	copy(sorted, requested)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	items := make(map[int64]stock.Item, len(sorted))
	for _, req := range sorted {
		item, err := tx.GetItemForUpdate(ctx, req.ItemID)
		if err != nil {
			return nil, 0, err
		}
		if item.Stock < req.Quantity {
			return nil, 0, &InsufficientStockError{ItemID: item.ID, ItemName: item.Name, Requested: req.Quantity, Available: item.Stock}
		}
		if err := tx.AdjustStock(ctx, item.ID, -req.Quantity); err != nil {
			return nil, 0, err
		}
		items[item.ID] = item
	}

	lines := make([]Line, 0, len(requested))
	var total float64
	for _, req := range requested {
		item := items[req.ItemID]
		line := Line{
			ItemID:    item.ID,
			ItemName:  item.Name,
			StoreID:   item.StoreID,
			StoreName: item.StoreName,
			Quantity:  req.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: float64(req.Quantity) * item.UnitPrice,
		}
		total += line.LineTotal
		lines = append(lines, line)
	}
	return lines, total, nil
}

// lockTableThenOrder locks the owning table before the order so every
// operation acquires the two rows in the same sequence.
func (s *Service) lockTableThenOrder(ctx context.Context, tx Tx, orderID int64) (Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if _, err := tx.GetTableForUpdate(ctx, order.TableID); err != nil {
		return Order{}, err
	}
	return tx.GetOrderForUpdate(ctx, orderID)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	})
}

// printOrderTickets emits one kitchen ticket per store touched by the given
// lines. Printing is a downstream courtesy: failures are logged, never
// surfaced.
func (s *Service) printOrderTickets(ctx context.Context, order Order, lines []Line) {
	if s.printer == nil || len(lines) == 0 {
		return
	}
	byStore := map[int64]*printing.OrderTicket{}
	storeIDs := []int64{}
	for _, line := range lines {
		ticket, ok := byStore[line.StoreID]
		if !ok {
			ticket = &printing.OrderTicket{
				OrderID:       order.ID,
				TableNumber:   order.TableNumber,
				AttendantName: order.AttendantName,
				StoreID:       line.StoreID,
				StoreName:     line.StoreName,
			}
			byStore[line.StoreID] = ticket
			storeIDs = append(storeIDs, line.StoreID)
		}
		ticket.Lines = append(ticket.Lines, printing.TicketLine{ItemName: line.ItemName, Quantity: line.Quantity})
	}
	for _, storeID := range storeIDs {
		if err := s.printer.PrintOrderTicket(ctx, *byStore[storeID]); err != nil {
			s.logger.Warn("print order ticket", slog.Int64("order_id", order.ID), slog.Int64("store_id", storeID), slog.Any("error", err))
		}
	}
}

func mergeLineInputs(lines []LineInput) []LineInput {
	merged := make([]LineInput, 0, len(lines))
	index := map[int64]int{}
	for _, line := range lines {
		if at, ok := index[line.ItemID]; ok {
			merged[at].Quantity += line.Quantity
			continue
		}
		index[line.ItemID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func findLine(lines []Line, itemID int64) *Line {
	for i := range lines {
		if lines[i].ItemID == itemID {
			return &lines[i]
		}
	}
	return nil
}

// findBreakableLine returns the first line for the item whose quantity is
// strictly greater than qty. Equality is rejected by the caller: breaking an
// entire line would be a no-op.
func findBreakableLine(lines []Line, itemID int64, qty int) *Line {
	if qty <= 0 {
		return nil
	}
	for i := range lines {
		if lines[i].ItemID == itemID && lines[i].Quantity > qty {
			return &lines[i]
		}
	}
	return nil
}

func pruneEmptyLines(lines []Line) []Line {
	kept := lines[:0]
	for _, line := range lines {
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	return kept
}

func sumLines(lines []Line) float64 {
	var total float64
	for _, line := range lines {
		total += line.LineTotal
	}
	return total
}

// IsNotFound reports whether err represents any missing order/line/table/item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, tables.ErrTableNotFound) ||
		errors.Is(err, stock.ErrItemNotFound)
}
