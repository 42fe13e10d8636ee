package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbalekage/MY-POS-sub000/internal/platform/db"
	"github.com/gbalekage/MY-POS-sub000/internal/stock"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// SQLRepository persists orders in PostgreSQL and satisfies Repository.
type SQLRepository struct {
	pool   *pgxpool.Pool
	stock  *stock.Repository
	tables *tables.Repository
}

func NewSQLRepository(pool *pgxpool.Pool, stockRepo *stock.Repository, tableRepo *tables.Repository) *SQLRepository {
	return &SQLRepository{pool: pool, stock: stockRepo, tables: tableRepo}
}

// WithTx runs fn inside one repeatable-read transaction. The Tx handed to fn
// reaches the stock and table rows through the same underlying pgx
// transaction, so a rollback undoes all three entities together.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &sqlTx{tx: tx, repo: r})
	})
}

const orderColumns = `o.id, o.table_id, t.table_number, o.status, o.total_amount, o.attendant_id, o.attendant_name, o.customer_id, o.created_at`

func (r *SQLRepository) Get(ctx context.Context, orderID int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE o.id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.Lines, err = r.loadLines(ctx, r.pool, order.ID)
	return order, err
}

func (r *SQLRepository) GetByTable(ctx context.Context, tableID int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE o.table_id = $1`, tableID)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.Lines, err = r.loadLines(ctx, r.pool, order.ID)
	return order, err
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *SQLRepository) loadLines(ctx context.Context, q rowQuerier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, item_id, item_name, store_id, store_name, quantity, unit_price, line_total
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: load lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemName, &l.StoreID, &l.StoreName, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("orders: scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TableID, &o.TableNumber, &o.Status, &o.TotalAmount, &o.AttendantID, &o.AttendantName, &o.CustomerID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("orders: scan order: %w", err)
	}
	return o, nil
}

// sqlTx adapts one pgx transaction to the Tx port, delegating stock and table
// operations to their owning repositories.
type sqlTx struct {
	tx   pgx.Tx
	repo *SQLRepository
}

func (t *sqlTx) GetItemForUpdate(ctx context.Context, itemID int64) (stock.Item, error) {
	return t.repo.stock.GetItemForUpdate(ctx, t.tx, itemID)
}

func (t *sqlTx) AdjustStock(ctx context.Context, itemID int64, delta int) error {
	return t.repo.stock.AdjustStock(ctx, t.tx, itemID, delta)
}

func (t *sqlTx) GetTableForUpdate(ctx context.Context, tableID int64) (tables.Table, error) {
	return t.repo.tables.GetForUpdate(ctx, t.tx, tableID)
}

func (t *sqlTx) OccupyTable(ctx context.Context, tableID, orderID, serverID int64, total float64) error {
	return t.repo.tables.Occupy(ctx, t.tx, tableID, orderID, serverID, total)
}

func (t *sqlTx) FreeTable(ctx context.Context, tableID int64) error {
	return t.repo.tables.Free(ctx, t.tx, tableID)
}

func (t *sqlTx) SetTableTotal(ctx context.Context, tableID int64, total float64) error {
	return t.repo.tables.SetTotal(ctx, t.tx, tableID, total)
}

func (t *sqlTx) GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	return t.repo.GetForUpdateTx(ctx, t.tx, orderID)
}

// GetForUpdateTx locks one order row inside an existing transaction. The
// settlement service shares this with the order engine so both lock orders
// the same way.
func (r *SQLRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, orderID int64) (Order, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE o.id = $1
		FOR UPDATE OF o`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.Lines, err = r.loadLines(ctx, tx, order.ID)
	return order, err
}

func (t *sqlTx) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (table_id, status, total_amount, attendant_id, attendant_name, customer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		order.TableID, order.Status, order.TotalAmount, order.AttendantID, order.AttendantName, order.CustomerID, order.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert order: %w", err)
	}
	return id, nil
}

func (t *sqlTx) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, item_id, item_name, store_id, store_name, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		line.OrderID, line.ItemID, line.ItemName, line.StoreID, line.StoreName, line.Quantity, line.UnitPrice, line.LineTotal,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert line: %w", err)
	}
	return id, nil
}

func (t *sqlTx) UpdateLine(ctx context.Context, lineID int64, quantity int, lineTotal float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE order_lines SET quantity = $2, line_total = $3 WHERE id = $1`, lineID, quantity, lineTotal)
	if err != nil {
		return fmt.Errorf("orders: update line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (t *sqlTx) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_lines WHERE id = $1`, lineID); err != nil {
		return fmt.Errorf("orders: delete line: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteOrder(ctx context.Context, orderID int64) error {
	return t.repo.DeleteTx(ctx, t.tx, orderID)
}

// DeleteTx removes an order and its lines inside an existing transaction.
func (r *SQLRepository) DeleteTx(ctx context.Context, tx pgx.Tx, orderID int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("orders: delete order lines: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("orders: delete order: %w", err)
	}
	return nil
}

func (t *sqlTx) SetOrderTotal(ctx context.Context, orderID int64, total float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET total_amount = $2 WHERE id = $1`, orderID, total)
	if err != nil {
		return fmt.Errorf("orders: set total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *sqlTx) InsertCancellation(ctx context.Context, c Cancellation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_cancellations (order_id, item_id, item_name, quantity, unit_price, amount, actor_id, actor_name, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.OrderID, c.ItemID, c.ItemName, c.Quantity, c.UnitPrice, c.Amount, c.ActorID, c.ActorName, c.CancelledAt)
	if err != nil {
		return fmt.Errorf("orders: insert cancellation: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertDiscount(ctx context.Context, d Discount) (Discount, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_discounts (order_id, percentage, amount, actor_id, actor_name, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		d.OrderID, d.Percentage, d.Amount, d.ActorID, d.ActorName, d.AppliedAt,
	).Scan(&d.ID)
	if err != nil {
		return Discount{}, fmt.Errorf("orders: insert discount: %w", err)
	}
	return d, nil
}
