package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbalekage/MY-POS-sub000/internal/orders"
	"github.com/gbalekage/MY-POS-sub000/internal/platform/db"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// SQLRepository persists sales and signed bills in PostgreSQL.
type SQLRepository struct {
	pool   *pgxpool.Pool
	orders *orders.SQLRepository
	tables *tables.Repository
}

func NewSQLRepository(pool *pgxpool.Pool, orderRepo *orders.SQLRepository, tableRepo *tables.Repository) *SQLRepository {
	return &SQLRepository{pool: pool, orders: orderRepo, tables: tableRepo}
}

func (r *SQLRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &sqlTx{tx: tx, repo: r})
	})
}

func (r *SQLRepository) GetOrder(ctx context.Context, orderID int64) (orders.Order, error) {
	return r.orders.Get(ctx, orderID)
}

const saleColumns = `id, receipt_ref, order_id, table_id, table_number, attendant_id, attendant_name, lines, total_amount, amount_paid, change, payment_method, paid_at`

func (r *SQLRepository) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, saleID)
	return scanSale(row)
}

// ListSalesByDate returns sales paid on the given calendar date.
func (r *SQLRepository) ListSalesByDate(ctx context.Context, date time.Time) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE paid_at::date = $1::date
		ORDER BY paid_at`, date)
	if err != nil {
		return nil, fmt.Errorf("settlement: list sales: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

const billColumns = `id, order_id, customer_id, customer_name, table_id, table_number, attendant_id, attendant_name, lines, total_amount, status, signed_at`

func (r *SQLRepository) ListSignedBills(ctx context.Context, filter BillFilter) ([]SignedBill, error) {
	query := `SELECT ` + billColumns + ` FROM signed_bills WHERE TRUE`
	args := []any{}
	if filter.OnlyOutstanding {
		query += ` AND status = 'outstanding'`
	}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(` AND customer_id = $%d`, len(args))
	}
	query += ` ORDER BY signed_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("settlement: list signed bills: %w", err)
	}
	defer rows.Close()

	var out []SignedBill
	for rows.Next() {
		bill, err := scanSignedBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bill)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s     Sale
		lines []byte
	)
	err := row.Scan(&s.ID, &s.ReceiptRef, &s.OrderID, &s.TableID, &s.TableNumber, &s.AttendantID, &s.AttendantName, &lines, &s.TotalAmount, &s.AmountPaid, &s.Change, &s.PaymentMethod, &s.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, fmt.Errorf("settlement: scan sale: %w", err)
	}
	if err := json.Unmarshal(lines, &s.Lines); err != nil {
		return Sale{}, fmt.Errorf("settlement: decode sale lines: %w", err)
	}
	return s, nil
}

func scanSignedBill(row pgx.Row) (SignedBill, error) {
	var (
		b     SignedBill
		lines []byte
	)
	err := row.Scan(&b.ID, &b.OrderID, &b.CustomerID, &b.CustomerName, &b.TableID, &b.TableNumber, &b.AttendantID, &b.AttendantName, &lines, &b.TotalAmount, &b.Status, &b.SignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SignedBill{}, ErrSignedBillNotFound
	}
	if err != nil {
		return SignedBill{}, fmt.Errorf("settlement: scan signed bill: %w", err)
	}
	if err := json.Unmarshal(lines, &b.Lines); err != nil {
		return SignedBill{}, fmt.Errorf("settlement: decode bill lines: %w", err)
	}
	return b, nil
}

type sqlTx struct {
	tx   pgx.Tx
	repo *SQLRepository
}

func (t *sqlTx) GetTableForUpdate(ctx context.Context, tableID int64) (tables.Table, error) {
	return t.repo.tables.GetForUpdate(ctx, t.tx, tableID)
}

func (t *sqlTx) FreeTable(ctx context.Context, tableID int64) error {
	return t.repo.tables.Free(ctx, t.tx, tableID)
}

func (t *sqlTx) GetOrderForUpdate(ctx context.Context, orderID int64) (orders.Order, error) {
	return t.repo.orders.GetForUpdateTx(ctx, t.tx, orderID)
}

func (t *sqlTx) DeleteOrder(ctx context.Context, orderID int64) error {
	return t.repo.orders.DeleteTx(ctx, t.tx, orderID)
}

func (t *sqlTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	lines, err := json.Marshal(sale.Lines)
	if err != nil {
		return 0, fmt.Errorf("settlement: encode sale lines: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO sales (receipt_ref, order_id, table_id, table_number, attendant_id, attendant_name, lines, total_amount, amount_paid, change, payment_method, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		sale.ReceiptRef, sale.OrderID, sale.TableID, sale.TableNumber, sale.AttendantID, sale.AttendantName, lines, sale.TotalAmount, sale.AmountPaid, sale.Change, sale.PaymentMethod, sale.PaidAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("settlement: insert sale: %w", err)
	}
	return id, nil
}

func (t *sqlTx) InsertSignedBill(ctx context.Context, bill SignedBill) (int64, error) {
	lines, err := json.Marshal(bill.Lines)
	if err != nil {
		return 0, fmt.Errorf("settlement: encode bill lines: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO signed_bills (order_id, customer_id, customer_name, table_id, table_number, attendant_id, attendant_name, lines, total_amount, status, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		bill.OrderID, bill.CustomerID, bill.CustomerName, bill.TableID, bill.TableNumber, bill.AttendantID, bill.AttendantName, lines, bill.TotalAmount, bill.Status, bill.SignedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("settlement: insert signed bill: %w", err)
	}
	return id, nil
}

func (t *sqlTx) GetSignedBillForUpdate(ctx context.Context, billID int64) (SignedBill, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM signed_bills WHERE id = $1 FOR UPDATE`, billID)
	return scanSignedBill(row)
}

func (t *sqlTx) MarkSignedBillPaid(ctx context.Context, billID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE signed_bills SET status = 'paid' WHERE id = $1`, billID)
	if err != nil {
		return fmt.Errorf("settlement: mark bill paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSignedBillNotFound
	}
	return nil
}

func (t *sqlTx) InsertBillPayment(ctx context.Context, payment BillPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO signed_bill_payments (signed_bill_id, amount_paid, change, payment_method, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		payment.SignedBillID, payment.AmountPaid, payment.Change, payment.PaymentMethod, payment.PaidAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("settlement: insert bill payment: %w", err)
	}
	return id, nil
}
