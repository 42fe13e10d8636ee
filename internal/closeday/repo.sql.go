package closeday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbalekage/MY-POS-sub000/internal/payments"
	"github.com/gbalekage/MY-POS-sub000/internal/platform/db"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// SQLRepository aggregates trading records and persists closure reports.
type SQLRepository struct {
	pool   *pgxpool.Pool
	tables *tables.Repository
}

func NewSQLRepository(pool *pgxpool.Pool, tableRepo *tables.Repository) *SQLRepository {
	return &SQLRepository{pool: pool, tables: tableRepo}
}

func (r *SQLRepository) SalesByMethod(ctx context.Context, date time.Time) (map[payments.Method]float64, error) {
	return r.sumByMethod(ctx, `
		SELECT payment_method, COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE paid_at::date = $1::date
		GROUP BY payment_method`, date)
}

func (r *SQLRepository) sumByMethod(ctx context.Context, query string, date time.Time) (map[payments.Method]float64, error) {
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("closeday: sum by method: %w", err)
	}
	defer rows.Close()

	out := map[payments.Method]float64{}
	for rows.Next() {
		var (
			method payments.Method
			amount float64
		)
		if err := rows.Scan(&method, &amount); err != nil {
			return nil, fmt.Errorf("closeday: scan method sum: %w", err)
		}
		out[method] = amount
	}
	return out, rows.Err()
}

func (r *SQLRepository) SignedTotal(ctx context.Context, date time.Time) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM signed_bills WHERE signed_at::date = $1::date`, date)
}

func (r *SQLRepository) DiscountTotal(ctx context.Context, date time.Time) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM order_discounts WHERE applied_at::date = $1::date`, date)
}

func (r *SQLRepository) CancelledTotal(ctx context.Context, date time.Time) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM order_cancellations WHERE cancelled_at::date = $1::date`, date)
}

func (r *SQLRepository) ExpensesTotal(ctx context.Context, date time.Time) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE spent_at::date = $1::date`, date)
}

func (r *SQLRepository) sum(ctx context.Context, query string, date time.Time) (float64, error) {
	var total float64
	if err := r.pool.QueryRow(ctx, query, date).Scan(&total); err != nil {
		return 0, fmt.Errorf("closeday: sum: %w", err)
	}
	return total, nil
}

// SalesByStore groups the day's paid and signed line items by store, one
// quantity/total pair per item name plus the store's combined total. Sales
// and signed bills contribute alike: both left the stores' stock.
func (r *SQLRepository) SalesByStore(ctx context.Context, date time.Time) ([]StoreSales, error) {
	rows, err := r.pool.Query(ctx, `
		WITH day_lines AS (
			SELECT lines FROM sales WHERE paid_at::date = $1::date
			UNION ALL
			SELECT lines FROM signed_bills WHERE signed_at::date = $1::date
		)
		SELECT (line->>'storeId')::bigint, line->>'storeName', line->>'itemName',
			COALESCE(SUM((line->>'quantity')::int), 0), COALESCE(SUM((line->>'lineTotal')::numeric), 0)
		FROM day_lines, jsonb_array_elements(lines) AS line
		GROUP BY 1, 2, 3
		ORDER BY 1, 3`, date)
	if err != nil {
		return nil, fmt.Errorf("closeday: sales by store: %w", err)
	}
	defer rows.Close()

	var out []StoreSales
	index := map[int64]int{}
	for rows.Next() {
		var (
			storeID   int64
			storeName string
			itemName  string
			quantity  int
			total     float64
		)
		if err := rows.Scan(&storeID, &storeName, &itemName, &quantity, &total); err != nil {
			return nil, fmt.Errorf("closeday: scan store: %w", err)
		}
		i, ok := index[storeID]
		if !ok {
			i = len(out)
			index[storeID] = i
			out = append(out, StoreSales{StoreID: storeID, StoreName: storeName, Items: map[string]ItemSales{}})
		}
		item := out[i].Items[itemName]
		item.Quantity += quantity
		item.Total += total
		out[i].Items[itemName] = item
		out[i].StoreTotal += total
	}
	return out, rows.Err()
}

// SalesByAttendant sums each attendant's paid sales, signed bills and granted
// discounts. Attribution is by name; a discount counts for the user who
// granted it, not the order's original attendant.
func (r *SQLRepository) SalesByAttendant(ctx context.Context, date time.Time) ([]AttendantSales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT attendant_name, COALESCE(SUM(amount), 0)
		FROM (
			SELECT attendant_name, total_amount AS amount FROM sales WHERE paid_at::date = $1::date
			UNION ALL
			SELECT attendant_name, total_amount FROM signed_bills WHERE signed_at::date = $1::date
			UNION ALL
			SELECT actor_name, amount FROM order_discounts WHERE applied_at::date = $1::date
		) activity
		GROUP BY attendant_name
		ORDER BY 2 DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("closeday: sales by attendant: %w", err)
	}
	defer rows.Close()

	var out []AttendantSales
	for rows.Next() {
		var a AttendantSales
		if err := rows.Scan(&a.AttendantName, &a.Amount); err != nil {
			return nil, fmt.Errorf("closeday: scan attendant: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertGuarded checks occupancy and inserts the report in one transaction.
// The unique index on report_date makes the closure idempotent under
// concurrent requests.
func (r *SQLRepository) InsertGuarded(ctx context.Context, report Report) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		occupied, err := r.tables.CountOccupied(ctx, tx)
		if err != nil {
			return err
		}
		if occupied > 0 {
			return fmt.Errorf("%w: %d occupied", ErrTablesStillOpen, occupied)
		}

		methods, err := json.Marshal(report.Methods)
		if err != nil {
			return fmt.Errorf("closeday: encode methods: %w", err)
		}
		stores, err := json.Marshal(report.Stores)
		if err != nil {
			return fmt.Errorf("closeday: encode stores: %w", err)
		}
		attendants, err := json.Marshal(report.Attendants)
		if err != nil {
			return fmt.Errorf("closeday: encode attendants: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO closure_reports (
				report_date, total_sales, paid_sales, signed_sales, discount_total, cancelled_total,
				total_expenses, methods, declared_total, computed_total, total_difference, status,
				stores, attendants, notes, closed_by_id, closed_by_name, closed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id`,
			report.ReportDate, report.TotalSales, report.PaidSales, report.SignedSales, report.DiscountTotal,
			report.CancelledTotal, report.TotalExpenses, methods, report.DeclaredTotal, report.ComputedTotal,
			report.TotalDifference, report.Status, stores, attendants, report.Notes, report.ClosedByID, report.ClosedByName, report.ClosedAt,
		).Scan(&id)
		if err != nil {
			return insertReportError(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// insertReportError maps the unique violation on report_date onto
// ErrAlreadyClosed so a lost race reads the same as a repeated close.
func insertReportError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyClosed
	}
	return fmt.Errorf("closeday: insert report: %w", err)
}

const reportColumns = `id, report_date, total_sales, paid_sales, signed_sales, discount_total, cancelled_total,
	total_expenses, methods, declared_total, computed_total, total_difference, status,
	stores, attendants, notes, closed_by_id, closed_by_name, closed_at`

func (r *SQLRepository) GetByDate(ctx context.Context, date string) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM closure_reports WHERE report_date = $1`, date)
	return scanReport(row)
}

func (r *SQLRepository) List(ctx context.Context) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM closure_reports ORDER BY report_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("closeday: list reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (Report, error) {
	var (
		report     Report
		methods    []byte
		stores     []byte
		attendants []byte
	)
	err := row.Scan(
		&report.ID, &report.ReportDate, &report.TotalSales, &report.PaidSales, &report.SignedSales,
		&report.DiscountTotal, &report.CancelledTotal, &report.TotalExpenses, &methods,
		&report.DeclaredTotal, &report.ComputedTotal, &report.TotalDifference, &report.Status,
		&stores, &attendants, &report.Notes, &report.ClosedByID, &report.ClosedByName, &report.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("closeday: scan report: %w", err)
	}
	if err := json.Unmarshal(methods, &report.Methods); err != nil {
		return Report{}, fmt.Errorf("closeday: decode methods: %w", err)
	}
	if err := json.Unmarshal(stores, &report.Stores); err != nil {
		return Report{}, fmt.Errorf("closeday: decode stores: %w", err)
	}
	if err := json.Unmarshal(attendants, &report.Attendants); err != nil {
		return Report{}, fmt.Errorf("closeday: decode attendants: %w", err)
	}
	return report, nil
}
