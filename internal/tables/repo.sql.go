package tables

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists table occupancy in PostgreSQL. Occupy and Free are the
// only writers of the status/order/server triple.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tableColumns = `id, table_number, status, current_order_id, assigned_server_id, total_amount`

// Get fetches one table.
func (r *Repository) Get(ctx context.Context, id int64) (Table, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1`, id)
	return scanTable(row)
}

// GetForUpdate locks the table row for the duration of the transaction.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (Table, error) {
	row := tx.QueryRow(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = $1 FOR UPDATE`, id)
	return scanTable(row)
}

// List returns every table ordered by number.
func (r *Repository) List(ctx context.Context) ([]Table, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tableColumns+` FROM tables ORDER BY table_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Table{}
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, table)
	}
	return result, rows.Err()
}

// Occupy binds the table to an open order under one server and mirrors the
// order total onto the table.
func (r *Repository) Occupy(ctx context.Context, tx pgx.Tx, tableID, orderID, serverID int64, total float64) error {
	tag, err := tx.Exec(ctx, `UPDATE tables
SET status = $2, current_order_id = $3, assigned_server_id = $4, total_amount = $5
WHERE id = $1`, tableID, StatusOccupied, orderID, serverID, total)
	if err != nil {
		return fmt.Errorf("tables: occupy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTableNotFound
	}
	return nil
}

// Free releases the table: status back to available, order and server
// references cleared, running total reset.
func (r *Repository) Free(ctx context.Context, tx pgx.Tx, tableID int64) error {
	tag, err := tx.Exec(ctx, `UPDATE tables
SET status = $2, current_order_id = NULL, assigned_server_id = NULL, total_amount = 0
WHERE id = $1`, tableID, StatusAvailable)
	if err != nil {
		return fmt.Errorf("tables: free: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTableNotFound
	}
	return nil
}

// SetTotal mirrors the open order's total onto the table.
func (r *Repository) SetTotal(ctx context.Context, tx pgx.Tx, tableID int64, total float64) error {
	tag, err := tx.Exec(ctx, `UPDATE tables SET total_amount = $2 WHERE id = $1`, tableID, total)
	if err != nil {
		return fmt.Errorf("tables: set total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTableNotFound
	}
	return nil
}

// CountOccupied returns the number of occupied tables inside the caller's
// transaction. The day closure runs this check in the same transaction as the
// report insert so a racing order placement cannot slip between them.
func (r *Repository) CountOccupied(ctx context.Context, tx pgx.Tx) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM tables WHERE status = $1`, StatusOccupied).Scan(&count)
	return count, err
}

func scanTable(row pgx.Row) (Table, error) {
	var table Table
	err := row.Scan(&table.ID, &table.Number, &table.Status, &table.CurrentOrderID, &table.AssignedServerID, &table.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Table{}, ErrTableNotFound
		}
		return Table{}, err
	}
	return table, nil
}
