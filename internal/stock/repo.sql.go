package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists item stock in PostgreSQL. Mutating methods take an open
// transaction: stock never moves outside the transaction of the order
// operation that caused the movement.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `i.id, i.name, i.unit_price, i.stock, i.is_active, i.store_id, s.name`

// GetItem fetches one item with its store name.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+`
FROM items i JOIN stores s ON s.id = i.store_id
WHERE i.id = $1`, id)
	return scanItem(row)
}

// ListItems returns the menu ordered by store then name. Inactive items stay
// in the listing so the till can grey them out instead of hiding them.
func (r *Repository) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+`
FROM items i JOIN stores s ON s.id = i.store_id
ORDER BY s.name ASC, i.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// GetItemForUpdate locks the item row for the duration of the transaction.
func (r *Repository) GetItemForUpdate(ctx context.Context, tx pgx.Tx, id int64) (Item, error) {
	row := tx.QueryRow(ctx, `SELECT `+itemColumns+`
FROM items i JOIN stores s ON s.id = i.store_id
WHERE i.id = $1 FOR UPDATE OF i`, id)
	return scanItem(row)
}

// AdjustStock moves the item's available quantity by delta (negative when
// items enter an order, positive when they are cancelled back) and keeps
// is_active aligned with the resulting count.
func (r *Repository) AdjustStock(ctx context.Context, tx pgx.Tx, itemID int64, delta int) error {
	var newStock int
	err := tx.QueryRow(ctx, `UPDATE items
SET stock = stock + $2, is_active = stock + $2 > 0
WHERE id = $1
RETURNING stock`, itemID, delta).Scan(&newStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("stock: adjust: %w", err)
	}
	if newStock < 0 {
		return ErrNegativeStock
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Name, &item.UnitPrice, &item.Stock, &item.IsActive, &item.StoreID, &item.StoreName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}
