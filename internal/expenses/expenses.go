// Package expenses records till cash paid out during the business day so the
// closure can reconcile the drawer.
package expenses

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbalekage/MY-POS-sub000/internal/shared"
)

// Expense is one cash outflow from the till.
type Expense struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	ActorID     int64     `json:"actorId"`
	ActorName   string    `json:"actorName"`
	SpentAt     time.Time `json:"spentAt"`
}

// RecordInput is the payload for recording an expense.
type RecordInput struct {
	Description string  `json:"description" validate:"required,min=2"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
}

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (description, amount, actor_id, actor_name, spent_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.Description, e.Amount, e.ActorID, e.ActorName, e.SpentAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("expenses: insert: %w", err)
	}
	return id, nil
}

func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, amount, actor_id, actor_name, spent_at
		FROM expenses
		WHERE spent_at::date = $1::date
		ORDER BY spent_at`, date)
	if err != nil {
		return nil, fmt.Errorf("expenses: list: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.ActorID, &e.ActorName, &e.SpentAt); err != nil {
			return nil, fmt.Errorf("expenses: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Store abstracts persistence for the service.
type Store interface {
	Insert(ctx context.Context, e Expense) (int64, error)
	ListByDate(ctx context.Context, date time.Time) ([]Expense, error)
}

// Service records and lists till expenses.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Record(ctx context.Context, in RecordInput, actor shared.Actor) (Expense, error) {
	expense := Expense{
		Description: in.Description,
		Amount:      in.Amount,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		SpentAt:     s.now().UTC(),
	}
	id, err := s.store.Insert(ctx, expense)
	if err != nil {
		return Expense{}, err
	}
	expense.ID = id
	return expense, nil
}

func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]Expense, error) {
	return s.store.ListByDate(ctx, date)
}
