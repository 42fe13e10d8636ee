package tables

import "errors"

// Status enumerates table occupancy states.
type Status string

const (
	// StatusAvailable marks a table with no open order.
	StatusAvailable Status = "available"
	// StatusOccupied marks a table bound to exactly one open order.
	StatusOccupied Status = "occupied"
)

// Table models a physical table. CurrentOrderID, AssignedServerID and Status
// always agree: all three are set on Occupy and cleared on Free, never
// individually. TotalAmount mirrors the open order's total while occupied.
type Table struct {
	ID               int64
	Number           int
	Status           Status
	CurrentOrderID   *int64
	AssignedServerID *int64
	TotalAmount      float64
}

// Occupied reports whether the table currently carries an open order.
func (t Table) Occupied() bool {
	return t.Status == StatusOccupied
}

var (
	// ErrTableNotFound indicates the referenced table does not exist.
	ErrTableNotFound = errors.New("tables: table not found")
	// ErrTableOccupied indicates the table already carries an open order.
	ErrTableOccupied = errors.New("tables: table already occupied")
	// ErrTableNotOccupied indicates an operation expected an open order on the table.
	ErrTableNotOccupied = errors.New("tables: table has no open order")
)
