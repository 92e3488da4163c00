package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so that every store can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the per-table stores over one connection. Every tenant-scoped
// method takes the org id and filters by it.
type Store struct {
	db *sql.DB

	Device      *DeviceStore
	Vehicles    *VehicleStore
	Mechanics   *MechanicStore
	Parts       *PartStore
	Movements   *MovementStore
	Maintenance *MaintenanceStore
	Requests    *RequestStore
	Receipts    *ReceiptStore
	Shifts      *ShiftStore
}

func New(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(conn DBTX) *Store {
	return &Store{
		Device:      NewDeviceStore(conn),
		Vehicles:    NewVehicleStore(conn),
		Mechanics:   NewMechanicStore(conn),
		Parts:       NewPartStore(conn),
		Movements:   NewMovementStore(conn),
		Maintenance: NewMaintenanceStore(conn),
		Requests:    NewRequestStore(conn),
		Receipts:    NewReceiptStore(conn),
		Shifts:      NewShiftStore(conn),
	}
}

// Atomic runs fn against stores bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise. fn must only use the
// store it is given; the pool has a single connection.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		// Already inside a transaction.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(bind(tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			slog.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
