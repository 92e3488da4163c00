package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/shopsync/internal/domain"
)

type PartStore struct {
	db DBTX
}

func NewPartStore(db DBTX) *PartStore {
	return &PartStore{db: db}
}

func (s *PartStore) Create(ctx context.Context, p *domain.Part) error {
	p.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parts (id, org_id, name, category, unit, min_stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrgID, p.Name, p.Category, p.Unit, p.MinStock, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create part: %w", err)
	}
	return nil
}

func (s *PartStore) GetByID(ctx context.Context, orgID, id string) (*domain.Part, error) {
	p := &domain.Part{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, category, unit, min_stock, created_at FROM parts
		WHERE org_id = ? AND id = ?
	`, orgID, id).Scan(&p.ID, &p.OrgID, &p.Name, &p.Category, &p.Unit, &p.MinStock, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get part: %w", err)
	}
	return p, nil
}

func (s *PartStore) List(ctx context.Context, orgID string) ([]*domain.Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, name, category, unit, min_stock, created_at FROM parts
		WHERE org_id = ? ORDER BY name ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	defer closeRows(rows)

	var parts []*domain.Part
	for rows.Next() {
		p := &domain.Part{}
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Category, &p.Unit, &p.MinStock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parts: %w", err)
	}
	return parts, nil
}

// Delete removes a part; its movements go with it via ON DELETE CASCADE.
func (s *PartStore) Delete(ctx context.Context, orgID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM parts WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete part: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: part %s", domain.ErrNotFound, id)
	}
	return nil
}

// stockExpr is the signed sum over the movement log.
const stockExpr = `COALESCE(SUM(CASE m.movement_type WHEN 'OUT' THEN -m.quantity ELSE m.quantity END), 0)`

// Stock returns every part of the tenant with its derived stock, ordered by
// name. When lowOnly is set, only parts at or below min_stock are returned,
// ordered by ascending stock.
func (s *PartStore) Stock(ctx context.Context, orgID string, lowOnly bool) ([]domain.PartStock, error) {
	query := `
		SELECT p.id, p.name, p.category, p.unit, p.min_stock, ` + stockExpr + ` AS stock
		FROM parts p
		LEFT JOIN inventory_movements m ON m.part_id = p.id AND m.org_id = p.org_id
		WHERE p.org_id = ?
		GROUP BY p.id`
	if lowOnly {
		query += ` HAVING stock <= p.min_stock ORDER BY stock ASC, p.name ASC, p.id ASC`
	} else {
		query += ` ORDER BY p.name ASC, p.id ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer closeRows(rows)

	stock := []domain.PartStock{}
	for rows.Next() {
		var ps domain.PartStock
		if err := rows.Scan(&ps.PartID, &ps.Name, &ps.Category, &ps.Unit, &ps.MinStock, &ps.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		ps.LowStock = domain.IsLowStock(ps.Quantity, ps.MinStock)
		stock = append(stock, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock: %w", err)
	}
	return stock, nil
}

type MovementStore struct {
	db DBTX
}

func NewMovementStore(db DBTX) *MovementStore {
	return &MovementStore{db: db}
}

// Append writes a new ledger entry. Entries are never updated afterwards.
func (s *MovementStore) Append(ctx context.Context, m *domain.InventoryMovement) error {
	m.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_movements
		(id, org_id, part_id, quantity, movement_type, reason, vehicle_id, mechanic_id, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OrgID, m.PartID, m.Quantity, m.MovementType, m.Reason,
		m.VehicleID, m.MechanicID, m.ReferenceID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (s *MovementStore) CurrentStock(ctx context.Context, orgID, partID string) (int64, error) {
	var stock int64
	err := s.db.QueryRowContext(ctx, `
		SELECT `+stockExpr+` FROM inventory_movements m WHERE m.org_id = ? AND m.part_id = ?
	`, orgID, partID).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("failed to compute stock: %w", err)
	}
	return stock, nil
}

// History returns the newest movements for a part first.
func (s *MovementStore) History(ctx context.Context, orgID, partID string, limit int) ([]domain.InventoryMovement, error) {
	return s.list(ctx, `
		SELECT id, org_id, part_id, quantity, movement_type, reason, vehicle_id, mechanic_id, reference_id, created_at
		FROM inventory_movements WHERE org_id = ? AND part_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, orgID, partID, limit)
}

// ListByReference returns movements caused by the given job or receipt.
func (s *MovementStore) ListByReference(ctx context.Context, orgID, referenceID string) ([]domain.InventoryMovement, error) {
	return s.list(ctx, `
		SELECT id, org_id, part_id, quantity, movement_type, reason, vehicle_id, mechanic_id, reference_id, created_at
		FROM inventory_movements WHERE org_id = ? AND reference_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, orgID, referenceID)
}

func (s *MovementStore) list(ctx context.Context, query string, args ...any) ([]domain.InventoryMovement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer closeRows(rows)

	movements := []domain.InventoryMovement{}
	for rows.Next() {
		var m domain.InventoryMovement
		var vehicleID, mechanicID, refID sql.NullString
		if err := rows.Scan(&m.ID, &m.OrgID, &m.PartID, &m.Quantity, &m.MovementType, &m.Reason,
			&vehicleID, &mechanicID, &refID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.VehicleID = nullString(vehicleID)
		m.MechanicID = nullString(mechanicID)
		m.ReferenceID = nullString(refID)
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}
	return movements, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
