package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/shopsync/internal/domain"
)

type VehicleStore struct {
	db DBTX
}

func NewVehicleStore(db DBTX) *VehicleStore {
	return &VehicleStore{db: db}
}

const vehicleColumns = `id, org_id, plate, name, status, mileage, daily_rate, updated_at`

func scanVehicle(row interface{ Scan(...any) error }, v *domain.Vehicle) error {
	return row.Scan(&v.ID, &v.OrgID, &v.Plate, &v.Name, &v.Status, &v.Mileage, &v.DailyRate, &v.UpdatedAt)
}

func (s *VehicleStore) GetByID(ctx context.Context, orgID, id string) (*domain.Vehicle, error) {
	v := &domain.Vehicle{}
	err := scanVehicle(s.db.QueryRowContext(ctx, `
		SELECT `+vehicleColumns+` FROM vehicles WHERE org_id = ? AND id = ?
	`, orgID, id), v)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return v, nil
}

func (s *VehicleStore) List(ctx context.Context, orgID string) ([]*domain.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+vehicleColumns+` FROM vehicles WHERE org_id = ? ORDER BY plate ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer closeRows(rows)

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v := &domain.Vehicle{}
		if err := scanVehicle(rows, v); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicles: %w", err)
	}
	return vehicles, nil
}

// Upsert writes vehicles by id; incoming rows overwrite local ones
// unconditionally. Every row is forced into orgID. A plate the cloud has moved
// to another vehicle is first released by giving its current holder the
// placeholder "unassigned:<id>", which later rows in the same pull overwrite.
// Run it inside Atomic so a failed pull leaves no placeholders behind.
func (s *VehicleStore) Upsert(ctx context.Context, orgID string, vehicles []domain.Vehicle) (int, error) {
	ts := now()
	for _, v := range vehicles {
		_, err := s.db.ExecContext(ctx, `
			UPDATE vehicles SET plate = 'unassigned:' || id, updated_at = ?
			WHERE org_id = ? AND plate = ? AND id <> ?
		`, ts, orgID, v.Plate, v.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to release plate for vehicle %s: %w", v.ID, err)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO vehicles (id, org_id, plate, name, status, mileage, daily_rate, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				plate = excluded.plate,
				name = excluded.name,
				status = excluded.status,
				mileage = excluded.mileage,
				daily_rate = excluded.daily_rate,
				updated_at = excluded.updated_at
			WHERE vehicles.org_id = excluded.org_id
		`, v.ID, orgID, v.Plate, v.Name, domain.ParseVehicleStatus(string(v.Status)), v.Mileage, v.DailyRate, ts)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert vehicle %s: %w", v.ID, err)
		}
	}
	return len(vehicles), nil
}

func (s *VehicleStore) UpdateStatus(ctx context.Context, orgID, id string, status domain.VehicleStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE vehicles SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?
	`, status, now(), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to update vehicle status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: vehicle %s", domain.ErrNotFound, id)
	}
	return nil
}

type MechanicStore struct {
	db DBTX
}

func NewMechanicStore(db DBTX) *MechanicStore {
	return &MechanicStore{db: db}
}

const mechanicColumns = `id, org_id, name, department, job_title, role, active, updated_at`

func scanMechanic(row interface{ Scan(...any) error }, m *domain.Mechanic) error {
	return row.Scan(&m.ID, &m.OrgID, &m.Name, &m.Department, &m.JobTitle, &m.Role, &m.Active, &m.UpdatedAt)
}

func (s *MechanicStore) GetByID(ctx context.Context, orgID, id string) (*domain.Mechanic, error) {
	m := &domain.Mechanic{}
	err := scanMechanic(s.db.QueryRowContext(ctx, `
		SELECT `+mechanicColumns+` FROM mechanics WHERE org_id = ? AND id = ?
	`, orgID, id), m)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mechanic: %w", err)
	}
	return m, nil
}

func (s *MechanicStore) List(ctx context.Context, orgID string) ([]*domain.Mechanic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mechanicColumns+` FROM mechanics WHERE org_id = ? ORDER BY name ASC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mechanics: %w", err)
	}
	defer closeRows(rows)

	var mechanics []*domain.Mechanic
	for rows.Next() {
		m := &domain.Mechanic{}
		if err := scanMechanic(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan mechanic: %w", err)
		}
		mechanics = append(mechanics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mechanics: %w", err)
	}
	return mechanics, nil
}

func (s *MechanicStore) Upsert(ctx context.Context, orgID string, mechanics []domain.Mechanic) (int, error) {
	ts := now()
	for _, m := range mechanics {
		role := m.Role
		if role != domain.RoleSupervisor {
			role = domain.RoleMechanic
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO mechanics (id, org_id, name, department, job_title, role, active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				department = excluded.department,
				job_title = excluded.job_title,
				role = excluded.role,
				active = excluded.active,
				updated_at = excluded.updated_at
			WHERE mechanics.org_id = excluded.org_id
		`, m.ID, orgID, m.Name, m.Department, m.JobTitle, role, m.Active, ts)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert mechanic %s: %w", m.ID, err)
		}
	}
	return len(mechanics), nil
}
