package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

type MaintenanceStore struct {
	db DBTX
}

func NewMaintenanceStore(db DBTX) *MaintenanceStore {
	return &MaintenanceStore{db: db}
}

const maintenanceColumns = `id, org_id, vehicle_id, mechanic_id, service_type, assignee_name, cost_estimate,
	arrival_mileage, notes, current_step, sync_status, last_sync_error, scheduled_date, started_at,
	completed_at, created_at, updated_at`

func scanMaintenance(row interface{ Scan(...any) error }) (*domain.MaintenanceRecord, error) {
	r := &domain.MaintenanceRecord{}
	var scheduled, completed sql.NullTime
	err := row.Scan(&r.ID, &r.OrgID, &r.VehicleID, &r.MechanicID, &r.ServiceType, &r.AssigneeName,
		&r.CostEstimate, &r.ArrivalMileage, &r.Notes, &r.CurrentStep, &r.SyncStatus, &r.LastSyncError,
		&scheduled, &r.StartedAt, &completed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ScheduledDate = nullTime(scheduled)
	r.CompletedAt = nullTime(completed)
	r.Status = domain.StatusForStep(r.CurrentStep)
	return r, nil
}

func (s *MaintenanceStore) Create(ctx context.Context, r *domain.MaintenanceRecord) error {
	ts := now()
	r.CreatedAt, r.UpdatedAt = ts, ts
	if r.StartedAt.IsZero() {
		r.StartedAt = ts
	}
	r.Status = domain.StatusForStep(r.CurrentStep)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_records
		(id, org_id, vehicle_id, mechanic_id, service_type, assignee_name, cost_estimate, arrival_mileage,
		 notes, current_step, sync_status, scheduled_date, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.OrgID, r.VehicleID, r.MechanicID, r.ServiceType, r.AssigneeName, r.CostEstimate,
		r.ArrivalMileage, r.Notes, r.CurrentStep, r.SyncStatus, r.ScheduledDate, r.StartedAt,
		r.CompletedAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create maintenance record: %w", err)
	}
	return nil
}

func (s *MaintenanceStore) GetByID(ctx context.Context, orgID, id string) (*domain.MaintenanceRecord, error) {
	r, err := scanMaintenance(s.db.QueryRowContext(ctx, `
		SELECT `+maintenanceColumns+` FROM maintenance_records WHERE org_id = ? AND id = ?
	`, orgID, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get maintenance record: %w", err)
	}
	return r, nil
}

// MaintenanceFilter narrows List. Zero values match everything.
type MaintenanceFilter struct {
	Steps      []domain.Step
	SyncStatus []domain.SyncStatus
	VehicleID  string
}

func (s *MaintenanceStore) List(ctx context.Context, orgID string, f MaintenanceFilter) ([]*domain.MaintenanceRecord, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenance_records WHERE org_id = ?`
	args := []any{orgID}

	if len(f.Steps) > 0 {
		query += ` AND current_step IN (` + placeholders(len(f.Steps)) + `)`
		for _, st := range f.Steps {
			args = append(args, st)
		}
	}
	if len(f.SyncStatus) > 0 {
		query += ` AND sync_status IN (` + placeholders(len(f.SyncStatus)) + `)`
		for _, st := range f.SyncStatus {
			args = append(args, st)
		}
	}
	if f.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, f.VehicleID)
	}
	query += ` ORDER BY started_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance records: %w", err)
	}
	defer closeRows(rows)

	records := []*domain.MaintenanceRecord{}
	for rows.Next() {
		r, err := scanMaintenance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan maintenance record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maintenance records: %w", err)
	}
	return records, nil
}

// SetStep moves a record to step. Any local change re-queues the record for
// push by resetting its sync status to pending.
func (s *MaintenanceStore) SetStep(ctx context.Context, orgID, id string, step domain.Step, completedAt *time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_records
		SET current_step = ?, completed_at = ?, sync_status = ?, updated_at = ?
		WHERE org_id = ? AND id = ?
	`, step, completedAt, domain.SyncPending, now(), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to update maintenance step: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: maintenance record %s", domain.ErrNotFound, id)
	}
	return nil
}

// MarkSync sets the sync status of ids. syncErr is stored for failed rows and
// cleared otherwise.
func (s *MaintenanceStore) MarkSync(ctx context.Context, orgID string, ids []string, status domain.SyncStatus, syncErr string) error {
	if len(ids) == 0 {
		return nil
	}
	if status != domain.SyncFailed {
		syncErr = ""
	}

	args := []any{status, syncErr, orgID}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_records SET sync_status = ?, last_sync_error = ?
		WHERE org_id = ? AND id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to mark sync status: %w", err)
	}
	return nil
}

// MarkSynced marks pushed records synced unless they were modified after the
// snapshot that was pushed; those stay pending for the next run. It returns
// the number of records marked.
func (s *MaintenanceStore) MarkSynced(ctx context.Context, orgID string, pushed []*domain.MaintenanceRecord) (int, error) {
	marked := 0
	for _, r := range pushed {
		result, err := s.db.ExecContext(ctx, `
			UPDATE maintenance_records SET sync_status = ?, last_sync_error = ''
			WHERE org_id = ? AND id = ? AND updated_at = ?
		`, domain.SyncSynced, orgID, r.ID, r.UpdatedAt)
		if err != nil {
			return marked, fmt.Errorf("failed to mark record synced: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return marked, fmt.Errorf("failed to get rows affected: %w", err)
		}
		marked += int(n)
	}
	return marked, nil
}

func (s *MaintenanceStore) AddPart(ctx context.Context, mp *domain.MaintenancePart) error {
	mp.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_parts (id, org_id, maintenance_id, part_id, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, mp.ID, mp.OrgID, mp.MaintenanceID, mp.PartID, mp.Quantity, mp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add maintenance part: %w", err)
	}
	return nil
}

func (s *MaintenanceStore) ListParts(ctx context.Context, orgID, maintenanceID string) ([]domain.MaintenancePart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, maintenance_id, part_id, quantity, created_at FROM maintenance_parts
		WHERE org_id = ? AND maintenance_id = ? ORDER BY created_at ASC, rowid ASC
	`, orgID, maintenanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance parts: %w", err)
	}
	defer closeRows(rows)

	parts := []domain.MaintenancePart{}
	for rows.Next() {
		var mp domain.MaintenancePart
		if err := rows.Scan(&mp.ID, &mp.OrgID, &mp.MaintenanceID, &mp.PartID, &mp.Quantity, &mp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance part: %w", err)
		}
		parts = append(parts, mp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maintenance parts: %w", err)
	}
	return parts, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
