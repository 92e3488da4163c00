package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

type RequestStore struct {
	db DBTX
}

func NewRequestStore(db DBTX) *RequestStore {
	return &RequestStore{db: db}
}

// Create inserts the request and its items in the given order. Callers that
// need atomicity wrap it in Store.Atomic.
func (s *RequestStore) Create(ctx context.Context, r *domain.PartRequest) error {
	r.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO part_requests (id, org_id, requester_id, requester_name, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.OrgID, r.RequesterID, r.RequesterName, r.Notes, r.Status, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create part request: %w", err)
	}

	for i, item := range r.Items {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO part_request_items (request_id, position, part_name, quantity) VALUES (?, ?, ?, ?)
		`, r.ID, i, item.PartName, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to create part request item: %w", err)
		}
	}
	return nil
}

func (s *RequestStore) GetByID(ctx context.Context, orgID, id string) (*domain.PartRequest, error) {
	r := &domain.PartRequest{}
	var decided sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, requester_id, requester_name, notes, status, decision_note, decided_at, created_at
		FROM part_requests WHERE org_id = ? AND id = ?
	`, orgID, id).Scan(&r.ID, &r.OrgID, &r.RequesterID, &r.RequesterName, &r.Notes, &r.Status,
		&r.DecisionNote, &decided, &r.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get part request: %w", err)
	}
	r.DecidedAt = nullTime(decided)

	items, err := s.items(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Items = items
	return r, nil
}

// List returns requests newest first, optionally filtered by status.
func (s *RequestStore) List(ctx context.Context, orgID string, status domain.RequestStatus) ([]*domain.PartRequest, error) {
	query := `
		SELECT id, org_id, requester_id, requester_name, notes, status, decision_note, decided_at, created_at
		FROM part_requests WHERE org_id = ?`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list part requests: %w", err)
	}

	requests := []*domain.PartRequest{}
	for rows.Next() {
		r := &domain.PartRequest{}
		var decided sql.NullTime
		if err := rows.Scan(&r.ID, &r.OrgID, &r.RequesterID, &r.RequesterName, &r.Notes, &r.Status,
			&r.DecisionNote, &decided, &r.CreatedAt); err != nil {
			closeRows(rows)
			return nil, fmt.Errorf("failed to scan part request: %w", err)
		}
		r.DecidedAt = nullTime(decided)
		requests = append(requests, r)
	}
	err = rows.Err()
	// Items are loaded after the cursor is released; the pool has one connection.
	closeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("error iterating part requests: %w", err)
	}

	for _, r := range requests {
		if r.Items, err = s.items(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

func (s *RequestStore) items(ctx context.Context, requestID string) ([]domain.PartRequestItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT part_name, quantity FROM part_request_items WHERE request_id = ? ORDER BY position ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list part request items: %w", err)
	}
	defer closeRows(rows)

	items := []domain.PartRequestItem{}
	for rows.Next() {
		var item domain.PartRequestItem
		if err := rows.Scan(&item.PartName, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan part request item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating part request items: %w", err)
	}
	return items, nil
}

// Decide moves a pending request to to and records the decision note and
// time. It reports false when the request was no longer pending.
func (s *RequestStore) Decide(ctx context.Context, orgID, id string, to domain.RequestStatus, note string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE part_requests SET status = ?, decision_note = ?, decided_at = ?
		WHERE org_id = ? AND id = ? AND status = ?
	`, to, note, now(), orgID, id, domain.RequestPending)
	if err != nil {
		return false, fmt.Errorf("failed to update part request: %w", err)
	}
	return affected(result)
}

// Transition changes only the status, leaving the decision untouched. It
// reports false when the request was not in from.
func (s *RequestStore) Transition(ctx context.Context, orgID, id string, from, to domain.RequestStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE part_requests SET status = ? WHERE org_id = ? AND id = ? AND status = ?
	`, to, orgID, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update part request: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

type ReceiptStore struct {
	db DBTX
}

func NewReceiptStore(db DBTX) *ReceiptStore {
	return &ReceiptStore{db: db}
}

const receiptColumns = `id, org_id, supplier, amount, invoice_number, image_path, paid, paid_at, created_at`

func scanReceipt(row interface{ Scan(...any) error }) (*domain.Receipt, error) {
	r := &domain.Receipt{}
	var paidAt sql.NullTime
	if err := row.Scan(&r.ID, &r.OrgID, &r.Supplier, &r.Amount, &r.InvoiceNumber, &r.ImagePath,
		&r.Paid, &paidAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.PaidAt = nullTime(paidAt)
	return r, nil
}

func (s *ReceiptStore) Create(ctx context.Context, r *domain.Receipt) error {
	r.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, org_id, supplier, amount, invoice_number, image_path, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.OrgID, r.Supplier, r.Amount, r.InvoiceNumber, r.ImagePath, r.Paid, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create receipt: %w", err)
	}
	return nil
}

func (s *ReceiptStore) GetByID(ctx context.Context, orgID, id string) (*domain.Receipt, error) {
	r, err := scanReceipt(s.db.QueryRowContext(ctx, `
		SELECT `+receiptColumns+` FROM receipts WHERE org_id = ? AND id = ?
	`, orgID, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return r, nil
}

func (s *ReceiptStore) List(ctx context.Context, orgID string) ([]*domain.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+receiptColumns+` FROM receipts WHERE org_id = ? ORDER BY created_at DESC, id ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer closeRows(rows)

	receipts := []*domain.Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}
	return receipts, nil
}

func (s *ReceiptStore) SetPaid(ctx context.Context, orgID, id string, paid bool) error {
	var paidAt *time.Time
	if paid {
		ts := now()
		paidAt = &ts
	}
	return s.update(ctx, `UPDATE receipts SET paid = ?, paid_at = ? WHERE org_id = ? AND id = ?`,
		id, paid, paidAt, orgID, id)
}

func (s *ReceiptStore) SetImagePath(ctx context.Context, orgID, id, path string) error {
	return s.update(ctx, `UPDATE receipts SET image_path = ? WHERE org_id = ? AND id = ?`,
		id, path, orgID, id)
}

func (s *ReceiptStore) update(ctx context.Context, query, id string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: receipt %s", domain.ErrNotFound, id)
	}
	return nil
}

type ShiftStore struct {
	db DBTX
}

func NewShiftStore(db DBTX) *ShiftStore {
	return &ShiftStore{db: db}
}

const shiftColumns = `id, org_id, mechanic_id, summary, locked, created_at`

func (s *ShiftStore) Create(ctx context.Context, r *domain.ShiftReport) error {
	r.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_reports (id, org_id, mechanic_id, summary, locked, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.OrgID, r.MechanicID, r.Summary, r.Locked, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create shift report: %w", err)
	}
	return nil
}

func (s *ShiftStore) GetByID(ctx context.Context, orgID, id string) (*domain.ShiftReport, error) {
	return s.one(ctx, `SELECT `+shiftColumns+` FROM shift_reports WHERE org_id = ? AND id = ?`, orgID, id)
}

// Latest returns the most recent report, or nil if none exist.
func (s *ShiftStore) Latest(ctx context.Context, orgID string) (*domain.ShiftReport, error) {
	return s.one(ctx, `
		SELECT `+shiftColumns+` FROM shift_reports WHERE org_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, orgID)
}

func (s *ShiftStore) one(ctx context.Context, query string, args ...any) (*domain.ShiftReport, error) {
	r := &domain.ShiftReport{}
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&r.ID, &r.OrgID, &r.MechanicID, &r.Summary, &r.Locked, &r.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift report: %w", err)
	}
	return r, nil
}

func (s *ShiftStore) List(ctx context.Context, orgID string, limit int) ([]*domain.ShiftReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM shift_reports WHERE org_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list shift reports: %w", err)
	}
	defer closeRows(rows)

	reports := []*domain.ShiftReport{}
	for rows.Next() {
		r := &domain.ShiftReport{}
		if err := rows.Scan(&r.ID, &r.OrgID, &r.MechanicID, &r.Summary, &r.Locked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shift report: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift reports: %w", err)
	}
	return reports, nil
}

// ActivitySince counts work recorded by the tenant since the given time; used
// to draft shift summaries.
func (s *ShiftStore) ActivitySince(ctx context.Context, orgID string, since time.Time) (started, completed, movements int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM maintenance_records WHERE org_id = ? AND started_at >= ?),
			(SELECT COUNT(*) FROM maintenance_records WHERE org_id = ? AND completed_at >= ?),
			(SELECT COUNT(*) FROM inventory_movements WHERE org_id = ? AND created_at >= ?)
	`, orgID, since.UTC(), orgID, since.UTC(), orgID, since.UTC()).Scan(&started, &completed, &movements)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count shift activity: %w", err)
	}
	return started, completed, movements, nil
}
