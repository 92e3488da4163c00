package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/store"
)

const shiftListLimit = 50

type shiftRepository interface {
	Create(ctx context.Context, r *domain.ShiftReport) error
	GetByID(ctx context.Context, orgID, id string) (*domain.ShiftReport, error)
	Latest(ctx context.Context, orgID string) (*domain.ShiftReport, error)
	List(ctx context.Context, orgID string, limit int) ([]*domain.ShiftReport, error)
	ActivitySince(ctx context.Context, orgID string, since time.Time) (started, completed, movements int, err error)
}

var _ shiftRepository = (*store.ShiftStore)(nil)

type ShiftService struct {
	shifts shiftRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewShiftService(shifts shiftRepository, logger *slog.Logger) *ShiftService {
	return &ShiftService{shifts: shifts, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

type ShiftInput struct {
	MechanicID string `json:"mechanicId"`
	Summary    string `json:"summary"`
}

// Create files a report with the caller's summary. Reports are locked at
// creation; the flag is informational.
func (s *ShiftService) Create(ctx context.Context, orgID string, in ShiftInput) (*domain.ShiftReport, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: summary is required", domain.ErrBadRequest)
	}
	return s.create(ctx, orgID, in.MechanicID, summary)
}

// End closes the current shift. The report summarises activity since the
// previous report (or since midnight UTC when there is none), followed by the
// caller's notes.
func (s *ShiftService) End(ctx context.Context, orgID string, in ShiftInput) (*domain.ShiftReport, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	now := s.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	prev, err := s.shifts.Latest(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		since = prev.CreatedAt
	}

	started, completed, movements, err := s.shifts.ActivitySince(ctx, orgID, since)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("Jobs started: %d. Jobs completed: %d. Stock movements: %d.", started, completed, movements)
	if notes := strings.TrimSpace(in.Summary); notes != "" {
		summary += "\n" + notes
	}
	return s.create(ctx, orgID, in.MechanicID, summary)
}

func (s *ShiftService) create(ctx context.Context, orgID, mechanicID, summary string) (*domain.ShiftReport, error) {
	r := &domain.ShiftReport{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		MechanicID: mechanicID,
		Summary:    summary,
		Locked:     true,
	}
	if err := s.shifts.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("shift report filed", "shift_id", r.ID, "mechanic_id", mechanicID)
	return r, nil
}

// Latest returns the newest report or ErrNotFound.
func (s *ShiftService) Latest(ctx context.Context, orgID string) (*domain.ShiftReport, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	r, err := s.shifts.Latest(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no shift reports", domain.ErrNotFound)
	}
	return r, nil
}

func (s *ShiftService) Get(ctx context.Context, orgID, id string) (*domain.ShiftReport, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	r, err := s.shifts.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: shift report %s", domain.ErrNotFound, id)
	}
	return r, nil
}

func (s *ShiftService) List(ctx context.Context, orgID string) ([]*domain.ShiftReport, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.shifts.List(ctx, orgID, shiftListLimit)
}
