package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/store"
)

// SyncTrigger requests a best-effort synchronization. Trigger must not block.
type SyncTrigger interface {
	Trigger()
}

type noopTrigger struct{}

func (noopTrigger) Trigger() {}

func requireOrg(orgID string) error {
	if orgID == "" {
		return domain.ErrDeviceNotConfigured
	}
	return nil
}

type MaintenanceService struct {
	store   *store.Store
	trigger SyncTrigger
	logger  *slog.Logger
	now     func() time.Time
}

func NewMaintenanceService(s *store.Store, trigger SyncTrigger, logger *slog.Logger) *MaintenanceService {
	if trigger == nil {
		trigger = noopTrigger{}
	}
	return &MaintenanceService{
		store:   s,
		trigger: trigger,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// MaintenanceView is a record as shown to callers, with its computed display
// step and, for single fetches, the parts consumed so far.
type MaintenanceView struct {
	*domain.MaintenanceRecord
	DisplayStep domain.Step              `json:"displayStep"`
	Parts       []domain.MaintenancePart `json:"parts,omitempty"`
}

func (s *MaintenanceService) view(r *domain.MaintenanceRecord) MaintenanceView {
	return MaintenanceView{MaintenanceRecord: r, DisplayStep: r.DisplayStep(s.now())}
}

type StartInput struct {
	VehicleID      string          `json:"vehicleId"`
	MechanicID     string          `json:"mechanicId"`
	ServiceType    string          `json:"serviceType"`
	AssigneeName   string          `json:"assigneeName"`
	CostEstimate   decimal.Decimal `json:"costEstimate"`
	ArrivalMileage int64           `json:"arrivalMileage"`
	Notes          string          `json:"notes"`
	ScheduledDate  *time.Time      `json:"scheduledDate,omitempty"`
}

// Start opens a job on a vehicle and moves the vehicle into maintenance. The
// record and the vehicle flip are written in one transaction.
func (s *MaintenanceService) Start(ctx context.Context, orgID string, in StartInput) (*domain.MaintenanceRecord, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	in.VehicleID = strings.TrimSpace(in.VehicleID)
	in.ServiceType = strings.TrimSpace(in.ServiceType)
	if in.VehicleID == "" || in.ServiceType == "" {
		return nil, fmt.Errorf("%w: vehicleId and serviceType are required", domain.ErrBadRequest)
	}
	if in.CostEstimate.IsNegative() || in.ArrivalMileage < 0 {
		return nil, fmt.Errorf("%w: costEstimate and arrivalMileage must not be negative", domain.ErrBadRequest)
	}

	var rec *domain.MaintenanceRecord
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		vehicle, err := tx.Vehicles.GetByID(ctx, orgID, in.VehicleID)
		if err != nil {
			return err
		}
		if vehicle == nil {
			return fmt.Errorf("%w: vehicle %s", domain.ErrNotFound, in.VehicleID)
		}
		if vehicle.Status == domain.VehicleMaintenance {
			return fmt.Errorf("%w: vehicle %s is already in maintenance", domain.ErrConflict, vehicle.Plate)
		}

		assignee := strings.TrimSpace(in.AssigneeName)
		if in.MechanicID != "" {
			m, err := tx.Mechanics.GetByID(ctx, orgID, in.MechanicID)
			if err != nil {
				return err
			}
			if m != nil && assignee == "" {
				assignee = m.Name
			}
		}

		rec = &domain.MaintenanceRecord{
			ID:             uuid.NewString(),
			OrgID:          orgID,
			VehicleID:      vehicle.ID,
			MechanicID:     in.MechanicID,
			ServiceType:    in.ServiceType,
			AssigneeName:   assignee,
			CostEstimate:   in.CostEstimate,
			ArrivalMileage: in.ArrivalMileage,
			Notes:          strings.TrimSpace(in.Notes),
			CurrentStep:    domain.StepInShop,
			SyncStatus:     domain.SyncPending,
			ScheduledDate:  in.ScheduledDate,
		}
		if err := tx.Maintenance.Create(ctx, rec); err != nil {
			return err
		}
		return tx.Vehicles.UpdateStatus(ctx, orgID, vehicle.ID, domain.VehicleMaintenance)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance started", "maintenance_id", rec.ID, "vehicle_id", rec.VehicleID, "service_type", rec.ServiceType)
	s.trigger.Trigger()
	return rec, nil
}

// Complete finishes a job and returns its vehicle to the available pool.
func (s *MaintenanceService) Complete(ctx context.Context, orgID, id string) (*domain.MaintenanceRecord, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	var rec *domain.MaintenanceRecord
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		var err error
		rec, err = s.get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if rec.CurrentStep == domain.StepDone {
			return fmt.Errorf("%w: maintenance %s", domain.ErrAlreadyCompleted, id)
		}

		completedAt := s.now()
		if err := tx.Maintenance.SetStep(ctx, orgID, id, domain.StepDone, &completedAt); err != nil {
			return err
		}
		if err := tx.Vehicles.UpdateStatus(ctx, orgID, rec.VehicleID, domain.VehicleAvailable); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			s.logger.Warn("vehicle of completed job is not known locally", "vehicle_id", rec.VehicleID)
		}

		rec.CurrentStep = domain.StepDone
		rec.Status = domain.StatusCompleted
		rec.SyncStatus = domain.SyncPending
		rec.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance completed", "maintenance_id", id, "vehicle_id", rec.VehicleID)
	s.trigger.Trigger()
	return rec, nil
}

// Advance moves a job forward to an intermediate step. Done is reached only
// through Complete.
func (s *MaintenanceService) Advance(ctx context.Context, orgID, id string, step domain.Step) (*domain.MaintenanceRecord, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	if !domain.ValidStep(step) {
		return nil, fmt.Errorf("%w: unknown step %q", domain.ErrBadRequest, step)
	}

	var rec *domain.MaintenanceRecord
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		var err error
		rec, err = s.get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		switch {
		case rec.CurrentStep == domain.StepDone:
			return fmt.Errorf("%w: maintenance %s", domain.ErrAlreadyCompleted, id)
		case step == domain.StepDone:
			return fmt.Errorf("%w: use complete to finish a job", domain.ErrConflict)
		case !domain.CanAdvance(rec.CurrentStep, step):
			return fmt.Errorf("%w: cannot move from %s to %s", domain.ErrConflict, rec.CurrentStep, step)
		}

		if err := tx.Maintenance.SetStep(ctx, orgID, id, step, nil); err != nil {
			return err
		}
		rec.CurrentStep = step
		rec.SyncStatus = domain.SyncPending
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance advanced", "maintenance_id", id, "step", step)
	s.trigger.Trigger()
	return rec, nil
}

// AddPart records a part consumed by a job together with the matching OUT
// movement in the ledger. Both rows are written or neither is.
func (s *MaintenanceService) AddPart(ctx context.Context, orgID, maintenanceID, partID string, qty int64) (*domain.MaintenancePart, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrBadRequest)
	}

	var mp *domain.MaintenancePart
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		rec, err := s.get(ctx, tx, orgID, maintenanceID)
		if err != nil {
			return err
		}
		part, err := tx.Parts.GetByID(ctx, orgID, partID)
		if err != nil {
			return err
		}
		if part == nil {
			return fmt.Errorf("%w: part %s", domain.ErrNotFound, partID)
		}

		mp = &domain.MaintenancePart{
			ID:            uuid.NewString(),
			OrgID:         orgID,
			MaintenanceID: rec.ID,
			PartID:        part.ID,
			Quantity:      qty,
		}
		if err := tx.Maintenance.AddPart(ctx, mp); err != nil {
			return err
		}

		movement := &domain.InventoryMovement{
			ID:           uuid.NewString(),
			OrgID:        orgID,
			PartID:       part.ID,
			Quantity:     qty,
			MovementType: domain.MovementOut,
			Reason:       "maintenance: " + rec.ServiceType,
			VehicleID:    optional(rec.VehicleID),
			MechanicID:   optional(rec.MechanicID),
			ReferenceID:  optional(rec.ID),
		}
		return tx.Movements.Append(ctx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("part added to maintenance", "maintenance_id", maintenanceID, "part_id", partID, "quantity", qty)
	return mp, nil
}

// List returns jobs filtered by status. The filter accepts a record status
// (in_progress, completed), a step name, or empty for everything.
func (s *MaintenanceService) List(ctx context.Context, orgID, status string) ([]MaintenanceView, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	var filter store.MaintenanceFilter
	switch st := strings.TrimSpace(status); {
	case st == "":
	case strings.EqualFold(st, string(domain.StatusInProgress)):
		filter.Steps = []domain.Step{domain.StepScheduled, domain.StepInShop, domain.StepQCCheck}
	case strings.EqualFold(st, string(domain.StatusCompleted)):
		filter.Steps = []domain.Step{domain.StepDone}
	case domain.ValidStep(domain.Step(st)):
		filter.Steps = []domain.Step{domain.Step(st)}
	default:
		return nil, fmt.Errorf("%w: unknown status filter %q", domain.ErrBadRequest, status)
	}

	records, err := s.store.Maintenance.List(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	views := make([]MaintenanceView, 0, len(records))
	for _, r := range records {
		views = append(views, s.view(r))
	}
	return views, nil
}

// Get returns one job with its consumed parts.
func (s *MaintenanceService) Get(ctx context.Context, orgID, id string) (*MaintenanceView, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	rec, err := s.get(ctx, s.store, orgID, id)
	if err != nil {
		return nil, err
	}
	parts, err := s.store.Maintenance.ListParts(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	v := s.view(rec)
	v.Parts = parts
	return &v, nil
}

func (s *MaintenanceService) get(ctx context.Context, st *store.Store, orgID, id string) (*domain.MaintenanceRecord, error) {
	rec, err := st.Maintenance.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: maintenance %s", domain.ErrNotFound, id)
	}
	return rec, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
