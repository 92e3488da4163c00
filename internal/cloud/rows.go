package cloud

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vbonduro/shopsync/internal/domain"
)

type vehicleRow struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id"`
	PlateNumber string          `json:"plate_number"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Mileage     int64           `json:"mileage"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

// toDomain forces the row into orgID regardless of what the server sent.
func (r vehicleRow) toDomain(orgID string) domain.Vehicle {
	return domain.Vehicle{
		ID:        r.ID,
		OrgID:     orgID,
		Plate:     r.PlateNumber,
		Name:      r.Name,
		Status:    domain.ParseVehicleStatus(r.Status),
		Mileage:   r.Mileage,
		DailyRate: r.DailyRate,
	}
}

type staffRow struct {
	ID         string `json:"id"`
	OrgID      string `json:"org_id"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	JobTitle   string `json:"job_title"`
	Role       string `json:"role"`
	IsActive   *bool  `json:"is_active"`
}

func (r staffRow) toDomain(orgID string) domain.Mechanic {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return domain.Mechanic{
		ID:         r.ID,
		OrgID:      orgID,
		Name:       r.FullName,
		Department: r.Department,
		JobTitle:   r.JobTitle,
		Role:       domain.StaffRole(r.Role),
		Active:     active,
	}
}

type maintenanceRow struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	VehicleID      string          `json:"vehicle_id"`
	MechanicID     *string         `json:"mechanic_id"`
	ServiceType    string          `json:"service_type"`
	AssigneeName   string          `json:"assignee_name"`
	CostEstimate   decimal.Decimal `json:"cost_estimate"`
	ArrivalMileage int64           `json:"arrival_mileage"`
	Notes          string          `json:"notes"`
	CurrentStep    domain.Step     `json:"current_step"`
	Status         string          `json:"status"`
	ScheduledDate  *time.Time      `json:"scheduled_date"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	SourceDeviceID string          `json:"source_device_id"`
}

func maintenanceRowFrom(r *domain.MaintenanceRecord, deviceID string) maintenanceRow {
	var mechanicID *string
	if r.MechanicID != "" {
		id := r.MechanicID
		mechanicID = &id
	}
	return maintenanceRow{
		ID:             r.ID,
		OrgID:          r.OrgID,
		VehicleID:      r.VehicleID,
		MechanicID:     mechanicID,
		ServiceType:    r.ServiceType,
		AssigneeName:   r.AssigneeName,
		CostEstimate:   r.CostEstimate,
		ArrivalMileage: r.ArrivalMileage,
		Notes:          r.Notes,
		CurrentStep:    r.CurrentStep,
		Status:         string(domain.StatusForStep(r.CurrentStep)),
		ScheduledDate:  r.ScheduledDate,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		SourceDeviceID: deviceID,
	}
}
