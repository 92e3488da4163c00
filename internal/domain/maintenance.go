package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Step is a position in the maintenance workflow:
// Scheduled -> In Shop -> QC Check -> Done.
type Step string

const (
	StepScheduled Step = "Scheduled"
	StepInShop    Step = "In Shop"
	StepQCCheck   Step = "QC Check"
	StepDone      Step = "Done"
)

// StepOverdue is a display status only. No writer stores it.
const StepOverdue Step = "Overdue"

var stepOrder = map[Step]int{
	StepScheduled: 0,
	StepInShop:    1,
	StepQCCheck:   2,
	StepDone:      3,
}

// ValidStep reports whether s is a storable workflow step.
func ValidStep(s Step) bool {
	_, ok := stepOrder[s]
	return ok
}

// CanAdvance reports whether moving from one step to another goes forward.
func CanAdvance(from, to Step) bool {
	f, ok1 := stepOrder[from]
	t, ok2 := stepOrder[to]
	return ok1 && ok2 && t > f
}

type MaintenanceStatus string

const (
	StatusInProgress MaintenanceStatus = "in_progress"
	StatusCompleted  MaintenanceStatus = "completed"
)

// StatusForStep derives the coarse record status from the step.
func StatusForStep(s Step) MaintenanceStatus {
	if s == StepDone {
		return StatusCompleted
	}
	return StatusInProgress
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// stepVehicleStatus is the single source for the vehicle-status side effect of
// a pushed maintenance record. Steps absent from the table leave the vehicle alone.
var stepVehicleStatus = map[Step]VehicleStatus{
	StepInShop: VehicleMaintenance,
	StepDone:   VehicleAvailable,
}

// VehicleStatusForStep returns the vehicle status implied by a step.
func VehicleStatusForStep(s Step) (VehicleStatus, bool) {
	v, ok := stepVehicleStatus[s]
	return v, ok
}

type MaintenanceRecord struct {
	ID             string            `json:"id"`
	OrgID          string            `json:"orgId"`
	VehicleID      string            `json:"vehicleId"`
	MechanicID     string            `json:"mechanicId"`
	ServiceType    string            `json:"serviceType"`
	AssigneeName   string            `json:"assigneeName"`
	CostEstimate   decimal.Decimal   `json:"costEstimate"`
	ArrivalMileage int64             `json:"arrivalMileage"`
	Notes          string            `json:"notes"`
	CurrentStep    Step              `json:"currentStep"`
	Status         MaintenanceStatus `json:"status"`
	SyncStatus     SyncStatus        `json:"syncStatus"`
	LastSyncError  string            `json:"lastSyncError,omitempty"`
	ScheduledDate  *time.Time        `json:"scheduledDate,omitempty"`
	StartedAt      time.Time         `json:"startedAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// DisplayStep is the step shown to users, reporting Overdue when the scheduled
// date has passed and the job is not done.
func (r *MaintenanceRecord) DisplayStep(now time.Time) Step {
	if r.CurrentStep != StepDone && r.ScheduledDate != nil && now.After(*r.ScheduledDate) {
		return StepOverdue
	}
	return r.CurrentStep
}
