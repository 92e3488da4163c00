package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeviceConfig binds this device to exactly one tenant. Its absence means the
// device is unprovisioned and every tenant-scoped component stays inert.
type DeviceConfig struct {
	OrgID            string     `json:"orgId"`
	OrgName          string     `json:"orgName"`
	AccessToken      string     `json:"-"`
	DeviceID         string     `json:"deviceId"`
	CloudURL         string     `json:"cloudUrl"`
	CloudKey         string     `json:"-"`
	LastSyncAt       *time.Time `json:"lastSyncAt,omitempty"`
	SetupCompletedAt time.Time  `json:"setupCompletedAt"`
}

type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleRented      VehicleStatus = "rented"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// ParseVehicleStatus normalises a status string; unknown values map to available.
func ParseVehicleStatus(s string) VehicleStatus {
	switch VehicleStatus(s) {
	case VehicleRented, VehicleMaintenance:
		return VehicleStatus(s)
	default:
		return VehicleAvailable
	}
}

type Vehicle struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"orgId"`
	Plate     string          `json:"plate"`
	Name      string          `json:"name"`
	Status    VehicleStatus   `json:"status"`
	Mileage   int64           `json:"mileage"`
	DailyRate decimal.Decimal `json:"dailyRate"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type StaffRole string

const (
	RoleMechanic   StaffRole = "mechanic"
	RoleSupervisor StaffRole = "supervisor"
)

// Mechanic is a workshop staff member pulled from the cloud.
type Mechanic struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"orgId"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	JobTitle   string    `json:"jobTitle"`
	Role       StaffRole `json:"role"`
	Active     bool      `json:"active"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Part struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Unit      string    `json:"unit"`
	MinStock  int64     `json:"minStock"`
	CreatedAt time.Time `json:"createdAt"`
}

// PartStock is a part together with its stock derived from the movement log.
type PartStock struct {
	PartID   string `json:"partId"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Quantity int64  `json:"quantity"`
	MinStock int64  `json:"minStock"`
	LowStock bool   `json:"lowStock"`
}

type MaintenancePart struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"orgId"`
	MaintenanceID string    `json:"maintenanceId"`
	PartID        string    `json:"partId"`
	Quantity      int64     `json:"quantity"`
	CreatedAt     time.Time `json:"createdAt"`
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
)

// PartRequest asks for restock. Items are captured by name, not by part id,
// because the requester may name parts that are not catalogued yet.
type PartRequest struct {
	ID            string            `json:"id"`
	OrgID         string            `json:"orgId"`
	RequesterID   string            `json:"requesterId"`
	RequesterName string            `json:"requesterName"`
	Notes         string            `json:"notes"`
	Status        RequestStatus     `json:"status"`
	DecisionNote  string            `json:"decisionNote,omitempty"`
	DecidedAt     *time.Time        `json:"decidedAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	Items         []PartRequestItem `json:"items"`
}

type PartRequestItem struct {
	PartName string `json:"partName"`
	Quantity int64  `json:"quantity"`
}

type Receipt struct {
	ID            string          `json:"id"`
	OrgID         string          `json:"orgId"`
	Supplier      string          `json:"supplier"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceNumber string          `json:"invoiceNumber"`
	ImagePath     string          `json:"imagePath"`
	Paid          bool            `json:"paid"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ShiftReport is an end-of-shift summary. Locked is set at creation and is
// informational only; nothing else consults it.
type ShiftReport struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"orgId"`
	MechanicID string    `json:"mechanicId"`
	Summary    string    `json:"summary"`
	Locked     bool      `json:"locked"`
	CreatedAt  time.Time `json:"createdAt"`
}
