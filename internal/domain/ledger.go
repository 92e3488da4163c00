package domain

import (
	"fmt"
	"strings"
	"time"
)

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// ParseMovementType accepts a movement type in any letter case.
func ParseMovementType(s string) (MovementType, error) {
	switch t := MovementType(strings.ToUpper(strings.TrimSpace(s))); t {
	case MovementIn, MovementOut, MovementAdjustment:
		return t, nil
	default:
		return "", fmt.Errorf("%w: invalid movement type %q", ErrBadRequest, s)
	}
}

// InventoryMovement is an immutable ledger entry. Corrections are recorded as
// new ADJUSTMENT entries, never as edits.
type InventoryMovement struct {
	ID           string       `json:"id"`
	OrgID        string       `json:"orgId"`
	PartID       string       `json:"partId"`
	Quantity     int64        `json:"quantity"`
	MovementType MovementType `json:"movementType"`
	Reason       string       `json:"reason"`
	VehicleID    *string      `json:"vehicleId,omitempty"`
	MechanicID   *string      `json:"mechanicId,omitempty"`
	ReferenceID  *string      `json:"referenceId,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// ValidateQuantity checks the quantity against the movement type: IN and OUT
// must be positive, ADJUSTMENT may be signed but not zero.
func ValidateQuantity(t MovementType, qty int64) error {
	switch {
	case t == MovementAdjustment && qty == 0:
		return fmt.Errorf("%w: adjustment quantity must be non-zero", ErrBadRequest)
	case t != MovementAdjustment && qty <= 0:
		return fmt.Errorf("%w: %s quantity must be positive", ErrBadRequest, t)
	}
	return nil
}

// SignedQuantity is the effect of a single movement on stock.
func SignedQuantity(t MovementType, qty int64) int64 {
	if t == MovementOut {
		return -qty
	}
	return qty
}

// StockOf folds a movement log into current stock. It is order independent and
// matches the aggregate the store computes in SQL.
func StockOf(movements []InventoryMovement) int64 {
	var stock int64
	for _, m := range movements {
		stock += SignedQuantity(m.MovementType, m.Quantity)
	}
	return stock
}

// IsLowStock is inclusive of the threshold.
func IsLowStock(stock, minStock int64) bool {
	return stock <= minStock
}
