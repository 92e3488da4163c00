package domain

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mv(t MovementType, qty int64) InventoryMovement {
	return InventoryMovement{MovementType: t, Quantity: qty}
}

func TestStockOf(t *testing.T) {
	tests := []struct {
		name      string
		movements []InventoryMovement
		expected  int64
	}{
		{name: "empty", movements: nil, expected: 0},
		{name: "in only", movements: []InventoryMovement{mv(MovementIn, 10)}, expected: 10},
		{name: "in then out", movements: []InventoryMovement{mv(MovementIn, 10), mv(MovementOut, 7)}, expected: 3},
		{
			name:      "negative adjustment",
			movements: []InventoryMovement{mv(MovementIn, 4), mv(MovementAdjustment, -6)},
			expected:  -2,
		},
		{
			name:      "mixed",
			movements: []InventoryMovement{mv(MovementIn, 5), mv(MovementAdjustment, 3), mv(MovementOut, 2), mv(MovementIn, 1)},
			expected:  7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StockOf(tt.movements))
		})
	}
}

func TestStockOf_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []MovementType{MovementIn, MovementOut, MovementAdjustment}

	for round := 0; round < 50; round++ {
		movements := make([]InventoryMovement, 1+rng.Intn(20))
		for i := range movements {
			movements[i] = mv(types[rng.Intn(len(types))], int64(rng.Intn(50)-10))
		}
		want := StockOf(movements)

		shuffled := append([]InventoryMovement(nil), movements...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, StockOf(shuffled))
	}
}

func TestIsLowStock(t *testing.T) {
	assert.False(t, IsLowStock(10, 5))
	assert.True(t, IsLowStock(5, 5), "threshold is inclusive")
	assert.True(t, IsLowStock(3, 5))
}

func TestParseMovementType(t *testing.T) {
	for _, in := range []string{"in", "IN", " Out ", "adjustment"} {
		_, err := ParseMovementType(in)
		assert.NoError(t, err, in)
	}

	_, err := ParseMovementType("transfer")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadRequest))
}

func TestValidateQuantity(t *testing.T) {
	assert.NoError(t, ValidateQuantity(MovementIn, 1))
	assert.NoError(t, ValidateQuantity(MovementAdjustment, -3))
	assert.ErrorIs(t, ValidateQuantity(MovementOut, 0), ErrBadRequest)
	assert.ErrorIs(t, ValidateQuantity(MovementIn, -1), ErrBadRequest)
	assert.ErrorIs(t, ValidateQuantity(MovementAdjustment, 0), ErrBadRequest)
}

func TestVehicleStatusForStep(t *testing.T) {
	status, ok := VehicleStatusForStep(StepInShop)
	assert.True(t, ok)
	assert.Equal(t, VehicleMaintenance, status)

	status, ok = VehicleStatusForStep(StepDone)
	assert.True(t, ok)
	assert.Equal(t, VehicleAvailable, status)

	_, ok = VehicleStatusForStep(StepQCCheck)
	assert.False(t, ok)
	_, ok = VehicleStatusForStep(StepScheduled)
	assert.False(t, ok)
}

func TestCanAdvance(t *testing.T) {
	assert.True(t, CanAdvance(StepInShop, StepQCCheck))
	assert.True(t, CanAdvance(StepScheduled, StepInShop))
	assert.False(t, CanAdvance(StepQCCheck, StepInShop))
	assert.False(t, CanAdvance(StepDone, StepDone))
	assert.False(t, CanAdvance(StepInShop, StepOverdue))
}

func TestDisplayStep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	r := &MaintenanceRecord{CurrentStep: StepInShop, ScheduledDate: &past}
	assert.Equal(t, StepOverdue, r.DisplayStep(now))

	r.ScheduledDate = &future
	assert.Equal(t, StepInShop, r.DisplayStep(now))

	r.ScheduledDate = &past
	r.CurrentStep = StepDone
	assert.Equal(t, StepDone, r.DisplayStep(now))
}
