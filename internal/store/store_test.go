package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/shopsync/internal/db"
	"github.com/vbonduro/shopsync/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return New(d)
}

func createPart(t *testing.T, s *Store, orgID, id, name string, minStock int64) {
	t.Helper()
	require.NoError(t, s.Parts.Create(context.Background(), &domain.Part{
		ID: id, OrgID: orgID, Name: name, Unit: "pcs", MinStock: minStock,
	}))
}

func appendMovement(t *testing.T, s *Store, orgID, id, partID string, typ domain.MovementType, qty int64) {
	t.Helper()
	require.NoError(t, s.Movements.Append(context.Background(), &domain.InventoryMovement{
		ID: id, OrgID: orgID, PartID: partID, MovementType: typ, Quantity: qty,
	}))
}

func TestDeviceStore_SaveGetClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cfg, err := s.Device.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, s.Device.Save(ctx, &domain.DeviceConfig{
		OrgID: "org-1", OrgName: "Garage One", AccessToken: "tok", DeviceID: "dev",
		CloudURL: "http://cloud", CloudKey: "anon", SetupCompletedAt: time.Now().UTC(),
	}))

	cfg, err = s.Device.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "org-1", cfg.OrgID)
	assert.Nil(t, cfg.LastSyncAt)

	require.NoError(t, s.Device.TouchLastSync(ctx, "org-1", time.Now()))
	cfg, err = s.Device.Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, cfg.LastSyncAt)

	err = s.Device.TouchLastSync(ctx, "other-org", time.Now())
	assert.ErrorIs(t, err, domain.ErrDeviceNotConfigured)

	require.NoError(t, s.Device.Clear(ctx))
	cfg, err = s.Device.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestDeviceStore_SaveReplacesWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Device.Save(ctx, &domain.DeviceConfig{
		OrgID: "org-1", AccessToken: "a", DeviceID: "d1", CloudURL: "u", CloudKey: "k", SetupCompletedAt: time.Now(),
	}))
	require.NoError(t, s.Device.TouchLastSync(ctx, "org-1", time.Now()))
	require.NoError(t, s.Device.Save(ctx, &domain.DeviceConfig{
		OrgID: "org-2", AccessToken: "b", DeviceID: "d2", CloudURL: "u2", CloudKey: "k2", SetupCompletedAt: time.Now(),
	}))

	cfg, err := s.Device.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "org-2", cfg.OrgID)
	assert.Equal(t, "b", cfg.AccessToken)
	assert.Nil(t, cfg.LastSyncAt, "rebinding must not inherit last sync")
}

func TestVehicleStore_UpsertIsTenantScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Vehicles.Upsert(ctx, "org-1", []domain.Vehicle{
		{ID: "v1", Plate: "B 1234 XY", Name: "Avanza", Status: domain.VehicleAvailable, DailyRate: decimal.RequireFromString("350000")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := s.Vehicles.GetByID(ctx, "org-1", "v1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, decimal.RequireFromString("350000").Equal(v.DailyRate))

	other, err := s.Vehicles.GetByID(ctx, "org-2", "v1")
	require.NoError(t, err)
	assert.Nil(t, other, "vehicle must not be visible to another tenant")

	// A second tenant pushing the same id must not take the row over.
	_, err = s.Vehicles.Upsert(ctx, "org-2", []domain.Vehicle{{ID: "v1", Plate: "X", Status: domain.VehicleRented}})
	require.NoError(t, err)
	v, err = s.Vehicles.GetByID(ctx, "org-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, "B 1234 XY", v.Plate)
}

func TestVehicleStore_UpsertOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Vehicles.Upsert(ctx, "org-1", []domain.Vehicle{{ID: "v1", Plate: "P1", Status: domain.VehicleAvailable}})
	require.NoError(t, err)
	require.NoError(t, s.Vehicles.UpdateStatus(ctx, "org-1", "v1", domain.VehicleMaintenance))

	_, err = s.Vehicles.Upsert(ctx, "org-1", []domain.Vehicle{{ID: "v1", Plate: "P1", Status: domain.VehicleRented, Mileage: 1200}})
	require.NoError(t, err)

	v, err := s.Vehicles.GetByID(ctx, "org-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleRented, v.Status)
	assert.Equal(t, int64(1200), v.Mileage)
}

func TestVehicleStore_UpsertMovesPlates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Vehicles.Upsert(ctx, "org-1", []domain.Vehicle{
		{ID: "v1", Plate: "P1", Status: domain.VehicleAvailable},
		{ID: "v2", Plate: "P2", Status: domain.VehicleAvailable},
	})
	require.NoError(t, err)

	_, err = s.Vehicles.Upsert(ctx, "org-1", []domain.Vehicle{
		{ID: "v1", Plate: "P2", Status: domain.VehicleAvailable},
		{ID: "v2", Plate: "P1", Status: domain.VehicleAvailable},
	})
	require.NoError(t, err, "swapped plates")

	_, err = s.Vehicles.Upsert(ctx, "org-1", []domain.Vehicle{{ID: "v3", Plate: "P1", Status: domain.VehicleAvailable}})
	require.NoError(t, err, "plate moved to a new vehicle")

	plates := map[string]string{}
	for _, id := range []string{"v1", "v2", "v3"} {
		v, err := s.Vehicles.GetByID(ctx, "org-1", id)
		require.NoError(t, err)
		plates[id] = v.Plate
	}
	assert.Equal(t, map[string]string{"v1": "P2", "v2": "unassigned:v2", "v3": "P1"}, plates)
}

func TestVehicleStore_UpdateStatus_NotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.Vehicles.UpdateStatus(context.Background(), "org-1", "missing", domain.VehicleAvailable)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMechanicStore_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Mechanics.Upsert(ctx, "org-1", []domain.Mechanic{
		{ID: "m2", Name: "Budi", Role: "unknown", Active: true},
		{ID: "m1", Name: "Agus", Role: domain.RoleSupervisor, Active: true},
	})
	require.NoError(t, err)

	list, err := s.Mechanics.List(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Agus", list[0].Name)
	assert.Equal(t, domain.RoleSupervisor, list[0].Role)
	assert.Equal(t, domain.RoleMechanic, list[1].Role)
}

func TestMovementStore_CurrentStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createPart(t, s, "org-1", "p1", "Oil Filter", 5)

	stock, err := s.Movements.CurrentStock(ctx, "org-1", "p1")
	require.NoError(t, err)
	assert.Zero(t, stock)

	appendMovement(t, s, "org-1", "m1", "p1", domain.MovementIn, 10)
	appendMovement(t, s, "org-1", "m2", "p1", domain.MovementOut, 7)
	appendMovement(t, s, "org-1", "m3", "p1", domain.MovementAdjustment, -1)

	stock, err = s.Movements.CurrentStock(ctx, "org-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)

	history, err := s.Movements.History(ctx, "org-1", "p1", 100)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, stock, domain.StockOf(history), "SQL aggregate and fold must agree")
	assert.Equal(t, "m3", history[0].ID, "history is newest first")
}

func TestPartStore_StockAndLowStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createPart(t, s, "org-1", "p1", "Brake Pad", 5)
	createPart(t, s, "org-1", "p2", "Air Filter", 2)
	createPart(t, s, "org-1", "p3", "Spark Plug", 1)
	createPart(t, s, "org-2", "p4", "Other Tenant Part", 100)

	appendMovement(t, s, "org-1", "m1", "p1", domain.MovementIn, 10)
	appendMovement(t, s, "org-1", "m2", "p1", domain.MovementOut, 7) // 3, low
	appendMovement(t, s, "org-1", "m3", "p2", domain.MovementIn, 2)  // 2, low (inclusive)
	appendMovement(t, s, "org-1", "m4", "p3", domain.MovementIn, 8)  // 8, fine

	all, err := s.Parts.Stock(ctx, "org-1", false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Air Filter", all[0].Name)

	low, err := s.Parts.Stock(ctx, "org-1", true)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "p2", low[0].PartID, "low stock ordered by ascending stock")
	assert.Equal(t, int64(2), low[0].Quantity)
	assert.Equal(t, "p1", low[1].PartID)
	assert.True(t, low[1].LowStock)
}

func TestPartStore_DeleteCascadesMovements(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createPart(t, s, "org-1", "p1", "Wiper", 0)
	appendMovement(t, s, "org-1", "m1", "p1", domain.MovementIn, 4)

	require.NoError(t, s.Parts.Delete(ctx, "org-1", "p1"))

	history, err := s.Movements.History(ctx, "org-1", "p1", 100)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, s.Parts.Delete(ctx, "org-1", "p1"), domain.ErrNotFound)
}

func TestMaintenanceStore_MarkSyncAndFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Maintenance.Create(ctx, &domain.MaintenanceRecord{
			ID: id, OrgID: "org-1", VehicleID: "v-" + id, ServiceType: "oil",
			CurrentStep: domain.StepInShop, SyncStatus: domain.SyncPending,
		}))
	}

	require.NoError(t, s.Maintenance.MarkSync(ctx, "org-1", []string{"r1"}, domain.SyncSynced, ""))
	require.NoError(t, s.Maintenance.MarkSync(ctx, "org-1", []string{"r2"}, domain.SyncFailed, "boom"))

	queued, err := s.Maintenance.List(ctx, "org-1", MaintenanceFilter{
		SyncStatus: []domain.SyncStatus{domain.SyncPending, domain.SyncFailed},
	})
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	r2, err := s.Maintenance.GetByID(ctx, "org-1", "r2")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncFailed, r2.SyncStatus)
	assert.Equal(t, "boom", r2.LastSyncError)

	completed := time.Now().UTC()
	require.NoError(t, s.Maintenance.SetStep(ctx, "org-1", "r1", domain.StepDone, &completed))
	r1, err := s.Maintenance.GetByID(ctx, "org-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, r1.Status)
	assert.Equal(t, domain.SyncPending, r1.SyncStatus, "local change re-queues the record")
	assert.NotNil(t, r1.CompletedAt)
}

func TestMaintenanceStore_MarkSyncedSkipsModified(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, s.Maintenance.Create(ctx, &domain.MaintenanceRecord{
			ID: id, OrgID: "org-1", VehicleID: "v-" + id, ServiceType: "oil",
			CurrentStep: domain.StepInShop, SyncStatus: domain.SyncPending,
		}))
	}
	pushed, err := s.Maintenance.List(ctx, "org-1", MaintenanceFilter{})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Maintenance.SetStep(ctx, "org-1", "r2", domain.StepQCCheck, nil))

	marked, err := s.Maintenance.MarkSynced(ctx, "org-1", pushed)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	r1, err := s.Maintenance.GetByID(ctx, "org-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, r1.SyncStatus)
	r2, err := s.Maintenance.GetByID(ctx, "org-1", "r2")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncPending, r2.SyncStatus, "edited after push stays queued")
}

func TestRequestStore_ItemsPreserveOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	items := []domain.PartRequestItem{{PartName: "Zeta belt", Quantity: 1}, {PartName: "alpha bolt", Quantity: 40}}
	require.NoError(t, s.Requests.Create(ctx, &domain.PartRequest{
		ID: "q1", OrgID: "org-1", Status: domain.RequestPending, Items: items,
	}))

	r, err := s.Requests.GetByID(ctx, "org-1", "q1")
	require.NoError(t, err)
	assert.Equal(t, items, r.Items)

	ok, err := s.Requests.Decide(ctx, "org-1", "q1", domain.RequestApproved, "ok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Requests.Decide(ctx, "org-1", "q1", domain.RequestRejected, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Requests.Transition(ctx, "org-1", "q1", domain.RequestPending, domain.RequestFulfilled)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Requests.Transition(ctx, "org-1", "q1", domain.RequestApproved, domain.RequestFulfilled)
	require.NoError(t, err)
	assert.True(t, ok)

	r, err = s.Requests.GetByID(ctx, "org-1", "q1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestFulfilled, r.Status)
	assert.Equal(t, "ok", r.DecisionNote)

	list, err := s.Requests.List(ctx, "org-1", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, items, list[0].Items)
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createPart(t, s, "org-1", "p1", "Coolant", 0)

	errBoom := errors.New("boom")
	err := s.Atomic(ctx, func(tx *Store) error {
		appendMovement(t, tx, "org-1", "m1", "p1", domain.MovementIn, 9)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	stock, err := s.Movements.CurrentStock(ctx, "org-1", "p1")
	require.NoError(t, err)
	assert.Zero(t, stock)
}

func TestShiftStore_Latest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.Shifts.Latest(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.Shifts.Create(ctx, &domain.ShiftReport{ID: "s1", OrgID: "org-1", Summary: "first", Locked: true}))
	require.NoError(t, s.Shifts.Create(ctx, &domain.ShiftReport{ID: "s2", OrgID: "org-1", Summary: "second", Locked: true}))

	latest, err = s.Shifts.Latest(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s2", latest.ID)
	assert.True(t, latest.Locked)
}

func TestReceiptStore_SetPaid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Receipts.Create(ctx, &domain.Receipt{
		ID: "rc1", OrgID: "org-1", Supplier: "Toko Jaya", Amount: decimal.RequireFromString("125000.50"),
	}))
	require.NoError(t, s.Receipts.SetPaid(ctx, "org-1", "rc1", true))

	r, err := s.Receipts.GetByID(ctx, "org-1", "rc1")
	require.NoError(t, err)
	assert.True(t, r.Paid)
	assert.NotNil(t, r.PaidAt)
	assert.Equal(t, "125000.5", r.Amount.String())

	assert.ErrorIs(t, s.Receipts.SetPaid(ctx, "org-2", "rc1", true), domain.ErrNotFound)
}
