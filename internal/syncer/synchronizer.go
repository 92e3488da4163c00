// Package syncer reconciles the local store with the cloud. The cloud owns
// vehicles and staff; the device owns maintenance records.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/store"
)

// Cloud is the subset of cloud.Client the synchronizer requires.
type Cloud interface {
	FetchVehicles(ctx context.Context, orgID string) ([]domain.Vehicle, error)
	FetchStaff(ctx context.Context, orgID string) ([]domain.Mechanic, error)
	UpsertMaintenance(ctx context.Context, records []*domain.MaintenanceRecord) error
	PatchVehicleStatus(ctx context.Context, orgID, vehicleID string, status domain.VehicleStatus) error
	Ping(ctx context.Context) error
}

// CloudFactory builds a client for the current binding. It is called once per
// run so that a re-provisioned device talks to its new tenant.
type CloudFactory func(cfg *domain.DeviceConfig) Cloud

type bindingSource interface {
	Require(ctx context.Context) (*domain.DeviceConfig, error)
}

// Result summarises one successful run.
type Result struct {
	Vehicles int       `json:"vehicles"`
	Staff    int       `json:"staff"`
	Pushed   int       `json:"pushed"`
	Patched  int       `json:"patched"`
	Attempts int       `json:"attempts"`
	SyncedAt time.Time `json:"syncedAt"`
}

type Synchronizer struct {
	store    *store.Store
	binding  bindingSource
	newCloud CloudFactory
	retry    RetryPolicy
	logger   *slog.Logger
}

func New(s *store.Store, binding bindingSource, newCloud CloudFactory, retry RetryPolicy, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: s, binding: binding, newCloud: newCloud, retry: retry, logger: logger}
}

// Probe reports whether the bound tenant's backend is reachable.
func (s *Synchronizer) Probe(ctx context.Context) error {
	cfg, err := s.binding.Require(ctx)
	if err != nil {
		return err
	}
	return s.newCloud(cfg).Ping(ctx)
}

// RunOnce performs pull vehicles, pull staff, push maintenance, then stamps
// lastSyncAt. A fatal step aborts the run and leaves lastSyncAt untouched.
func (s *Synchronizer) RunOnce(ctx context.Context) (*Result, error) {
	cfg, err := s.binding.Require(ctx)
	if err != nil {
		return nil, err
	}
	orgID := cfg.OrgID
	client := s.newCloud(cfg)
	res := &Result{}

	if res.Vehicles, err = s.pullVehicles(ctx, client, orgID); err != nil {
		return nil, err
	}
	res.Staff = s.pullStaff(ctx, client, orgID)
	if res.Pushed, res.Patched, err = s.pushMaintenance(ctx, client, orgID); err != nil {
		return nil, err
	}

	res.SyncedAt = time.Now().UTC()
	if err := s.store.Device.TouchLastSync(ctx, orgID, res.SyncedAt); err != nil {
		return nil, err
	}

	s.logger.Info("sync complete", "vehicles", res.Vehicles, "staff", res.Staff, "pushed", res.Pushed, "patched", res.Patched)
	return res, nil
}

func (s *Synchronizer) pullVehicles(ctx context.Context, client Cloud, orgID string) (int, error) {
	vehicles, err := client.FetchVehicles(ctx, orgID)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.store.Atomic(ctx, func(tx *store.Store) error {
		n, err = tx.Vehicles.Upsert(ctx, orgID, vehicles)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// pullStaff never fails the run.
func (s *Synchronizer) pullStaff(ctx context.Context, client Cloud, orgID string) int {
	staff, err := client.FetchStaff(ctx, orgID)
	if err != nil {
		s.logger.Warn("staff pull failed", "error", err)
		return 0
	}
	var n int
	err = s.store.Atomic(ctx, func(tx *store.Store) error {
		n, err = tx.Mechanics.Upsert(ctx, orgID, staff)
		return err
	})
	if err != nil {
		s.logger.Warn("staff upsert failed", "error", err)
		return 0
	}
	return n
}

// pushMaintenance upserts every pending or failed record. On success the
// records are marked synced and the vehicle statuses implied by their steps
// are patched; patch failures are logged only. On failure every attempted
// record is marked failed and the error is returned.
func (s *Synchronizer) pushMaintenance(ctx context.Context, client Cloud, orgID string) (pushed, patched int, err error) {
	records, err := s.store.Maintenance.List(ctx, orgID, store.MaintenanceFilter{
		SyncStatus: []domain.SyncStatus{domain.SyncPending, domain.SyncFailed},
	})
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 {
		return 0, 0, nil
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	if err := client.UpsertMaintenance(ctx, records); err != nil {
		if merr := s.store.Maintenance.MarkSync(context.WithoutCancel(ctx), orgID, ids, domain.SyncFailed, err.Error()); merr != nil {
			s.logger.Error("failed to mark records failed", "error", merr)
		}
		return 0, 0, fmt.Errorf("push of %d records failed: %w", len(records), err)
	}

	marked, err := s.store.Maintenance.MarkSynced(ctx, orgID, records)
	if err != nil {
		return 0, 0, err
	}
	if marked < len(records) {
		s.logger.Info("records changed during push stay pending", "count", len(records)-marked)
	}

	return len(records), s.applyVehicleStatuses(ctx, client, orgID, records), nil
}

// applyVehicleStatuses evaluates the step mapping once per vehicle. Records
// arrive newest first, so the newest job decides each vehicle's status.
func (s *Synchronizer) applyVehicleStatuses(ctx context.Context, client Cloud, orgID string, records []*domain.MaintenanceRecord) int {
	seen := make(map[string]bool, len(records))
	patched := 0
	for _, r := range records {
		if seen[r.VehicleID] {
			continue
		}
		seen[r.VehicleID] = true

		status, ok := domain.VehicleStatusForStep(r.CurrentStep)
		if !ok {
			continue
		}
		if err := client.PatchVehicleStatus(ctx, orgID, r.VehicleID, status); err != nil {
			s.logger.Warn("vehicle status patch failed", "vehicle_id", r.VehicleID, "status", status, "error", err)
			continue
		}
		if err := s.store.Vehicles.UpdateStatus(ctx, orgID, r.VehicleID, status); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("local vehicle status update failed", "vehicle_id", r.VehicleID, "error", err)
		}
		patched++
	}
	return patched
}
