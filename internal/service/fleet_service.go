package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/store"
)

// FleetService reads and bulk-replaces the cloud-owned fleet and staff
// tables. Writes here come from the synchronizer or from a LAN terminal
// relaying a cloud export.
type FleetService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewFleetService(s *store.Store, logger *slog.Logger) *FleetService {
	return &FleetService{store: s, logger: logger}
}

func (s *FleetService) ListVehicles(ctx context.Context, orgID string) ([]*domain.Vehicle, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.store.Vehicles.List(ctx, orgID)
}

func (s *FleetService) ListMechanics(ctx context.Context, orgID string) ([]*domain.Mechanic, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.store.Mechanics.List(ctx, orgID)
}

// ReplaceVehicles overwrites local vehicles by id in a single transaction.
func (s *FleetService) ReplaceVehicles(ctx context.Context, orgID string, vehicles []domain.Vehicle) (int, error) {
	if err := requireOrg(orgID); err != nil {
		return 0, err
	}
	for i, v := range vehicles {
		if strings.TrimSpace(v.ID) == "" || strings.TrimSpace(v.Plate) == "" {
			return 0, fmt.Errorf("%w: vehicle %d needs an id and a plate", domain.ErrBadRequest, i+1)
		}
	}

	var n int
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		var err error
		n, err = tx.Vehicles.Upsert(ctx, orgID, vehicles)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("vehicles replaced", "count", n)
	return n, nil
}

// ReplaceMechanics overwrites local staff by id in a single transaction.
func (s *FleetService) ReplaceMechanics(ctx context.Context, orgID string, mechanics []domain.Mechanic) (int, error) {
	if err := requireOrg(orgID); err != nil {
		return 0, err
	}
	for i, m := range mechanics {
		if strings.TrimSpace(m.ID) == "" {
			return 0, fmt.Errorf("%w: mechanic %d needs an id", domain.ErrBadRequest, i+1)
		}
	}

	var n int
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		var err error
		n, err = tx.Mechanics.Upsert(ctx, orgID, mechanics)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("mechanics replaced", "count", n)
	return n, nil
}
