// Package ledger derives stock from the append-only movement log. No component
// stores a stock counter; every read is an aggregate over the journal.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vbonduro/shopsync/internal/domain"
)

// HistoryLimit caps the number of movements History returns.
const HistoryLimit = 100

// partRepository is the subset of store.PartStore the ledger requires.
type partRepository interface {
	Create(ctx context.Context, p *domain.Part) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Part, error)
	List(ctx context.Context, orgID string) ([]*domain.Part, error)
	Delete(ctx context.Context, orgID, id string) error
	Stock(ctx context.Context, orgID string, lowOnly bool) ([]domain.PartStock, error)
}

// movementRepository is the subset of store.MovementStore the ledger requires.
type movementRepository interface {
	Append(ctx context.Context, m *domain.InventoryMovement) error
	CurrentStock(ctx context.Context, orgID, partID string) (int64, error)
	History(ctx context.Context, orgID, partID string, limit int) ([]domain.InventoryMovement, error)
}

type Service struct {
	parts     partRepository
	movements movementRepository
	logger    *slog.Logger
}

func NewService(parts partRepository, movements movementRepository, logger *slog.Logger) *Service {
	return &Service{parts: parts, movements: movements, logger: logger}
}

// MovementInput describes a ledger entry to record. Type is matched
// case-insensitively.
type MovementInput struct {
	PartID      string  `json:"partId"`
	Quantity    int64   `json:"quantity"`
	Type        string  `json:"type"`
	Reason      string  `json:"reason"`
	VehicleID   *string `json:"vehicleId,omitempty"`
	MechanicID  *string `json:"mechanicId,omitempty"`
	ReferenceID *string `json:"referenceId,omitempty"`
}

// RecordMovement validates in and appends it to the log. Validation happens
// before any write, so a rejected input leaves the log untouched.
func (s *Service) RecordMovement(ctx context.Context, orgID string, in MovementInput) (*domain.InventoryMovement, error) {
	if orgID == "" {
		return nil, domain.ErrDeviceNotConfigured
	}

	typ, err := domain.ParseMovementType(in.Type)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateQuantity(typ, in.Quantity); err != nil {
		return nil, err
	}
	if _, err := s.requirePart(ctx, orgID, in.PartID); err != nil {
		return nil, err
	}

	m := &domain.InventoryMovement{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		PartID:       in.PartID,
		Quantity:     in.Quantity,
		MovementType: typ,
		Reason:       strings.TrimSpace(in.Reason),
		VehicleID:    nonEmpty(in.VehicleID),
		MechanicID:   nonEmpty(in.MechanicID),
		ReferenceID:  nonEmpty(in.ReferenceID),
	}
	if err := s.movements.Append(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("movement recorded", "part_id", m.PartID, "type", m.MovementType, "quantity", m.Quantity)
	return m, nil
}

func (s *Service) CurrentStock(ctx context.Context, orgID, partID string) (int64, error) {
	if orgID == "" {
		return 0, domain.ErrDeviceNotConfigured
	}
	if _, err := s.requirePart(ctx, orgID, partID); err != nil {
		return 0, err
	}
	return s.movements.CurrentStock(ctx, orgID, partID)
}

// LowStockItems returns the parts at or below their threshold, lowest stock first.
func (s *Service) LowStockItems(ctx context.Context, orgID string) ([]domain.PartStock, error) {
	if orgID == "" {
		return nil, domain.ErrDeviceNotConfigured
	}
	return s.parts.Stock(ctx, orgID, true)
}

// Inventory returns every part with its stock, ordered by name.
func (s *Service) Inventory(ctx context.Context, orgID string) ([]domain.PartStock, error) {
	if orgID == "" {
		return nil, domain.ErrDeviceNotConfigured
	}
	return s.parts.Stock(ctx, orgID, false)
}

// History returns up to limit movements for a part, newest first. A limit
// outside (0, HistoryLimit] is clamped to HistoryLimit.
func (s *Service) History(ctx context.Context, orgID, partID string, limit int) ([]domain.InventoryMovement, error) {
	if orgID == "" {
		return nil, domain.ErrDeviceNotConfigured
	}
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	return s.movements.History(ctx, orgID, partID, limit)
}

// PartInput describes a part to catalogue.
type PartInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	MinStock int64  `json:"minStock"`
}

func (s *Service) CreatePart(ctx context.Context, orgID string, in PartInput) (*domain.Part, error) {
	if orgID == "" {
		return nil, domain.ErrDeviceNotConfigured
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: part name is required", domain.ErrBadRequest)
	}
	if in.MinStock < 0 {
		return nil, fmt.Errorf("%w: minStock must not be negative", domain.ErrBadRequest)
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "pcs"
	}
	p := &domain.Part{
		ID:       uuid.NewString(),
		OrgID:    orgID,
		Name:     name,
		Category: strings.TrimSpace(in.Category),
		Unit:     unit,
		MinStock: in.MinStock,
	}
	if err := s.parts.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListParts(ctx context.Context, orgID string) ([]*domain.Part, error) {
	if orgID == "" {
		return nil, domain.ErrDeviceNotConfigured
	}
	return s.parts.List(ctx, orgID)
}

// DeletePart removes a part and, by cascade, its movements.
func (s *Service) DeletePart(ctx context.Context, orgID, partID string) error {
	if orgID == "" {
		return domain.ErrDeviceNotConfigured
	}
	if err := s.parts.Delete(ctx, orgID, partID); err != nil {
		return err
	}
	s.logger.Info("part deleted", "part_id", partID)
	return nil
}

func (s *Service) requirePart(ctx context.Context, orgID, partID string) (*domain.Part, error) {
	p, err := s.parts.GetByID(ctx, orgID, partID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: part %s", domain.ErrNotFound, partID)
	}
	return p, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
