package service

import (
	"context"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/ledger"
)

// Snapshot is the read-only bundle a LAN terminal loads in one request.
type Snapshot struct {
	Inventory       []domain.PartStock    `json:"inventory"`
	Maintenance     []MaintenanceView     `json:"maintenance"`
	PendingRequests []*domain.PartRequest `json:"pendingRequests"`
	LastShiftReport *domain.ShiftReport   `json:"lastShiftReport"`
	SyncedAt        time.Time             `json:"syncedAt"`
}

type SnapshotService struct {
	ledger      *ledger.Service
	maintenance *MaintenanceService
	requests    *RequestService
	shifts      shiftRepository
	now         func() time.Time
}

func NewSnapshotService(l *ledger.Service, m *MaintenanceService, r *RequestService, shifts shiftRepository) *SnapshotService {
	return &SnapshotService{
		ledger:      l,
		maintenance: m,
		requests:    r,
		shifts:      shifts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot reads current stock, open jobs, pending requests and the latest
// shift report. Only SyncedAt varies between calls with no writes in between.
func (s *SnapshotService) Snapshot(ctx context.Context, orgID string) (*Snapshot, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	inventory, err := s.ledger.Inventory(ctx, orgID)
	if err != nil {
		return nil, err
	}
	open, err := s.maintenance.List(ctx, orgID, string(domain.StatusInProgress))
	if err != nil {
		return nil, err
	}
	pending, err := s.requests.List(ctx, orgID, string(domain.RequestPending))
	if err != nil {
		return nil, err
	}
	last, err := s.shifts.Latest(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Inventory:       inventory,
		Maintenance:     open,
		PendingRequests: pending,
		LastShiftReport: last,
		SyncedAt:        s.now(),
	}, nil
}
