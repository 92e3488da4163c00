package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/store"
)

type RequestService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewRequestService(s *store.Store, logger *slog.Logger) *RequestService {
	return &RequestService{store: s, logger: logger}
}

type RequestInput struct {
	RequesterID   string                   `json:"requesterId"`
	RequesterName string                   `json:"requesterName"`
	Notes         string                   `json:"notes"`
	Items         []domain.PartRequestItem `json:"items"`
}

// Create opens a pending restock request. Items are kept verbatim and in order.
func (s *RequestService) Create(ctx context.Context, orgID string, in RequestInput) (*domain.PartRequest, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: a request needs at least one item", domain.ErrBadRequest)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.PartName) == "" || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d needs a part name and a positive quantity", domain.ErrBadRequest, i+1)
		}
	}

	r := &domain.PartRequest{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		RequesterID:   in.RequesterID,
		RequesterName: strings.TrimSpace(in.RequesterName),
		Notes:         strings.TrimSpace(in.Notes),
		Status:        domain.RequestPending,
		Items:         in.Items,
	}
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		return tx.Requests.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("part request created", "request_id", r.ID, "items", len(r.Items))
	return r, nil
}

// List returns requests, optionally narrowed to one status.
func (s *RequestService) List(ctx context.Context, orgID, status string) ([]*domain.PartRequest, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	st := domain.RequestStatus(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", domain.RequestPending, domain.RequestApproved, domain.RequestRejected, domain.RequestFulfilled:
	default:
		return nil, fmt.Errorf("%w: unknown request status %q", domain.ErrBadRequest, status)
	}
	return s.store.Requests.List(ctx, orgID, st)
}

func (s *RequestService) Get(ctx context.Context, orgID, id string) (*domain.PartRequest, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.get(ctx, s.store, orgID, id)
}

// Decide approves or rejects a pending request. The decision is matched
// case-insensitively.
func (s *RequestService) Decide(ctx context.Context, orgID, id, decision, note string) (*domain.PartRequest, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	to := domain.RequestStatus(strings.ToLower(strings.TrimSpace(decision)))
	if to != domain.RequestApproved && to != domain.RequestRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", domain.ErrBadRequest)
	}

	var r *domain.PartRequest
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		var err error
		r, err = s.transition(ctx, tx, orgID, id, domain.RequestPending, func() (bool, error) {
			return tx.Requests.Decide(ctx, orgID, id, to, strings.TrimSpace(note))
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("part request decided", "request_id", id, "status", to)
	return r, nil
}

// FulfillResult reports what a fulfilment put into stock.
type FulfillResult struct {
	Request   *domain.PartRequest        `json:"request"`
	Received  []domain.InventoryMovement `json:"received"`
	Unmatched []string                   `json:"unmatched"`
}

// Fulfill closes an approved request. Items whose name matches a catalogued
// part (case-insensitively) are received into stock as IN movements that
// reference the request; the rest are reported as unmatched.
func (s *RequestService) Fulfill(ctx context.Context, orgID, id string) (*FulfillResult, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}

	res := &FulfillResult{Received: []domain.InventoryMovement{}, Unmatched: []string{}}
	err := s.store.Atomic(ctx, func(tx *store.Store) error {
		r, err := s.transition(ctx, tx, orgID, id, domain.RequestApproved, func() (bool, error) {
			return tx.Requests.Transition(ctx, orgID, id, domain.RequestApproved, domain.RequestFulfilled)
		})
		if err != nil {
			return err
		}
		res.Request = r

		parts, err := tx.Parts.List(ctx, orgID)
		if err != nil {
			return err
		}
		byName := make(map[string]*domain.Part, len(parts))
		for _, p := range parts {
			byName[strings.ToLower(p.Name)] = p
		}

		for _, item := range r.Items {
			p, ok := byName[strings.ToLower(strings.TrimSpace(item.PartName))]
			if !ok {
				res.Unmatched = append(res.Unmatched, item.PartName)
				continue
			}
			m := domain.InventoryMovement{
				ID:           uuid.NewString(),
				OrgID:        orgID,
				PartID:       p.ID,
				Quantity:     item.Quantity,
				MovementType: domain.MovementIn,
				Reason:       "part request fulfilled",
				ReferenceID:  optional(r.ID),
			}
			if err := tx.Movements.Append(ctx, &m); err != nil {
				return err
			}
			res.Received = append(res.Received, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("part request fulfilled", "request_id", id, "received", len(res.Received), "unmatched", len(res.Unmatched))
	return res, nil
}

// transition checks the current status before calling write so that a request
// in the wrong state is rejected without any write.
func (s *RequestService) transition(ctx context.Context, tx *store.Store, orgID, id string, from domain.RequestStatus, write func() (bool, error)) (*domain.PartRequest, error) {
	r, err := s.get(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}
	if r.Status != from {
		return nil, fmt.Errorf("%w: request %s is %s, not %s", domain.ErrBadRequest, id, r.Status, from)
	}

	ok, err := write()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: request %s changed concurrently", domain.ErrBadRequest, id)
	}
	return s.get(ctx, tx, orgID, id)
}

func (s *RequestService) get(ctx context.Context, st *store.Store, orgID, id string) (*domain.PartRequest, error) {
	r, err := st.Requests.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: request %s", domain.ErrNotFound, id)
	}
	return r, nil
}
