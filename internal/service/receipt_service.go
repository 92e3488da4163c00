package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/imagestore"
	"github.com/vbonduro/shopsync/internal/store"
)

// receiptRepository is the subset of store.ReceiptStore that ReceiptService requires.
type receiptRepository interface {
	Create(ctx context.Context, r *domain.Receipt) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Receipt, error)
	List(ctx context.Context, orgID string) ([]*domain.Receipt, error)
	SetPaid(ctx context.Context, orgID, id string, paid bool) error
	SetImagePath(ctx context.Context, orgID, id, path string) error
}

type ReceiptService struct {
	receipts receiptRepository
	images   imagestore.ImageStore
	logger   *slog.Logger
}

var _ receiptRepository = (*store.ReceiptStore)(nil)

func NewReceiptService(receipts receiptRepository, images imagestore.ImageStore, logger *slog.Logger) *ReceiptService {
	return &ReceiptService{receipts: receipts, images: images, logger: logger}
}

type ReceiptInput struct {
	Supplier      string          `json:"supplier"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Paid          bool            `json:"paid"`
}

// Create records a cash-on-delivery receipt.
func (s *ReceiptService) Create(ctx context.Context, orgID string, in ReceiptInput) (*domain.Receipt, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	supplier := strings.TrimSpace(in.Supplier)
	if supplier == "" {
		return nil, fmt.Errorf("%w: supplier is required", domain.ErrBadRequest)
	}
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrBadRequest)
	}

	r := &domain.Receipt{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Supplier:      supplier,
		Amount:        in.Amount,
		InvoiceNumber: strings.TrimSpace(in.InvoiceNumber),
		Paid:          in.Paid,
	}
	if err := s.receipts.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("receipt created", "receipt_id", r.ID, "supplier", r.Supplier, "amount", r.Amount.String())
	return r, nil
}

func (s *ReceiptService) List(ctx context.Context, orgID string) ([]*domain.Receipt, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	return s.receipts.List(ctx, orgID)
}

func (s *ReceiptService) Get(ctx context.Context, orgID, id string) (*domain.Receipt, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	r, err := s.receipts.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: receipt %s", domain.ErrNotFound, id)
	}
	return r, nil
}

// MarkPaid sets the paid flag and returns the updated receipt.
func (s *ReceiptService) MarkPaid(ctx context.Context, orgID, id string, paid bool) (*domain.Receipt, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	if err := s.receipts.SetPaid(ctx, orgID, id, paid); err != nil {
		return nil, err
	}
	s.logger.Info("receipt payment updated", "receipt_id", id, "paid", paid)
	return s.Get(ctx, orgID, id)
}

// AttachImage stores a scan of the receipt, replacing any previous one.
func (s *ReceiptService) AttachImage(ctx context.Context, orgID, id string, data []byte) (*domain.Receipt, error) {
	r, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	mimeType, ok := imagestore.DetectMIME(data)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image format", domain.ErrBadRequest)
	}

	key, err := s.images.Save(ctx, "receipt_"+r.ID, mimeType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to save receipt image: %w", err)
	}
	if err := s.receipts.SetImagePath(ctx, orgID, id, key); err != nil {
		if derr := s.images.Delete(ctx, key); derr != nil {
			s.logger.Error("failed to remove orphaned receipt image", "key", key, "error", derr)
		}
		return nil, err
	}

	if r.ImagePath != "" {
		if err := s.images.Delete(ctx, r.ImagePath); err != nil {
			s.logger.Warn("failed to remove replaced receipt image", "key", r.ImagePath, "error", err)
		}
	}

	s.logger.Info("receipt image attached", "receipt_id", id, "mime_type", mimeType, "bytes", len(data))
	r.ImagePath = key
	return r, nil
}

// Image opens the stored scan. The caller closes the reader.
func (s *ReceiptService) Image(ctx context.Context, orgID, id string) (io.ReadCloser, string, error) {
	r, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, "", err
	}
	if r.ImagePath == "" {
		return nil, "", fmt.Errorf("%w: receipt %s has no image", domain.ErrNotFound, id)
	}
	return s.images.Get(ctx, r.ImagePath)
}
