package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/invoice"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/DukeRupert/talentgate/internal/storage"
	"github.com/google/uuid"
)

// MaxInvoiceSize bounds cached invoice documents.
const MaxInvoiceSize = 2 << 20

// InvoiceService builds and renders invoices for a user's payments.
type InvoiceService interface {
	// Invoice builds the printable view of one of the user's payments.
	Invoice(ctx context.Context, user *domain.User, paymentID uuid.UUID) (*domain.Invoice, error)

	// Document returns the rendered invoice, from the storage cache when
	// present. Payment records are immutable, so a cached render never goes
	// stale.
	Document(ctx context.Context, user *domain.User, paymentID uuid.UUID) ([]byte, string, error)
}

type invoiceService struct {
	store    repository.Store
	renderer invoice.Renderer
	cache    storage.Storage // optional
	logger   *slog.Logger
}

// NewInvoiceService creates a new InvoiceService. cache may be nil.
func NewInvoiceService(store repository.Store, renderer invoice.Renderer, cache storage.Storage, logger *slog.Logger) InvoiceService {
	return &invoiceService{
		store:    store,
		renderer: renderer,
		cache:    cache,
		logger:   logger,
	}
}

func (s *invoiceService) Invoice(ctx context.Context, user *domain.User, paymentID uuid.UUID) (*domain.Invoice, error) {
	const op = "InvoiceService.Invoice"

	rec, err := s.store.GetPaymentRecordForUser(ctx, repository.GetPaymentRecordForUserParams{ID: paymentID, UserID: user.ID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "payment", paymentID.String())
		}
		return nil, domain.Internal(err, op, "Failed to load payment")
	}
	payment := repoPaymentToDomain(rec)

	description := "Subscription Plan - " + payment.Plan.DisplayName()
	if payment.Kind == domain.PurchaseTraining && payment.TrainingID != nil {
		t, err := s.store.GetTraining(ctx, *payment.TrainingID)
		switch {
		case err == nil:
			description = t.Title
		case errors.Is(err, sql.ErrNoRows):
			description = "Training"
		default:
			return nil, domain.Internal(err, op, "Failed to load training")
		}
	}

	return &domain.Invoice{
		Number:        domain.InvoiceNumber(payment),
		IssuedAt:      payment.CreatedAt,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		Description:   description,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PaymentID:     payment.GatewayPaymentID,
	}, nil
}

func (s *invoiceService) Document(ctx context.Context, user *domain.User, paymentID uuid.UUID) ([]byte, string, error) {
	const op = "InvoiceService.Document"

	inv, err := s.Invoice(ctx, user, paymentID)
	if err != nil {
		return nil, "", err
	}
	contentType := s.renderer.ContentType()
	key := storage.InvoiceKey(user.ID, paymentID)

	if s.cache != nil {
		if body, ok := s.cached(ctx, key); ok {
			metrics.InvoicesRendered.WithLabelValues("hit").Inc()
			return body, contentType, nil
		}
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(ctx, inv, &buf); err != nil {
		return nil, "", domain.Internal(err, op, "Failed to render invoice")
	}
	metrics.InvoicesRendered.WithLabelValues("miss").Inc()

	if s.cache != nil {
		err := s.cache.Put(ctx, key, bytes.NewReader(buf.Bytes()), storage.PutOptions{
			ContentType: contentType,
			MaxSize:     MaxInvoiceSize,
		})
		if err != nil {
			s.logger.Warn("failed to cache invoice", "key", key, "error", err)
		}
	}

	return buf.Bytes(), contentType, nil
}

// cached reads a stored render. Any storage failure is a miss.
func (s *invoiceService) cached(ctx context.Context, key string) ([]byte, bool) {
	rc, _, err := s.cache.Get(ctx, key)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Warn("invoice cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, MaxInvoiceSize))
	if err != nil {
		s.logger.Warn("invoice cache read failed", "key", key, "error", err)
		return nil, false
	}
	return body, true
}

var _ InvoiceService = (*invoiceService)(nil)
