package service

import (
	"context"
	"path"
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	"recovery_backend/internal/ingest"
	"recovery_backend/internal/payments/repository"
	"recovery_backend/internal/payments/transport"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/sanitize"

	"github.com/shopspring/decimal"
)

const futureTolerance = 5 * time.Minute

// Service records and lists payments.
type Service struct {
	repo         repository.Repository
	eventBus     events.Bus
	storage      storage.StorageService
	selfieBucket string
	log          *logger.Logger
	now          func() time.Time
}

// New creates a payments service. storageSvc may be nil, in which case
// selfies are rejected.
func New(repo repository.Repository, eventBus events.Bus, storageSvc storage.StorageService, selfieBucket string, log *logger.Logger) *Service {
	return &Service{
		repo:         repo,
		eventBus:     eventBus,
		storage:      storageSvc,
		selfieBucket: selfieBucket,
		log:          log,
		now:          time.Now,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func parseCharge(field string, raw transport.Money) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := ingest.ParseAmount(string(raw))
	if err != nil || v.IsNegative() {
		return decimal.NullDecimal{}, apperr.Validation(field + " must be a non-negative amount")
	}
	return decimal.NewNullDecimal(v), nil
}

// Record applies a payment to a live case the actor can see.
func (s *Service) Record(ctx context.Context, actor visibility.Actor, caseNo string, req transport.CreatePaymentRequest, selfie *storage.Attachment) (transport.RecordPaymentResponse, error) {
	amount, err := ingest.ParseAmount(string(req.Amount))
	if err != nil || !amount.Round(2).IsPositive() {
		return transport.RecordPaymentResponse{}, apperr.Validation("amount must be a positive number")
	}
	if !amount.Equal(amount.Round(2)) {
		return transport.RecordPaymentResponse{}, apperr.Validation("amount cannot have more than 2 decimal places")
	}
	scope := visibility.Compose(actor)
	if scope.DenyAll() {
		return transport.RecordPaymentResponse{}, apperr.NotFound("case not found")
	}
	now := s.now()
	date := now
	if req.Date != nil {
		date = *req.Date
	}
	if date.After(now.Add(futureTolerance)) {
		return transport.RecordPaymentResponse{}, apperr.Validation("payment date cannot be in the future")
	}

	p := repository.Payment{
		OrganizationID: actor.OrganizationID,
		CaseNo:         caseNo,
		Amount:         amount,
		Date:           date.UTC(),
		PaymentMode:    req.PaymentMode,
		Reference:      sanitize.Text(req.Reference),
		CreatedBy:      actor.EmployeeID,
	}
	if p.PenaltyCharges, err = parseCharge("penaltyCharges", req.PenaltyCharges); err != nil {
		return transport.RecordPaymentResponse{}, err
	}
	if p.BounceCharges, err = parseCharge("bounceCharges", req.BounceCharges); err != nil {
		return transport.RecordPaymentResponse{}, err
	}
	if p.OtherCharges, err = parseCharge("otherCharges", req.OtherCharges); err != nil {
		return transport.RecordPaymentResponse{}, err
	}

	if selfie != nil {
		if s.storage == nil {
			return transport.RecordPaymentResponse{}, apperr.Validation("selfie uploads are not configured")
		}
		folder := path.Join(actor.OrganizationID.String(), caseNo, "payments")
		key, err := storage.Store(ctx, s.storage, s.selfieBucket, folder, storage.ContentImage, selfie)
		if err != nil {
			return transport.RecordPaymentResponse{}, err
		}
		p.SelfieKey = &key
	}

	recorded, err := s.repo.Record(ctx, scope, p)
	if err != nil {
		if p.SelfieKey != nil {
			if delErr := s.storage.DeleteObject(context.WithoutCancel(ctx), s.selfieBucket, *p.SelfieKey); delErr != nil {
				s.log.WithContext(ctx).Warn("orphaned selfie", "key", *p.SelfieKey, "error", delErr)
			}
		}
		if apperr.GetKind(err) == apperr.KindUnknown {
			s.log.OperationFailed("payments.record", actor.OrganizationID.String(), actor.EmployeeID.String(), err)
		}
		return transport.RecordPaymentResponse{}, err
	}
	recorded.Payment.CreatedByName = &actor.Name

	s.eventBus.Publish(ctx, events.PaymentRecorded{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: recorded.Payment.OrganizationID,
		PaymentID:      recorded.Payment.ID,
		CaseNo:         recorded.Payment.CaseNo,
		CreatedBy:      recorded.Payment.CreatedBy,
		Amount:         recorded.Payment.Amount,
		PaymentMode:    recorded.Payment.PaymentMode,
		DueEmiAmount:   recorded.Due.DueEmiAmount,
		LedgerCredited: recorded.Ledger != nil,
	})

	resp := transport.RecordPaymentResponse{
		Payment:      s.toResponse(ctx, recorded.Payment),
		DueEmiAmount: recorded.Due.DueEmiAmount,
		DueEmi:       recorded.Due.DueEmi,
	}
	if recorded.Ledger != nil {
		balance := recorded.Ledger.Balance
		resp.LedgerBalance = &balance
	}
	return resp, nil
}

// List returns the visible payments of a case, newest first.
func (s *Service) List(ctx context.Context, actor visibility.Actor, caseNo string) (transport.PaymentListResponse, error) {
	items, err := s.repo.ListByCase(ctx, visibility.Compose(actor), caseNo)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}
	out := transport.PaymentListResponse{Items: make([]transport.PaymentResponse, 0, len(items)), Total: decimal.Zero}
	for _, p := range items {
		out.Items = append(out.Items, s.toResponse(ctx, p))
		out.Total = out.Total.Add(p.Amount)
	}
	return out, nil
}

func nullPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func (s *Service) toResponse(ctx context.Context, p repository.Payment) transport.PaymentResponse {
	resp := transport.PaymentResponse{
		ID:             p.ID.String(),
		CaseNo:         p.CaseNo,
		Amount:         p.Amount,
		Date:           p.Date,
		PaymentMode:    p.PaymentMode,
		PenaltyCharges: nullPtr(p.PenaltyCharges),
		BounceCharges:  nullPtr(p.BounceCharges),
		OtherCharges:   nullPtr(p.OtherCharges),
		Reference:      p.Reference,
		CreatedBy:      p.CreatedBy.String(),
		CreatedByName:  p.CreatedByName,
		CreatedAt:      p.CreatedAt,
	}
	if p.SelfieKey != nil && s.storage != nil {
		if url, err := s.storage.GenerateDownloadURL(ctx, s.selfieBucket, *p.SelfieKey); err == nil {
			resp.SelfieURL = url.URL
		}
	}
	return resp
}
