package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"arsenal/internal/platform/lock"
	"arsenal/internal/quota/metrics"
	"arsenal/internal/quota/models"
	"arsenal/pkg/attrs"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/requestcontext"
)

var tracer = otel.Tracer("arsenal/quota")

type Store interface {
	Create(ctx context.Context, ledger *models.Ledger) error
	FindByGroup(ctx context.Context, groupID id.ImportGroupID) (*models.Ledger, error)
	Execute(ctx context.Context, groupID id.ImportGroupID, fn func(*models.Ledger) error) (*models.Ledger, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the quota counters. Admit and Release for one import group run
// one at a time; different groups never wait on each other.
type Service struct {
	store          Store
	locker         lock.Locker
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker replaces the in-process locker, typically with lock.Redis.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, locker: lock.NewKeyed()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure creates the ledger for a new import group.
func (s *Service) Configure(ctx context.Context, groupID id.ImportGroupID, groupType models.GroupType, limits models.Limits) (*models.Ledger, error) {
	ledger, err := models.NewLedger(groupID, groupType, limits)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, ledger); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "quota already configured for import group")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to configure quota")
	}
	s.logAudit(ctx, audit.EventQuotaLimitsChanged, groupID, "", "total", limits.Total)
	return ledger, nil
}

// Admit consumes quantity units against total, category and vendor limits.
// A rejection names the dimension that blocked it in the error reason.
func (s *Service) Admit(ctx context.Context, groupID id.ImportGroupID, category id.QuotaCategory, vendor id.VendorID, quantity int) (*models.Admission, error) {
	ctx, span := tracer.Start(ctx, "quota.Admit")
	defer span.End()
	span.SetAttributes(
		attribute.String("import_group_id", groupID.String()),
		attribute.String("category", category.String()),
		attribute.Int("quantity", quantity),
	)

	err := s.locker.WithLock(ctx, lock.QuotaKey(groupID.String()), func(ctx context.Context) error {
		_, err := s.store.Execute(ctx, groupID, func(l *models.Ledger) error {
			if err := l.CanAdmit(category, vendor, quantity); err != nil {
				return err
			}
			l.ApplyAdmit(category, vendor, quantity)
			return nil
		})
		return err
	})
	if err != nil {
		err = translate(err)
		if dErrors.HasCode(err, dErrors.CodeQuotaExceeded) {
			reason := dErrors.ReasonOf(err)
			s.metrics.IncrementAdmission(reason)
			s.logAudit(ctx, audit.EventQuotaRejected, groupID, reason,
				"category", category.String(), "vendor_id", vendor.String(), "quantity", quantity)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.ReasonOf(err))
		return nil, err
	}

	s.metrics.IncrementAdmission("admitted")
	s.logAudit(ctx, audit.EventQuotaAdmitted, groupID, "",
		"category", category.String(), "vendor_id", vendor.String(), "quantity", quantity)
	return &models.Admission{
		Token:         uuid.New(),
		ImportGroupID: groupID,
		Category:      category,
		VendorID:      vendor,
		Quantity:      quantity,
		AdmittedAt:    requestcontext.Now(ctx),
	}, nil
}

// Release returns consumption. Counters floor at zero; a release that would
// go below is logged as an anomaly rather than rejected.
func (s *Service) Release(ctx context.Context, groupID id.ImportGroupID, category id.QuotaCategory, vendor id.VendorID, quantity int) error {
	if quantity < 1 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	var floored []models.Dimension
	err := s.locker.WithLock(ctx, lock.QuotaKey(groupID.String()), func(ctx context.Context) error {
		_, err := s.store.Execute(ctx, groupID, func(l *models.Ledger) error {
			floored = l.ApplyRelease(category, vendor, quantity)
			return nil
		})
		return err
	})
	if err != nil {
		return translate(err)
	}
	if len(floored) > 0 {
		s.metrics.IncrementReleaseFloor()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "quota release below zero clamped",
				"event", "quota_release_floor",
				"import_group_id", groupID.String(),
				"category", category.String(),
				"vendor_id", vendor.String(),
				"quantity", quantity,
				"dimensions", floored,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	s.logAudit(ctx, audit.EventQuotaReleased, groupID, "",
		"category", category.String(), "vendor_id", vendor.String(), "quantity", quantity)
	return nil
}

func (s *Service) Remaining(ctx context.Context, groupID id.ImportGroupID) (*models.Remaining, error) {
	ledger, err := s.store.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err)
	}
	r := ledger.Remaining()
	return &r, nil
}

func (s *Service) Get(ctx context.Context, groupID id.ImportGroupID) (*models.Ledger, error) {
	ledger, err := s.store.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err)
	}
	return ledger, nil
}

// UpdateLimits replaces the limits. Lowering a limit below what is already
// consumed is a conflict naming the dimension.
func (s *Service) UpdateLimits(ctx context.Context, groupID id.ImportGroupID, limits models.Limits) (*models.Ledger, error) {
	var updated *models.Ledger
	err := s.locker.WithLock(ctx, lock.QuotaKey(groupID.String()), func(ctx context.Context) error {
		var err error
		updated, err = s.store.Execute(ctx, groupID, func(l *models.Ledger) error {
			if err := l.CanUpdateLimits(limits); err != nil {
				return err
			}
			l.ApplyLimits(limits)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventQuotaLimitsChanged, groupID, "", "total", limits.Total)
	return updated, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "quota not configured for import group")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "quota ledger changed concurrently, retry")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "quota operation failed")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, groupID id.ImportGroupID, reason string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	args := append(attributes,
		"import_group_id", groupID.String(),
		"event", event.String(),
		"log_type", "audit",
	)
	if reason != "" {
		args = append(args, "reason", reason)
	}
	if requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, event.String(), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:        event.String(),
		ActorID:       requestcontext.ActorID(ctx),
		Subject:       groupID.String(),
		ImportGroupID: groupID.String(),
		Reason:        reason,
		RequestID:     requestID,
		Details:       attrs.ToMap(attributes),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event.String(), "error", err)
	}
}
