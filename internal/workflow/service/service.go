package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"arsenal/internal/platform/lock"
	quotamodels "arsenal/internal/quota/models"
	resmodels "arsenal/internal/reservation/models"
	"arsenal/internal/workflow/metrics"
	"arsenal/internal/workflow/models"
	"arsenal/pkg/attrs"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/platform/tx"
	"arsenal/pkg/requestcontext"
)

var tracer = otel.Tracer("arsenal/workflow")

type Store interface {
	Create(ctx context.Context, g *models.ImportGroup) error
	FindByID(ctx context.Context, groupID id.ImportGroupID) (*models.ImportGroup, error)
	Execute(ctx context.Context, groupID id.ImportGroupID, fn func(*models.ImportGroup) error) (*models.ImportGroup, error)
	List(ctx context.Context) ([]*models.ImportGroup, error)
}

// DocumentGroupService reports whether the mandatory operations documents
// for a group are on file.
type DocumentGroupService interface {
	RequiredDocumentsPresent(ctx context.Context, groupID id.ImportGroupID) (bool, error)
}

// LicenseDirectory tracks which group occupies a license.
type LicenseDirectory interface {
	Bind(ctx context.Context, licenseID id.LicenseID, groupID id.ImportGroupID) error
	Free(ctx context.Context, licenseID id.LicenseID, groupID id.ImportGroupID) error
}

type Quota interface {
	Configure(ctx context.Context, groupID id.ImportGroupID, groupType quotamodels.GroupType, limits quotamodels.Limits) (*quotamodels.Ledger, error)
}

type Reservations interface {
	OutstandingCount(ctx context.Context, groupID id.ImportGroupID) (resmodels.Outstanding, error)
	CancelGroup(ctx context.Context, groupID id.ImportGroupID) (resmodels.Outstanding, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the import group stage machine. Transitions for one group are
// serialized on the group lock; different groups proceed independently.
type Service struct {
	store          Store
	documents      DocumentGroupService
	licenses       LicenseDirectory
	quota          Quota
	reservations   Reservations
	gates          map[models.Stage][]precondition
	locker         lock.Locker
	tx             tx.Runner
	atomic         bool
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

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithTxRunner makes group creation, completion and cancellation atomic
// across stores.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
		s.atomic = true
	}
}

func New(store Store, documents DocumentGroupService, licenses LicenseDirectory, quota Quota, reservations Reservations, opts ...Option) *Service {
	s := &Service{
		store:        store,
		documents:    documents,
		licenses:     licenses,
		quota:        quota,
		reservations: reservations,
		locker:       lock.NewKeyed(),
		tx:           tx.Noop{},
	}
	s.gates = s.transitionGates()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGroupParams configures a new import group and its quota.
type CreateGroupParams struct {
	LicenseID id.LicenseID
	Type      quotamodels.GroupType
	Limits    quotamodels.Limits
}

// CreateGroup occupies the license, configures the quota ledger and starts
// the group at PREPARING. An occupied license is a conflict.
func (s *Service) CreateGroup(ctx context.Context, p CreateGroupParams) (*models.ImportGroup, error) {
	actor := requestcontext.ActorID(ctx)
	g, err := models.NewImportGroup(id.ImportGroupID(uuid.New()), p.LicenseID, p.Type, actor, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := p.Limits.Validate(); err != nil {
		return nil, err
	}

	bound := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.licenses.Bind(ctx, g.LicenseID, g.ID); err != nil {
			return err
		}
		bound = true
		if _, err := s.quota.Configure(ctx, g.ID, g.Type, p.Limits); err != nil {
			return err
		}
		if err := s.store.Create(ctx, g); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "license already has an active import group")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create import group")
		}
		return nil
	})
	if err != nil {
		if bound && !s.atomic {
			s.freeLicense(ctx, g)
		}
		return nil, err
	}

	s.logAudit(ctx, audit.EventGroupCreated, g, "",
		"license_id", g.LicenseID.String(),
		"type", string(g.Type),
		"total_quota", p.Limits.Total,
	)
	return g, nil
}

// Advance moves the group to target, which must be the next stage or
// CANCELLED. Advancing to the current stage is a no-op. An unmet
// precondition fails with stage_blocked naming it.
func (s *Service) Advance(ctx context.Context, groupID id.ImportGroupID, target models.Stage, actor id.UserID) (*models.ImportGroup, error) {
	if target == models.StageCancelled {
		return s.Cancel(ctx, groupID, actor)
	}

	ctx, span := tracer.Start(ctx, "workflow.Advance")
	defer span.End()
	span.SetAttributes(attribute.String("import_group_id", groupID.String()), attribute.String("target", target.String()))

	g, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	noop, err := g.CanAdvance(target)
	if err != nil || noop {
		return g, err
	}

	// Remote checks run before the critical section.
	if err := s.checkGates(ctx, g, target, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.ReasonOf(err))
		return nil, err
	}

	var updated *models.ImportGroup
	err = s.locker.WithLock(ctx, lock.GroupKey(groupID.String()), func(ctx context.Context) error {
		current, err := s.Get(ctx, groupID)
		if err != nil {
			return err
		}
		if noop, err = current.CanAdvance(target); err != nil || noop {
			updated = current
			return err
		}
		if err := s.checkGates(ctx, current, target, false); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			updated, err = s.store.Execute(ctx, groupID, func(g *models.ImportGroup) error {
				if _, err := g.CanAdvance(target); err != nil {
					return err
				}
				g.ApplyAdvance(target, actor, now)
				return nil
			})
			if err != nil {
				return translate(err)
			}
			if target == models.StageCompleted {
				return s.licenses.Free(ctx, updated.LicenseID, groupID)
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	if noop {
		return updated, nil
	}

	s.metrics.IncrementAdvanced(target.String())
	s.logAudit(ctx, audit.EventStageAdvanced, updated, "", "stage", target.String())
	return updated, nil
}

// Cancel cancels every open reservation and membership of the group,
// returning their quota and serials, then frees the license.
func (s *Service) Cancel(ctx context.Context, groupID id.ImportGroupID, actor id.UserID) (*models.ImportGroup, error) {
	var (
		updated   *models.ImportGroup
		cancelled resmodels.Outstanding
		noop      bool
	)
	err := s.locker.WithLock(ctx, lock.GroupKey(groupID.String()), func(ctx context.Context) error {
		current, err := s.Get(ctx, groupID)
		if err != nil {
			return err
		}
		if noop, err = current.CanAdvance(models.StageCancelled); err != nil || noop {
			updated = current
			return err
		}
		now := requestcontext.Now(ctx)
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if cancelled, err = s.reservations.CancelGroup(ctx, groupID); err != nil {
				return err
			}
			updated, err = s.store.Execute(ctx, groupID, func(g *models.ImportGroup) error {
				if _, err := g.CanAdvance(models.StageCancelled); err != nil {
					return err
				}
				g.ApplyAdvance(models.StageCancelled, actor, now)
				return nil
			})
			if err != nil {
				return translate(err)
			}
			return s.licenses.Free(ctx, updated.LicenseID, groupID)
		})
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return updated, nil
	}

	s.metrics.IncrementAdvanced(models.StageCancelled.String())
	s.logAudit(ctx, audit.EventGroupCancelled, updated, "",
		"cancelled_reservations", cancelled.Reservations,
		"cancelled_memberships", cancelled.Memberships,
	)
	return updated, nil
}

// RecordPlannedDate annotates a stage with its planned date. It does not
// affect transitions; StageAndAlerts reads it.
func (s *Service) RecordPlannedDate(ctx context.Context, groupID id.ImportGroupID, stage models.Stage, date time.Time) (*models.ImportGroup, error) {
	now := requestcontext.Now(ctx)
	g, err := s.store.Execute(ctx, groupID, func(g *models.ImportGroup) error {
		return g.SetPlannedDate(stage, date, now)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventPlannedDateSet, g, "", "stage", stage.String(), "planned_date", date.Format(time.DateOnly))
	return g, nil
}

// RecordArrivalEstimate stores the expected arrival date, which gates
// CUSTOMS_AGENT_NOTIFIED.
func (s *Service) RecordArrivalEstimate(ctx context.Context, groupID id.ImportGroupID, date time.Time) (*models.ImportGroup, error) {
	now := requestcontext.Now(ctx)
	g, err := s.store.Execute(ctx, groupID, func(g *models.ImportGroup) error {
		return g.SetArrivalEstimate(date, now)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventArrivalEstimated, g, "", "arrival_estimate", date.Format(time.DateOnly))
	return g, nil
}

// StageAndAlerts returns the current stage, history and overdue alerts as
// of today.
func (s *Service) StageAndAlerts(ctx context.Context, groupID id.ImportGroupID, today time.Time) (*models.StageSummary, error) {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &models.StageSummary{
		ImportGroupID:   g.ID,
		Stage:           g.Stage,
		History:         g.History,
		ArrivalEstimate: g.ArrivalEstimate,
		Alerts:          g.Alerts(today),
	}, nil
}

func (s *Service) Get(ctx context.Context, groupID id.ImportGroupID) (*models.ImportGroup, error) {
	g, err := s.store.FindByID(ctx, groupID)
	if err != nil {
		return nil, translate(err)
	}
	return g, nil
}

// Stage reports the group's current stage.
func (s *Service) Stage(ctx context.Context, groupID id.ImportGroupID) (models.Stage, error) {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return "", err
	}
	return g.Stage, nil
}

func (s *Service) List(ctx context.Context) ([]*models.ImportGroup, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list import groups")
	}
	return list, nil
}

func (s *Service) freeLicense(ctx context.Context, g *models.ImportGroup) {
	if err := s.licenses.Free(ctx, g.LicenseID, g.ID); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to free license after import group create failed",
			"license_id", g.LicenseID.String(),
			"import_group_id", g.ID.String(),
			"error", err,
		)
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "import group not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeInvalidState, "import group changed concurrently, retry")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "import group operation failed")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, g *models.ImportGroup, reason string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	args := append(attributes,
		"import_group_id", g.ID.String(),
		"current_stage", g.Stage.String(),
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
		Subject:       g.ID.String(),
		ImportGroupID: g.ID.String(),
		Reason:        reason,
		RequestID:     requestID,
		Details:       attrs.ToMap(attributes),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event.String(), "error", err)
	}
}
