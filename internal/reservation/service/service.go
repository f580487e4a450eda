package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	catalogmodels "arsenal/internal/catalog/models"
	invmodels "arsenal/internal/inventory/models"
	"arsenal/internal/platform/lock"
	quotamodels "arsenal/internal/quota/models"
	"arsenal/internal/reservation/metrics"
	"arsenal/internal/reservation/models"
	wfmodels "arsenal/internal/workflow/models"
	"arsenal/pkg/attrs"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/platform/tx"
	"arsenal/pkg/requestcontext"
)

var tracer = otel.Tracer("arsenal/reservation")

type Store interface {
	Create(ctx context.Context, r *models.Reservation) error
	FindByID(ctx context.Context, resID id.ReservationID) (*models.Reservation, error)
	Execute(ctx context.Context, resID id.ReservationID, validate func(*models.Reservation) error, mutate func(*models.Reservation)) (*models.Reservation, error)
	ListByGroup(ctx context.Context, groupID id.ImportGroupID) ([]*models.Reservation, error)
	CountOutstanding(ctx context.Context, groupID id.ImportGroupID) (int, error)
}

type MembershipStore interface {
	CreateMembership(ctx context.Context, m *models.Membership) error
	FindMembership(ctx context.Context, mID id.MembershipID) (*models.Membership, error)
	ExecuteMembership(ctx context.Context, mID id.MembershipID, validate func(*models.Membership) error, mutate func(*models.Membership)) (*models.Membership, error)
	ListMemberships(ctx context.Context, groupID id.ImportGroupID) ([]*models.Membership, error)
	CountOutstandingMemberships(ctx context.Context, groupID id.ImportGroupID) (int, error)
}

type Quota interface {
	Admit(ctx context.Context, groupID id.ImportGroupID, category id.QuotaCategory, vendor id.VendorID, quantity int) (*quotamodels.Admission, error)
	Release(ctx context.Context, groupID id.ImportGroupID, category id.QuotaCategory, vendor id.VendorID, quantity int) error
}

type Inventory interface {
	Bind(ctx context.Context, serial string, reservationID id.ReservationID, assignor id.UserID) (*invmodels.SerialUnit, error)
	Release(ctx context.Context, serial string) (*invmodels.SerialUnit, error)
	ListByReservation(ctx context.Context, reservationID id.ReservationID) ([]*invmodels.SerialUnit, error)
}

type Catalog interface {
	FindByID(ctx context.Context, modelID id.WeaponModelID) (*catalogmodels.WeaponModel, error)
}

// ClientDirectory resolves the quota category a client is counted under.
type ClientDirectory interface {
	Category(ctx context.Context, clientID id.ClientID) (id.QuotaCategory, error)
}

// Groups reports the current stage of an import group.
type Groups interface {
	Stage(ctx context.Context, groupID id.ImportGroupID) (wfmodels.Stage, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the reservation ledger. It is the only writer of reservation
// and membership rows.
type Service struct {
	store          Store
	memberships    MembershipStore
	quota          Quota
	inventory      Inventory
	catalog        Catalog
	clients        ClientDirectory
	groups         Groups
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

// WithTxRunner makes multi-store operations atomic. Without it a failed
// create compensates by releasing its quota admission.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
		s.atomic = true
	}
}

func New(store Store, memberships MembershipStore, quota Quota, inventory Inventory, catalog Catalog, clients ClientDirectory, opts ...Option) *Service {
	s := &Service{
		store:       store,
		memberships: memberships,
		quota:       quota,
		inventory:   inventory,
		catalog:     catalog,
		clients:     clients,
		locker:      lock.NewKeyed(),
		tx:          tx.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetGroups breaks the construction cycle with the import group workflow,
// which cancels and counts through this service. Without it the group stage
// is not checked.
func (s *Service) SetGroups(g Groups) {
	s.groups = g
}

// requireOpenGroup rejects work against COMPLETED or CANCELLED groups. Callers
// hold the group lock so the stage cannot move underneath them.
func (s *Service) requireOpenGroup(ctx context.Context, groupID id.ImportGroupID) error {
	if s.groups == nil {
		return nil
	}
	stage, err := s.groups.Stage(ctx, groupID)
	if err != nil {
		return err
	}
	if stage.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidState, "import group is %s", stage)
	}
	return nil
}

// CreateParams describes a new reservation. VendorID defaults to the vendor
// in context and a zero UnitPrice to the model's reference price.
type CreateParams struct {
	ClientID      id.ClientID
	WeaponModelID id.WeaponModelID
	ImportGroupID id.ImportGroupID
	VendorID      *id.VendorID
	Quantity      int
	UnitPrice     decimal.Decimal
}

// Create admits the quantity against the group's quota and persists the
// reservation as RESERVED. A quota rejection carries the exceeded dimension.
// The group lock is held across the stage check and the admission so a
// concurrent completion either sees the reservation or rejects it.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("import_group_id", p.ImportGroupID.String()),
		attribute.Int("quantity", p.Quantity),
	)

	if p.Quantity < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	category, err := s.clients.Category(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}
	model, err := s.catalog.FindByID(ctx, p.WeaponModelID)
	if err != nil {
		return nil, err
	}
	vendor := requestcontext.VendorID(ctx)
	if p.VendorID != nil {
		vendor = *p.VendorID
	}
	if vendor.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "vendor is required")
	}
	price := p.UnitPrice
	if price.IsZero() {
		price = model.ReferencePrice
	}

	r, err := models.NewReservation(id.ReservationID(uuid.New()), p.ClientID, vendor, p.WeaponModelID, p.ImportGroupID,
		category, p.Quantity, price, requestcontext.ActorID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	admitted := false
	err = s.locker.WithLock(ctx, lock.GroupKey(r.ImportGroupID.String()), func(ctx context.Context) error {
		if err := s.requireOpenGroup(ctx, r.ImportGroupID); err != nil {
			return err
		}
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.quota.Admit(ctx, r.ImportGroupID, r.Category, r.VendorID, r.Quantity); err != nil {
				return err
			}
			admitted = true
			if err := s.store.Create(ctx, r); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist reservation")
			}
			return nil
		})
	})
	if err != nil {
		if admitted && !s.atomic {
			s.compensateAdmission(ctx, r)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}

	s.metrics.IncrementTransition(models.StateReserved.String())
	s.metrics.AddUnitsReserved(r.Quantity)
	s.logAudit(ctx, audit.EventReservationCreated, r,
		"client_id", r.ClientID.String(),
		"weapon_model_id", r.WeaponModelID.String(),
		"quantity", r.Quantity,
		"unit_price", r.UnitPrice.String(),
	)
	return r, nil
}

func (s *Service) compensateAdmission(ctx context.Context, r *models.Reservation) {
	if err := s.quota.Release(ctx, r.ImportGroupID, r.Category, r.VendorID, r.Quantity); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to release quota after reservation create failed",
			"reservation_id", r.ID.String(),
			"import_group_id", r.ImportGroupID.String(),
			"error", err,
		)
	}
}

// Confirm moves RESERVED to CONFIRMED. Confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	now := requestcontext.Now(ctx)
	var noop bool
	r, err := s.store.Execute(ctx, resID,
		func(r *models.Reservation) error {
			var err error
			noop, err = r.CanConfirm()
			return err
		},
		func(r *models.Reservation) {
			if !noop {
				r.ApplyConfirm(now)
			}
		},
	)
	if err != nil {
		return nil, translate(err, "reservation not found")
	}
	if !noop {
		s.metrics.IncrementTransition(models.StateConfirmed.String())
		s.logAudit(ctx, audit.EventReservationConfirmed, r)
	}
	return r, nil
}

// Cancel releases every bound unit and returns the unsold part of the quota
// the reservation consumed. Sold units stay sold. Terminal or fully sold
// reservations cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	var cancelled *models.Reservation
	err := s.locker.WithLock(ctx, lock.ReservationKey(resID.String()), func(ctx context.Context) error {
		var err error
		cancelled, err = s.cancelLocked(ctx, resID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *Service) cancelLocked(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	units, err := s.inventory.ListByReservation(ctx, resID)
	if err != nil {
		return nil, err
	}
	sold := countState(units, invmodels.StateSold)
	now := requestcontext.Now(ctx)

	var cancelled *models.Reservation
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.store.Execute(ctx, resID,
			func(r *models.Reservation) error { return r.CanCancel(sold) },
			func(r *models.Reservation) { r.ApplyCancel(now) },
		)
		if err != nil {
			return translate(err, "reservation not found")
		}
		for _, u := range units {
			if u.State != invmodels.StateBound {
				continue
			}
			if _, err := s.inventory.Release(ctx, u.Serial.String()); err != nil {
				return err
			}
		}
		if err := s.quota.Release(ctx, r.ImportGroupID, r.Category, r.VendorID, r.UnsoldQuantity(sold)); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(models.StateCancelled.String())
	s.logAudit(ctx, audit.EventReservationCancelled, cancelled,
		"released_units", countState(units, invmodels.StateBound),
		"sold_units", sold,
		"released_quota", cancelled.UnsoldQuantity(sold),
	)
	return cancelled, nil
}

// BindResult reports binding progress after one serial is attached.
type BindResult struct {
	Unit      *invmodels.SerialUnit `json:"unit"`
	Bound     int                   `json:"bound"`
	Remaining int                   `json:"remaining"`
}

// FullyBound reports whether every reserved unit now has a serial.
func (b *BindResult) FullyBound() bool { return b.Remaining == 0 }

// BindNextSerial attaches one more serial to the reservation. Holding the
// reservation lock keeps the bound count from ever exceeding the quantity.
// It never completes the reservation; see Recompute.
func (s *Service) BindNextSerial(ctx context.Context, resID id.ReservationID, serial string, assignor id.UserID) (*BindResult, error) {
	var result *BindResult
	err := s.locker.WithLock(ctx, lock.ReservationKey(resID.String()), func(ctx context.Context) error {
		r, err := s.store.FindByID(ctx, resID)
		if err != nil {
			return translate(err, "reservation not found")
		}
		units, err := s.inventory.ListByReservation(ctx, resID)
		if err != nil {
			return err
		}
		if err := r.CanBind(len(units)); err != nil {
			return err
		}
		unit, err := s.inventory.Bind(ctx, serial, resID, assignor)
		if err != nil {
			return err
		}
		bound := len(units) + 1
		result = &BindResult{Unit: unit, Bound: bound, Remaining: r.Quantity - bound}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Recompute derives COMPLETED once Quantity units are bound and sold. It is
// safe to call after any serial or payment event.
func (s *Service) Recompute(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	r, err := s.store.FindByID(ctx, resID)
	if err != nil {
		return nil, translate(err, "reservation not found")
	}
	units, err := s.inventory.ListByReservation(ctx, resID)
	if err != nil {
		return nil, err
	}
	sold := countState(units, invmodels.StateSold)
	if !r.ShouldComplete(sold) {
		return r, nil
	}

	now := requestcontext.Now(ctx)
	changed := false
	r, err = s.store.Execute(ctx, resID,
		func(*models.Reservation) error { return nil },
		func(r *models.Reservation) {
			if r.ShouldComplete(sold) {
				r.ApplyComplete(now)
				changed = true
			}
		},
	)
	if err != nil {
		return nil, translate(err, "reservation not found")
	}
	if changed {
		s.metrics.IncrementTransition(models.StateCompleted.String())
		s.logAudit(ctx, audit.EventReservationCompleted, r, "sold_units", sold)
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, resID id.ReservationID) (*models.Reservation, error) {
	r, err := s.store.FindByID(ctx, resID)
	if err != nil {
		return nil, translate(err, "reservation not found")
	}
	return r, nil
}

// WeaponModelOf lets the inventory check a serial matches the reservation.
func (s *Service) WeaponModelOf(ctx context.Context, resID id.ReservationID) (id.WeaponModelID, error) {
	r, err := s.Get(ctx, resID)
	if err != nil {
		return id.WeaponModelID{}, err
	}
	return r.WeaponModelID, nil
}

func (s *Service) ListByGroup(ctx context.Context, groupID id.ImportGroupID) ([]*models.Reservation, error) {
	list, err := s.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reservations")
	}
	return list, nil
}

// OutstandingCount counts non-terminal reservations and memberships.
func (s *Service) OutstandingCount(ctx context.Context, groupID id.ImportGroupID) (models.Outstanding, error) {
	var out models.Outstanding
	var err error
	if out.Reservations, err = s.store.CountOutstanding(ctx, groupID); err != nil {
		return models.Outstanding{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count reservations")
	}
	if out.Memberships, err = s.memberships.CountOutstandingMemberships(ctx, groupID); err != nil {
		return models.Outstanding{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count memberships")
	}
	return out, nil
}

// CancelGroup cancels every non-terminal reservation and membership of a
// group. Reservations whose units are all sold complete instead.
func (s *Service) CancelGroup(ctx context.Context, groupID id.ImportGroupID) (models.Outstanding, error) {
	reservations, err := s.ListByGroup(ctx, groupID)
	if err != nil {
		return models.Outstanding{}, err
	}

	var done models.Outstanding
	for _, r := range reservations {
		if !r.IsOutstanding() {
			continue
		}
		current, err := s.Recompute(ctx, r.ID)
		if err != nil {
			return done, err
		}
		if !current.IsOutstanding() {
			continue
		}
		if _, err := s.Cancel(ctx, r.ID); err != nil {
			return done, err
		}
		done.Reservations++
	}
	members, err := s.ListMembers(ctx, groupID)
	if err != nil {
		return done, err
	}
	for _, m := range members {
		if m.State.IsTerminal() {
			continue
		}
		if _, err := s.CancelMember(ctx, m.ID); err != nil {
			return done, err
		}
		done.Memberships++
	}
	return done, nil
}

func countState(units []*invmodels.SerialUnit, state invmodels.UnitState) int {
	n := 0
	for _, u := range units {
		if u.State == state {
			n++
		}
	}
	return n
}

func translate(err error, notFound string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeInvalidState, "modified concurrently, retry")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "already exists")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "reservation operation failed")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, r *models.Reservation, attributes ...any) {
	s.emit(ctx, event, r.ID.String(), r.ImportGroupID, append(attributes, "state", r.State.String())...)
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, subject string, groupID id.ImportGroupID, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	args := append(attributes,
		"subject", subject,
		"import_group_id", groupID.String(),
		"event", event.String(),
		"log_type", "audit",
	)
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
		Subject:       subject,
		ImportGroupID: groupID.String(),
		RequestID:     requestID,
		Details:       attrs.ToMap(attributes),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event.String(), "error", err)
	}
}
