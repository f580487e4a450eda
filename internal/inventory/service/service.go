package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	catalogmodels "arsenal/internal/catalog/models"
	"arsenal/internal/inventory/metrics"
	"arsenal/internal/inventory/models"
	"arsenal/pkg/attrs"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/sentinel"
	"arsenal/pkg/requestcontext"
)

var tracer = otel.Tracer("arsenal/inventory")

type Store interface {
	Create(ctx context.Context, unit *models.SerialUnit) error
	FindBySerial(ctx context.Context, serial id.SerialNumber) (*models.SerialUnit, error)
	Exists(ctx context.Context, serial id.SerialNumber) (bool, error)
	Execute(ctx context.Context, serial id.SerialNumber, validate func(*models.SerialUnit) error, mutate func(*models.SerialUnit)) (*models.SerialUnit, error)
	ListAvailable(ctx context.Context, modelID id.WeaponModelID, groupID *id.ImportGroupID) ([]*models.SerialUnit, error)
	ListByReservation(ctx context.Context, reservationID id.ReservationID) ([]*models.SerialUnit, error)
	StatsByModel(ctx context.Context) (map[id.WeaponModelID]models.StateCounts, error)
}

type Catalog interface {
	FindByID(ctx context.Context, modelID id.WeaponModelID) (*catalogmodels.WeaponModel, error)
}

// Reservations tells the store which weapon model a reservation is for.
type Reservations interface {
	WeaponModelOf(ctx context.Context, reservationID id.ReservationID) (id.WeaponModelID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the only writer of serial unit rows.
type Service struct {
	store          Store
	catalog        Catalog
	reservations   Reservations
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

func New(store Store, catalog Catalog, opts ...Option) *Service {
	s := &Service{store: store, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReservations breaks the construction cycle with the reservation ledger,
// which itself binds through this service.
func (s *Service) SetReservations(r Reservations) {
	s.reservations = r
}

// LoadUnit registers a physical unit as AVAILABLE. Serials are unique across
// the whole store regardless of model.
func (s *Service) LoadUnit(ctx context.Context, rawSerial string, modelID id.WeaponModelID, groupID *id.ImportGroupID) (*models.SerialUnit, error) {
	serial, err := id.ParseSerialNumber(rawSerial)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.FindByID(ctx, modelID); err != nil {
		return nil, err
	}
	unit, err := models.NewSerialUnit(serial, modelID, groupID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, unit); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.WithReason(dErrors.CodeDuplicateSerial, "duplicate_serial", "serial "+serial.String()+" already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load serial unit")
	}
	s.metrics.IncrementLoaded()
	s.logAudit(ctx, audit.EventSerialLoaded, unit, "weapon_model_id", modelID.String())
	return unit, nil
}

// Bind attaches an AVAILABLE unit to a reservation for the same weapon model.
// Of two concurrent binds on one serial exactly one succeeds.
func (s *Service) Bind(ctx context.Context, rawSerial string, reservationID id.ReservationID, assignor id.UserID) (*models.SerialUnit, error) {
	ctx, span := tracer.Start(ctx, "inventory.Bind")
	defer span.End()

	serial := id.NormalizeSerial(rawSerial)
	span.SetAttributes(attribute.String("serial", serial.String()), attribute.String("reservation_id", reservationID.String()))

	if s.reservations == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "reservation lookup not configured")
	}
	expectedModel, err := s.reservations.WeaponModelOf(ctx, reservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation lookup failed")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	unit, err := s.store.Execute(ctx, serial,
		func(u *models.SerialUnit) error { return u.CanBind(expectedModel) },
		func(u *models.SerialUnit) { u.ApplyBind(reservationID, assignor, now) },
	)
	if err != nil {
		err = s.translate(err, serial)
		s.metrics.IncrementTransition("bind", string(dErrors.CodeOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.IncrementTransition("bind", "ok")
	s.logAudit(ctx, audit.EventSerialBound, unit, "reservation_id", reservationID.String())
	return unit, nil
}

func (s *Service) Release(ctx context.Context, rawSerial string) (*models.SerialUnit, error) {
	serial := id.NormalizeSerial(rawSerial)
	var previous id.ReservationID
	unit, err := s.store.Execute(ctx, serial,
		func(u *models.SerialUnit) error { return u.CanRelease() },
		func(u *models.SerialUnit) {
			previous = *u.ReservationID
			u.ApplyRelease()
		},
	)
	if err != nil {
		err = s.translate(err, serial)
		s.metrics.IncrementTransition("release", string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.IncrementTransition("release", "ok")
	s.logAudit(ctx, audit.EventSerialReleased, unit, "reservation_id", previous.String())
	return unit, nil
}

// MarkSold is irreversible.
func (s *Service) MarkSold(ctx context.Context, rawSerial string) (*models.SerialUnit, error) {
	serial := id.NormalizeSerial(rawSerial)
	now := requestcontext.Now(ctx)
	unit, err := s.store.Execute(ctx, serial,
		func(u *models.SerialUnit) error { return u.CanMarkSold() },
		func(u *models.SerialUnit) { u.ApplyMarkSold(now) },
	)
	if err != nil {
		err = s.translate(err, serial)
		s.metrics.IncrementTransition("sold", string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.IncrementTransition("sold", "ok")
	s.logAudit(ctx, audit.EventSerialSold, unit)
	return unit, nil
}

func (s *Service) Get(ctx context.Context, rawSerial string) (*models.SerialUnit, error) {
	serial := id.NormalizeSerial(rawSerial)
	unit, err := s.store.FindBySerial(ctx, serial)
	if err != nil {
		return nil, s.translate(err, serial)
	}
	return unit, nil
}

// Exists reports whether a normalized serial is already loaded.
func (s *Service) Exists(ctx context.Context, serial id.SerialNumber) (bool, error) {
	ok, err := s.store.Exists(ctx, serial)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check serial")
	}
	return ok, nil
}

// ListAvailable optionally narrows to units from one import batch.
func (s *Service) ListAvailable(ctx context.Context, modelID id.WeaponModelID, groupID *id.ImportGroupID) ([]*models.SerialUnit, error) {
	units, err := s.store.ListAvailable(ctx, modelID, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list available units")
	}
	return units, nil
}

func (s *Service) ListByReservation(ctx context.Context, reservationID id.ReservationID) ([]*models.SerialUnit, error) {
	units, err := s.store.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reservation units")
	}
	return units, nil
}

func (s *Service) StatsByModel(ctx context.Context) (map[id.WeaponModelID]models.StateCounts, error) {
	stats, err := s.store.StatsByModel(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute serial stats")
	}
	return stats, nil
}

func (s *Service) translate(err error, serial id.SerialNumber) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "serial "+serial.String()+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeInvalidState, "serial "+serial.String()+" was modified concurrently")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "serial unit operation failed")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, unit *models.SerialUnit, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.ActorID(ctx)
	args := append(attributes,
		"serial", unit.Serial.String(),
		"state", unit.State.String(),
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
	e := audit.Event{
		Action:    event.String(),
		ActorID:   actor,
		Subject:   unit.Serial.String(),
		RequestID: requestID,
		Details:   attrs.ToMap(attributes),
	}
	if unit.ImportGroupID != nil {
		e.ImportGroupID = unit.ImportGroupID.String()
	}
	if err := s.auditPublisher.Emit(ctx, e); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event.String(), "error", err)
	}
}
