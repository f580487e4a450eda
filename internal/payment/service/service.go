package service

import (
	"context"
	"log/slog"

	invmodels "arsenal/internal/inventory/models"
	"arsenal/internal/payment/metrics"
	"arsenal/internal/payment/models"
	"arsenal/internal/platform/lock"
	resmodels "arsenal/internal/reservation/models"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type Inventory interface {
	Get(ctx context.Context, rawSerial string) (*invmodels.SerialUnit, error)
	MarkSold(ctx context.Context, rawSerial string) (*invmodels.SerialUnit, error)
}

type Reservations interface {
	Recompute(ctx context.Context, resID id.ReservationID) (*resmodels.Reservation, error)
}

// Service applies payment settlements: every listed unit is marked sold and
// the reservation is recomputed. It does not originate payments.
type Service struct {
	inventory    Inventory
	reservations Reservations
	locker       lock.Locker
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker shares the reservation ledger's locks so a settlement never
// interleaves with a cancellation of the same reservation.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(inventory Inventory, reservations Reservations, opts ...Option) *Service {
	s := &Service{inventory: inventory, reservations: reservations, locker: lock.NewKeyed(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle is safe to redeliver: units already sold to the same reservation are
// skipped. A unit bound elsewhere fails the settlement with model_mismatch
// before anything is sold. It runs under the reservation lock.
func (s *Service) Settle(ctx context.Context, st *models.Settlement) (*resmodels.Reservation, error) {
	var (
		r    *resmodels.Reservation
		sold int
	)
	err := s.locker.WithLock(ctx, lock.ReservationKey(st.ReservationID.String()), func(ctx context.Context) error {
		var err error
		sold, err = s.markSold(ctx, st)
		if err != nil {
			return err
		}
		r, err = s.reservations.Recompute(ctx, st.ReservationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddUnitsSold(sold)
	s.logger.InfoContext(ctx, "payment settled",
		"reservation_id", st.ReservationID.String(),
		"units_sold", sold,
		"reservation_state", r.State.String(),
	)
	return r, nil
}

func (s *Service) markSold(ctx context.Context, st *models.Settlement) (int, error) {
	pending := make([]string, 0, len(st.Serials))
	for _, serial := range st.Serials {
		unit, err := s.inventory.Get(ctx, serial)
		if err != nil {
			return 0, err
		}
		if unit.ReservationID == nil || *unit.ReservationID != st.ReservationID {
			return 0, dErrors.Newf(dErrors.CodeModelMismatch,
				"serial %s is not bound to reservation %s", serial, st.ReservationID)
		}
		if unit.State == invmodels.StateSold {
			continue
		}
		pending = append(pending, serial)
	}

	for _, serial := range pending {
		if _, err := s.inventory.MarkSold(ctx, serial); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}
