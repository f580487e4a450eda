package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	catalogservice "arsenal/internal/catalog/service"
	catalogstore "arsenal/internal/catalog/store"
	invmodels "arsenal/internal/inventory/models"
	invservice "arsenal/internal/inventory/service"
	invstore "arsenal/internal/inventory/store"
	"arsenal/internal/payment/models"
	"arsenal/internal/platform/lock"
	quotamodels "arsenal/internal/quota/models"
	quotaservice "arsenal/internal/quota/service"
	quotastore "arsenal/internal/quota/store"
	resmodels "arsenal/internal/reservation/models"
	resservice "arsenal/internal/reservation/service"
	resstore "arsenal/internal/reservation/store"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/requestcontext"
)

type PaymentServiceSuite struct {
	suite.Suite
	ctx          context.Context
	service      *Service
	inventory    *invservice.Service
	reservations *resservice.Service
	quota        *quotaservice.Service
	locker       *lock.Keyed
	reservation  *resmodels.Reservation
	group        id.ImportGroupID
	actor        id.UserID
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.actor = id.UserID(uuid.New())
	s.ctx = requestcontext.WithActorID(context.Background(), s.actor)

	catalog := catalogservice.New(catalogstore.NewInMemory())
	m, err := catalog.Register(s.ctx, "M1", "Model One", "9mm", id.CategoryCivil, decimal.NewFromInt(500))
	s.Require().NoError(err)
	client := id.ClientID(uuid.New())
	s.Require().NoError(catalog.SetClientCategory(s.ctx, client, id.CategoryCivil))

	group := id.ImportGroupID(uuid.New())
	s.group = group
	s.locker = lock.NewKeyed()
	s.quota = quotaservice.New(quotastore.NewInMemory(), quotaservice.WithLocker(s.locker))
	_, err = s.quota.Configure(s.ctx, group, quotamodels.GroupTypeQuota, quotamodels.Limits{Total: 5})
	s.Require().NoError(err)

	s.inventory = invservice.New(invstore.NewInMemory(), catalog)
	rs := resstore.NewInMemory()
	s.reservations = resservice.New(rs, rs, s.quota, s.inventory, catalog, catalog, resservice.WithLocker(s.locker))
	s.inventory.SetReservations(s.reservations)

	for _, serial := range []string{"SN-1", "SN-2", "SN-3"} {
		_, err := s.inventory.LoadUnit(s.ctx, serial, m.ID, &group)
		s.Require().NoError(err)
	}
	s.reservation, err = s.reservations.Create(s.ctx, resservice.CreateParams{
		ClientID: client, WeaponModelID: m.ID, ImportGroupID: group, Quantity: 2,
	})
	s.Require().NoError(err)
	for _, serial := range []string{"SN-1", "SN-2"} {
		_, err := s.reservations.BindNextSerial(s.ctx, s.reservation.ID, serial, s.actor)
		s.Require().NoError(err)
	}

	s.service = New(s.inventory, s.reservations, WithLocker(s.locker))
}

func (s *PaymentServiceSuite) unitState(serial string) invmodels.UnitState {
	u, err := s.inventory.Get(s.ctx, serial)
	s.Require().NoError(err)
	return u.State
}

func (s *PaymentServiceSuite) remainingTotal() int {
	r, err := s.quota.Remaining(s.ctx, s.group)
	s.Require().NoError(err)
	return r.Total
}

// =============================================================================
// Settle
// =============================================================================

func (s *PaymentServiceSuite) TestSettle() {
	s.Run("full payment completes the reservation", func() {
		s.SetupTest()
		r, err := s.service.Settle(s.ctx, &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-1", "SN-2"}})
		s.Require().NoError(err)
		s.Equal(resmodels.StateCompleted, r.State)

		u, err := s.inventory.Get(s.ctx, "SN-1")
		s.Require().NoError(err)
		s.Equal(invmodels.StateSold, u.State)
	})

	s.Run("partial payment leaves the reservation open and redelivery is harmless", func() {
		s.SetupTest()
		st := &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-1"}}
		r, err := s.service.Settle(s.ctx, st)
		s.Require().NoError(err)
		s.Equal(resmodels.StateReserved, r.State)

		_, err = s.service.Settle(s.ctx, st)
		s.Require().NoError(err)
	})

	s.Run("serial bound elsewhere sells nothing", func() {
		s.SetupTest()
		_, err := s.service.Settle(s.ctx, &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-1", "SN-3"}})
		s.True(dErrors.HasCode(err, dErrors.CodeModelMismatch))

		u, err := s.inventory.Get(s.ctx, "SN-1")
		s.Require().NoError(err)
		s.Equal(invmodels.StateBound, u.State)
	})

	s.Run("unknown serial", func() {
		s.SetupTest()
		_, err := s.service.Settle(s.ctx, &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-404"}})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("waits for the reservation lock", func() {
		s.SetupTest()
		held := make(chan struct{})
		release := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.locker.WithLock(s.ctx, lock.ReservationKey(s.reservation.ID.String()), func(context.Context) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
		defer cancel()
		_, err := s.service.Settle(ctx, &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-1"}})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.Equal(invmodels.StateBound, s.unitState("SN-1"))

		close(release)
		wg.Wait()
	})

	s.Run("settlement after cancellation sells nothing", func() {
		s.SetupTest()
		_, err := s.reservations.Cancel(s.ctx, s.reservation.ID)
		s.Require().NoError(err)

		_, err = s.service.Settle(s.ctx, &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-1"}})
		s.True(dErrors.HasCode(err, dErrors.CodeModelMismatch))
		s.Equal(invmodels.StateAvailable, s.unitState("SN-1"))
		s.Equal(5, s.remainingTotal())
	})

	s.Run("concurrent cancellation keeps quota and units consistent", func() {
		for range 20 {
			s.SetupTest()
			var (
				wg        sync.WaitGroup
				cancelErr error
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = s.service.Settle(s.ctx, &models.Settlement{ReservationID: s.reservation.ID, Serials: []string{"SN-1"}})
			}()
			go func() {
				defer wg.Done()
				_, cancelErr = s.reservations.Cancel(s.ctx, s.reservation.ID)
			}()
			wg.Wait()

			s.Require().NoError(cancelErr)
			r, err := s.reservations.Get(s.ctx, s.reservation.ID)
			s.Require().NoError(err)
			s.Equal(resmodels.StateCancelled, r.State)
			s.Equal(invmodels.StateAvailable, s.unitState("SN-2"))

			sold := 0
			if s.unitState("SN-1") == invmodels.StateSold {
				sold = 1
			}
			s.Equal(5-sold, s.remainingTotal())
		}
	})
}
