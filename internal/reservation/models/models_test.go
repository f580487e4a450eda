package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newReservation(t *testing.T, quantity int) *Reservation {
	t.Helper()
	r, err := NewReservation(
		id.ReservationID(uuid.New()), id.ClientID(uuid.New()), id.VendorID(uuid.New()),
		id.WeaponModelID(uuid.New()), id.ImportGroupID(uuid.New()), id.CategoryCivil,
		quantity, decimal.RequireFromString("1250.50"), id.UserID(uuid.New()), now,
	)
	require.NoError(t, err)
	return r
}

func TestNewReservation(t *testing.T) {
	t.Run("starts reserved", func(t *testing.T) {
		r := newReservation(t, 2)
		assert.Equal(t, StateReserved, r.State)
		assert.True(t, r.Total().Equal(decimal.RequireFromString("2501.00")))
	})

	t.Run("quantity below one", func(t *testing.T) {
		_, err := NewReservation(id.ReservationID(uuid.New()), id.ClientID(uuid.New()), id.VendorID(uuid.New()),
			id.WeaponModelID(uuid.New()), id.ImportGroupID(uuid.New()), id.CategoryCivil, 0, decimal.Zero, id.UserID{}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := NewReservation(id.ReservationID(uuid.New()), id.ClientID(uuid.New()), id.VendorID(uuid.New()),
			id.WeaponModelID(uuid.New()), id.ImportGroupID(uuid.New()), id.CategoryCivil, 1, decimal.NewFromInt(-1), id.UserID{}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestReservationTransitions(t *testing.T) {
	t.Run("confirm is idempotent", func(t *testing.T) {
		r := newReservation(t, 1)
		noop, err := r.CanConfirm()
		require.NoError(t, err)
		assert.False(t, noop)
		r.ApplyConfirm(now)

		noop, err = r.CanConfirm()
		require.NoError(t, err)
		assert.True(t, noop)
	})

	t.Run("confirm from cancelled fails", func(t *testing.T) {
		r := newReservation(t, 1)
		r.ApplyCancel(now)
		_, err := r.CanConfirm()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("partly sold cancels and returns the unsold quantity", func(t *testing.T) {
		r := newReservation(t, 2)
		assert.NoError(t, r.CanCancel(0))
		assert.NoError(t, r.CanCancel(1))
		assert.Equal(t, 1, r.UnsoldQuantity(1))
		assert.Equal(t, 2, r.UnsoldQuantity(0))
	})

	t.Run("cancel blocked when fully sold or terminal", func(t *testing.T) {
		r := newReservation(t, 2)
		assert.True(t, dErrors.HasCode(r.CanCancel(2), dErrors.CodeInvalidState))
		assert.Zero(t, r.UnsoldQuantity(2))

		r.ApplyComplete(now)
		assert.True(t, dErrors.HasCode(r.CanCancel(0), dErrors.CodeInvalidState))
	})

	t.Run("bind stops at quantity", func(t *testing.T) {
		r := newReservation(t, 2)
		assert.NoError(t, r.CanBind(1))
		assert.True(t, dErrors.HasCode(r.CanBind(2), dErrors.CodeInvalidState))
	})

	t.Run("completion is derived from sold count", func(t *testing.T) {
		r := newReservation(t, 2)
		assert.False(t, r.ShouldComplete(1))
		assert.True(t, r.ShouldComplete(2))
		r.ApplyComplete(now)
		assert.NotNil(t, r.ConfirmedAt)
		assert.False(t, r.ShouldComplete(2), "already terminal")
	})
}

func TestMembershipTransitions(t *testing.T) {
	newMembership := func(t *testing.T) *Membership {
		m, err := NewMembership(id.MembershipID(uuid.New()), id.ImportGroupID(uuid.New()), id.ClientID(uuid.New()), now)
		require.NoError(t, err)
		return m
	}

	t.Run("walks forward one step at a time", func(t *testing.T) {
		m := newMembership(t)
		for _, target := range []MembershipState{MembershipApproved, MembershipConfirmed, MembershipCompleted} {
			noop, err := m.CanTransition(target)
			require.NoError(t, err, target)
			assert.False(t, noop)
			m.ApplyTransition(target, now)
		}
		assert.Equal(t, MembershipCompleted, m.State)
	})

	t.Run("cannot skip approval", func(t *testing.T) {
		m := newMembership(t)
		_, err := m.CanTransition(MembershipConfirmed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("cancel from any non-terminal state", func(t *testing.T) {
		m := newMembership(t)
		m.ApplyTransition(MembershipApproved, now)
		_, err := m.CanTransition(MembershipCancelled)
		assert.NoError(t, err)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		m := newMembership(t)
		m.ApplyTransition(MembershipCancelled, now)
		_, err := m.CanTransition(MembershipApproved)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

		noop, err := m.CanTransition(MembershipCancelled)
		assert.NoError(t, err)
		assert.True(t, noop)
	})
}
