package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type State string

const (
	StateReserved  State = "RESERVED"
	StateConfirmed State = "CONFIRMED"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
)

func (s State) String() string { return string(s) }

func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Reservation is a client's claim on Quantity units of one weapon model.
// Category and VendorID are the quota dimensions it was admitted under and are
// fixed for its lifetime so cancellation returns exactly what it took.
//
// Invariants:
//   - Quantity >= 1, UnitPrice >= 0
//   - bound serial units never exceed Quantity
//   - COMPLETED only when Quantity units are bound and SOLD
type Reservation struct {
	ID            id.ReservationID `json:"id"`
	ClientID      id.ClientID      `json:"client_id"`
	VendorID      id.VendorID      `json:"vendor_id"`
	WeaponModelID id.WeaponModelID `json:"weapon_model_id"`
	ImportGroupID id.ImportGroupID `json:"import_group_id"`
	Category      id.QuotaCategory `json:"category"`
	Quantity      int              `json:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	State         State            `json:"state"`
	CreatedBy     id.UserID        `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	ConfirmedAt   *time.Time       `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// NewReservation validates and builds a RESERVED reservation.
func NewReservation(
	resID id.ReservationID,
	clientID id.ClientID,
	vendorID id.VendorID,
	modelID id.WeaponModelID,
	groupID id.ImportGroupID,
	category id.QuotaCategory,
	quantity int,
	unitPrice decimal.Decimal,
	createdBy id.UserID,
	now time.Time,
) (*Reservation, error) {
	if quantity < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "unit price cannot be negative")
	}
	if clientID.IsNil() || modelID.IsNil() || groupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "client, weapon model and import group are required")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid client category")
	}
	return &Reservation{
		ID:            resID,
		ClientID:      clientID,
		VendorID:      vendorID,
		WeaponModelID: modelID,
		ImportGroupID: groupID,
		Category:      category,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		State:         StateReserved,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Total is quantity times unit price.
func (r *Reservation) Total() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

// IsOutstanding reports whether the reservation still blocks group completion.
func (r *Reservation) IsOutstanding() bool {
	return !r.State.IsTerminal()
}

// CanConfirm returns noop=true when the reservation is already CONFIRMED.
func (r *Reservation) CanConfirm() (noop bool, err error) {
	switch r.State {
	case StateReserved:
		return false, nil
	case StateConfirmed:
		return true, nil
	default:
		return false, dErrors.Newf(dErrors.CodeInvalidState, "reservation is %s and cannot be confirmed", r.State)
	}
}

func (r *Reservation) ApplyConfirm(now time.Time) {
	r.State = StateConfirmed
	r.ConfirmedAt = &now
	r.UpdatedAt = now
}

// CanCancel allows RESERVED and CONFIRMED. Sold units stay sold, so a
// reservation whose every unit is sold must complete instead.
func (r *Reservation) CanCancel(soldUnits int) error {
	if r.State != StateReserved && r.State != StateConfirmed {
		return dErrors.Newf(dErrors.CodeInvalidState, "reservation is %s and cannot be cancelled", r.State)
	}
	if soldUnits >= r.Quantity {
		return dErrors.New(dErrors.CodeInvalidState, "reservation is fully sold and cannot be cancelled")
	}
	return nil
}

// UnsoldQuantity is the quota a cancellation returns.
func (r *Reservation) UnsoldQuantity(soldUnits int) int {
	if soldUnits >= r.Quantity {
		return 0
	}
	return r.Quantity - soldUnits
}

func (r *Reservation) ApplyCancel(now time.Time) {
	r.State = StateCancelled
	r.CancelledAt = &now
	r.UpdatedAt = now
}

// CanBind checks a further serial may be bound given how many already are.
func (r *Reservation) CanBind(boundUnits int) error {
	if r.State != StateReserved && r.State != StateConfirmed {
		return dErrors.Newf(dErrors.CodeInvalidState, "reservation is %s, serials cannot be bound", r.State)
	}
	if boundUnits >= r.Quantity {
		return dErrors.Newf(dErrors.CodeInvalidState, "reservation already has all %d units bound", r.Quantity)
	}
	return nil
}

// ShouldComplete derives completion from unit state.
func (r *Reservation) ShouldComplete(soldUnits int) bool {
	return !r.State.IsTerminal() && soldUnits >= r.Quantity
}

// ApplyComplete marks the reservation COMPLETED. A RESERVED reservation that
// was paid in full is treated as confirmed at the same instant.
func (r *Reservation) ApplyComplete(now time.Time) {
	if r.ConfirmedAt == nil {
		r.ConfirmedAt = &now
	}
	r.State = StateCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// Outstanding counts what still blocks an import group from completing.
type Outstanding struct {
	Reservations int `json:"reservations"`
	Memberships  int `json:"memberships"`
}

func (o Outstanding) Total() int { return o.Reservations + o.Memberships }
