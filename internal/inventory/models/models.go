package models

import (
	"time"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type UnitState string

const (
	StateAvailable UnitState = "AVAILABLE"
	StateBound     UnitState = "BOUND"
	StateSold      UnitState = "SOLD"
)

func (s UnitState) String() string { return string(s) }

// SerialUnit is one physical, serial-numbered weapon.
//
// Invariants:
//   - AVAILABLE -> BOUND -> SOLD; BOUND -> AVAILABLE is the only backward edge
//   - ReservationID is set exactly when State is BOUND or SOLD
//   - units are never deleted
type SerialUnit struct {
	Serial        id.SerialNumber   `json:"serial"`
	WeaponModelID id.WeaponModelID  `json:"weapon_model_id"`
	ImportGroupID *id.ImportGroupID `json:"import_group_id,omitempty"`
	State         UnitState         `json:"state"`
	ReservationID *id.ReservationID `json:"reservation_id,omitempty"`
	AssignedBy    *id.UserID        `json:"assigned_by,omitempty"`
	LoadedAt      time.Time         `json:"loaded_at"`
	BoundAt       *time.Time        `json:"bound_at,omitempty"`
	SoldAt        *time.Time        `json:"sold_at,omitempty"`
}

func NewSerialUnit(serial id.SerialNumber, modelID id.WeaponModelID, groupID *id.ImportGroupID, now time.Time) (*SerialUnit, error) {
	if serial == "" {
		return nil, dErrors.WithReason(dErrors.CodeInvalidInput, "empty_serial", "serial number cannot be empty")
	}
	if modelID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "weapon model is required")
	}
	return &SerialUnit{
		Serial:        serial,
		WeaponModelID: modelID,
		ImportGroupID: groupID,
		State:         StateAvailable,
		LoadedAt:      now,
	}, nil
}

// CanBind checks the unit may be bound to a reservation for expectedModel.
func (u *SerialUnit) CanBind(expectedModel id.WeaponModelID) error {
	if u.State != StateAvailable {
		return dErrors.Newf(dErrors.CodeInvalidState, "serial %s is %s, not AVAILABLE", u.Serial, u.State)
	}
	if u.WeaponModelID != expectedModel {
		return dErrors.Newf(dErrors.CodeModelMismatch, "serial %s belongs to a different weapon model", u.Serial)
	}
	return nil
}

func (u *SerialUnit) ApplyBind(reservationID id.ReservationID, assignor id.UserID, now time.Time) {
	u.State = StateBound
	u.ReservationID = &reservationID
	u.AssignedBy = &assignor
	u.BoundAt = &now
}

func (u *SerialUnit) CanRelease() error {
	if u.State != StateBound {
		return dErrors.Newf(dErrors.CodeInvalidState, "serial %s is %s, only BOUND units can be released", u.Serial, u.State)
	}
	return nil
}

func (u *SerialUnit) ApplyRelease() {
	u.State = StateAvailable
	u.ReservationID = nil
	u.AssignedBy = nil
	u.BoundAt = nil
}

func (u *SerialUnit) CanMarkSold() error {
	if u.State != StateBound {
		return dErrors.Newf(dErrors.CodeInvalidState, "serial %s is %s, only BOUND units can be sold", u.Serial, u.State)
	}
	return nil
}

func (u *SerialUnit) ApplyMarkSold(now time.Time) {
	u.State = StateSold
	u.SoldAt = &now
}

// StateCounts is the per-model dashboard breakdown.
type StateCounts struct {
	Available int `json:"available"`
	Bound     int `json:"bound"`
	Sold      int `json:"sold"`
}

func (c *StateCounts) Add(state UnitState) {
	switch state {
	case StateAvailable:
		c.Available++
	case StateBound:
		c.Bound++
	case StateSold:
		c.Sold++
	}
}

func (c StateCounts) Total() int { return c.Available + c.Bound + c.Sold }
