package models

import (
	"strings"
	"time"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type Status string

const (
	StatusFree     Status = "FREE"
	StatusOccupied Status = "OCCUPIED"
)

func (s Status) String() string { return string(s) }

// License is an external import permit. Only its occupation is tracked here:
// OCCUPIED exactly when ImportGroupID names the one active group using it.
type License struct {
	ID            id.LicenseID      `json:"id"`
	Number        string            `json:"number"`
	Status        Status            `json:"status"`
	ImportGroupID *id.ImportGroupID `json:"import_group_id,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func NewLicense(licenseID id.LicenseID, number string, now time.Time) (*License, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "license number is required")
	}
	return &License{ID: licenseID, Number: number, Status: StatusFree, UpdatedAt: now}, nil
}

// CanBind allows a FREE license, or a re-bind to the group already holding it.
func (l *License) CanBind(groupID id.ImportGroupID) error {
	if l.Status == StatusOccupied {
		if l.ImportGroupID != nil && *l.ImportGroupID == groupID {
			return nil
		}
		return dErrors.WithReason(dErrors.CodeConflict, "license_occupied", "license "+l.Number+" is bound to another active import group")
	}
	return nil
}

func (l *License) ApplyBind(groupID id.ImportGroupID, now time.Time) {
	l.Status = StatusOccupied
	l.ImportGroupID = &groupID
	l.UpdatedAt = now
}

// CanFree rejects freeing a license held by a different group. Freeing an
// already FREE license is allowed.
func (l *License) CanFree(groupID id.ImportGroupID) error {
	if l.Status == StatusOccupied && (l.ImportGroupID == nil || *l.ImportGroupID != groupID) {
		return dErrors.New(dErrors.CodeInvalidState, "license "+l.Number+" is held by another import group")
	}
	return nil
}

func (l *License) ApplyFree(now time.Time) {
	l.Status = StatusFree
	l.ImportGroupID = nil
	l.UpdatedAt = now
}
