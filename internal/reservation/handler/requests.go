package handler

import (
	"github.com/shopspring/decimal"

	"arsenal/internal/reservation/service"
	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

type CreateReservationRequest struct {
	ClientID      string `json:"client_id" validate:"required,uuid"`
	WeaponModelID string `json:"weapon_model_id" validate:"required,uuid"`
	ImportGroupID string `json:"import_group_id" validate:"required,uuid"`
	VendorID      string `json:"vendor_id,omitempty" validate:"omitempty,uuid"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	UnitPrice     string `json:"unit_price,omitempty" validate:"omitempty,numeric"`
}

func (r *CreateReservationRequest) Params() (service.CreateParams, error) {
	var p service.CreateParams
	var err error
	if p.ClientID, err = id.ParseClientID(r.ClientID); err != nil {
		return p, err
	}
	if p.WeaponModelID, err = id.ParseWeaponModelID(r.WeaponModelID); err != nil {
		return p, err
	}
	if p.ImportGroupID, err = id.ParseImportGroupID(r.ImportGroupID); err != nil {
		return p, err
	}
	if r.VendorID != "" {
		v, err := id.ParseVendorID(r.VendorID)
		if err != nil {
			return p, err
		}
		p.VendorID = &v
	}
	if r.UnitPrice != "" {
		if p.UnitPrice, err = decimal.NewFromString(r.UnitPrice); err != nil {
			return p, dErrors.New(dErrors.CodeInvalidInput, "invalid unit price")
		}
	}
	p.Quantity = r.Quantity
	return p, nil
}

type BindSerialRequest struct {
	Serial string `json:"serial" validate:"required,max=64"`
}

type AddMemberRequest struct {
	ClientID string `json:"client_id" validate:"required,uuid"`
}
