package handler

import (
	id "arsenal/pkg/domain"
)

type LoadUnitRequest struct {
	Serial        string `json:"serial" validate:"required,max=64"`
	WeaponModelID string `json:"weapon_model_id" validate:"required,uuid"`
	ImportGroupID string `json:"import_group_id,omitempty" validate:"omitempty,uuid"`
}

func (r *LoadUnitRequest) Parse() (id.WeaponModelID, *id.ImportGroupID, error) {
	modelID, err := id.ParseWeaponModelID(r.WeaponModelID)
	if err != nil {
		return id.WeaponModelID{}, nil, err
	}
	groupID, err := optionalGroup(r.ImportGroupID)
	if err != nil {
		return id.WeaponModelID{}, nil, err
	}
	return modelID, groupID, nil
}

func optionalGroup(raw string) (*id.ImportGroupID, error) {
	if raw == "" {
		return nil, nil
	}
	g, err := id.ParseImportGroupID(raw)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
