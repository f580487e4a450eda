package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

// WeaponModel is immutable catalog reference data. Code is the short
// identifier used in spreadsheets and is unique case-insensitively.
type WeaponModel struct {
	ID             id.WeaponModelID `json:"id"`
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Caliber        string           `json:"caliber"`
	Category       id.QuotaCategory `json:"category"`
	ReferencePrice decimal.Decimal  `json:"reference_price"`
	CreatedAt      time.Time        `json:"created_at"`
}

func NewWeaponModel(modelID id.WeaponModelID, code, name, caliber string, category id.QuotaCategory, price decimal.Decimal, now time.Time) (*WeaponModel, error) {
	code = NormalizeCode(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "model code cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "model name cannot be empty")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid model category")
	}
	if price.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reference price cannot be negative")
	}
	return &WeaponModel{
		ID:             modelID,
		Code:           code,
		Name:           name,
		Caliber:        strings.TrimSpace(caliber),
		Category:       category,
		ReferencePrice: price,
		CreatedAt:      now,
	}, nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
