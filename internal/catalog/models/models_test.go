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

func TestNewWeaponModel(t *testing.T) {
	modelID := id.WeaponModelID(uuid.New())
	now := time.Now()

	t.Run("normalizes code and trims fields", func(t *testing.T) {
		m, err := NewWeaponModel(modelID, " g17 ", " Glock 17 ", " 9mm ", id.CategoryCivil, decimal.RequireFromString("650.00"), now)
		require.NoError(t, err)
		assert.Equal(t, "G17", m.Code)
		assert.Equal(t, "Glock 17", m.Name)
		assert.Equal(t, "9mm", m.Caliber)
	})

	for name, tc := range map[string]struct {
		code, name string
		category   id.QuotaCategory
		price      decimal.Decimal
	}{
		"empty code":     {code: "  ", name: "X", category: id.CategoryCivil},
		"empty name":     {code: "X", name: "", category: id.CategoryCivil},
		"bad category":   {code: "X", name: "X", category: "police"},
		"negative price": {code: "X", name: "X", category: id.CategoryMilitary, price: decimal.NewFromInt(-1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewWeaponModel(modelID, tc.code, tc.name, "", tc.category, tc.price, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}
