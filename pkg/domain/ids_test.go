package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "arsenal/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseReservationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseReservationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseReservationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseReservationID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ReservationID(validUUID), id)
	})
}

func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE serial_units;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImportGroupID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	parsers := map[string]func(string) error{
		"user":         func(s string) error { _, err := ParseUserID(s); return err },
		"client":       func(s string) error { _, err := ParseClientID(s); return err },
		"vendor":       func(s string) error { _, err := ParseVendorID(s); return err },
		"weapon_model": func(s string) error { _, err := ParseWeaponModelID(s); return err },
		"reservation":  func(s string) error { _, err := ParseReservationID(s); return err },
		"import_group": func(s string) error { _, err := ParseImportGroupID(s); return err },
		"license":      func(s string) error { _, err := ParseLicenseID(s); return err },
		"membership":   func(s string) error { _, err := ParseMembershipID(s); return err },
	}

	valid := uuid.New().String()
	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, parse(valid))
			for _, bad := range []string{"", "invalid", uuid.Nil.String()} {
				require.Error(t, parse(bad), "input %q", bad)
			}
		})
	}
}

func TestParseQuotaCategory(t *testing.T) {
	t.Run("accepts known categories case-insensitively", func(t *testing.T) {
		c, err := ParseQuotaCategory(" Civil ")
		require.NoError(t, err)
		assert.Equal(t, CategoryCivil, c)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		_, err := ParseQuotaCategory("diplomatic")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseQuotaCategory("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseSerialNumber(t *testing.T) {
	s, err := ParseSerialNumber("  sn-aaa ")
	require.NoError(t, err)
	assert.Equal(t, SerialNumber("SN-AAA"), s)

	_, err = ParseSerialNumber("   ")
	require.Error(t, err)
	assert.Equal(t, "empty_serial", dErrors.ReasonOf(err))
}

func TestIDsMarshalAsStrings(t *testing.T) {
	vendor := VendorID(uuid.New())
	b, err := json.Marshal(map[VendorID]int{vendor: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+vendor.String()+`":3}`, string(b))

	var back map[VendorID]int
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 3, back[vendor])

	var r ReservationID
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &r))
}
