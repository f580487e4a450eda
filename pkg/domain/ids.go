package domain

import (
	"github.com/google/uuid"

	dErrors "arsenal/pkg/domain-errors"
)

// Typed identifiers keep a reservation id from ever being passed where an
// import group id is expected. All IDs are non-nil UUIDs at trust boundaries.
type (
	UserID        uuid.UUID
	ClientID      uuid.UUID
	VendorID      uuid.UUID
	WeaponModelID uuid.UUID
	ReservationID uuid.UUID
	ImportGroupID uuid.UUID
	LicenseID     uuid.UUID
	MembershipID  uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s, "client id")
	return ClientID(u), err
}

func ParseVendorID(s string) (VendorID, error) {
	u, err := parseUUID(s, "vendor id")
	return VendorID(u), err
}

func ParseWeaponModelID(s string) (WeaponModelID, error) {
	u, err := parseUUID(s, "weapon model id")
	return WeaponModelID(u), err
}

func ParseReservationID(s string) (ReservationID, error) {
	u, err := parseUUID(s, "reservation id")
	return ReservationID(u), err
}

func ParseImportGroupID(s string) (ImportGroupID, error) {
	u, err := parseUUID(s, "import group id")
	return ImportGroupID(u), err
}

func ParseLicenseID(s string) (LicenseID, error) {
	u, err := parseUUID(s, "license id")
	return LicenseID(u), err
}

func ParseMembershipID(s string) (MembershipID, error) {
	u, err := parseUUID(s, "membership id")
	return MembershipID(u), err
}

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ClientID) String() string      { return uuid.UUID(id).String() }
func (id VendorID) String() string      { return uuid.UUID(id).String() }
func (id WeaponModelID) String() string { return uuid.UUID(id).String() }
func (id ReservationID) String() string { return uuid.UUID(id).String() }
func (id ImportGroupID) String() string { return uuid.UUID(id).String() }
func (id LicenseID) String() string     { return uuid.UUID(id).String() }
func (id MembershipID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id VendorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id WeaponModelID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReservationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ImportGroupID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LicenseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id MembershipID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps IDs as canonical UUID strings in JSON, including
// when used as map keys.
func marshalText(u uuid.UUID) ([]byte, error) { return []byte(u.String()), nil }

func unmarshalText(dst *uuid.UUID, text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid uuid")
	}
	*dst = u
	return nil
}

func (id UserID) MarshalText() ([]byte, error)        { return marshalText(uuid.UUID(id)) }
func (id ClientID) MarshalText() ([]byte, error)      { return marshalText(uuid.UUID(id)) }
func (id VendorID) MarshalText() ([]byte, error)      { return marshalText(uuid.UUID(id)) }
func (id WeaponModelID) MarshalText() ([]byte, error) { return marshalText(uuid.UUID(id)) }
func (id ReservationID) MarshalText() ([]byte, error) { return marshalText(uuid.UUID(id)) }
func (id ImportGroupID) MarshalText() ([]byte, error) { return marshalText(uuid.UUID(id)) }
func (id LicenseID) MarshalText() ([]byte, error)     { return marshalText(uuid.UUID(id)) }
func (id MembershipID) MarshalText() ([]byte, error)  { return marshalText(uuid.UUID(id)) }

func (id *UserID) UnmarshalText(b []byte) error        { return unmarshalText((*uuid.UUID)(id), b) }
func (id *ClientID) UnmarshalText(b []byte) error      { return unmarshalText((*uuid.UUID)(id), b) }
func (id *VendorID) UnmarshalText(b []byte) error      { return unmarshalText((*uuid.UUID)(id), b) }
func (id *WeaponModelID) UnmarshalText(b []byte) error { return unmarshalText((*uuid.UUID)(id), b) }
func (id *ReservationID) UnmarshalText(b []byte) error { return unmarshalText((*uuid.UUID)(id), b) }
func (id *ImportGroupID) UnmarshalText(b []byte) error { return unmarshalText((*uuid.UUID)(id), b) }
func (id *LicenseID) UnmarshalText(b []byte) error     { return unmarshalText((*uuid.UUID)(id), b) }
func (id *MembershipID) UnmarshalText(b []byte) error  { return unmarshalText((*uuid.UUID)(id), b) }
