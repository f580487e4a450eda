// Package sqlnull converts optional typed IDs to and from nullable columns.
package sqlnull

import "github.com/google/uuid"

// UUIDLike matches the typed IDs in pkg/domain.
type UUIDLike interface {
	~[16]byte
}

// UUID maps a nil pointer to NULL.
func UUID[T UUIDLike](v *T) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

// Ptr maps NULL back to a nil pointer.
func Ptr[T UUIDLike](v uuid.NullUUID) *T {
	if !v.Valid {
		return nil
	}
	out := T(v.UUID)
	return &out
}
