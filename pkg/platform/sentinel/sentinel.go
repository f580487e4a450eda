package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into coded domain errors:
//   - ErrNotFound: row does not exist
//   - ErrAlreadyUsed: a unique key (serial number, license number, active
//     group per license) is taken
//   - ErrConflict: a guarded update lost to a concurrent writer
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
)
