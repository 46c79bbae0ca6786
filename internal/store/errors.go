package store

import "errors"

var (
	// ErrConflict means the requested slot is already held by a non-canceled
	// appointment.
	ErrConflict = errors.New("slot conflict")
	// ErrNotFound means the referenced appointment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the store could not be reached in time. It must
	// never be read as "slot free"; callers retry and re-validate.
	ErrUnavailable = errors.New("store unavailable")
)
