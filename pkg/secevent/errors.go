package secevent

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("secevent.storage_not_available")

	// ErrEventValidation indicates event validation failed
	ErrEventValidation = errors.New("secevent.event_validation_failed")
)
