package domain

import "errors"

// Error taxonomy shared by every component. Callers wrap these with context
// using fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrDeviceNotConfigured = errors.New("device not configured")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrBadRequest          = errors.New("bad request")
	ErrAlreadyCompleted    = errors.New("already completed")
	ErrNetwork             = errors.New("network failure")
	ErrServerFault         = errors.New("server fault")
)
