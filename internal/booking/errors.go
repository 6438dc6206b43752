package booking

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the booking service wraps exactly one
// of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrPermission   = errors.New("permission denied")
	ErrExpired      = errors.New("booking expired")
)

var (
	ErrBookingNotFound = fmt.Errorf("%w: booking not found", ErrNotFound)
	ErrMasterNotFound  = fmt.Errorf("%w: master not found", ErrNotFound)
	ErrServiceNotFound = fmt.Errorf("%w: service not found", ErrNotFound)
	ErrSlotUnavailable = fmt.Errorf("%w: requested time overlaps an active booking", ErrConflict)
	ErrStaleState      = fmt.Errorf("%w: booking changed concurrently", ErrInvalidState)
	ErrBookingExpired  = fmt.Errorf("%w: confirmation deadline has passed", ErrExpired)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidState(action Action, status Status) error {
	return fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidState, action, status)
}

func permissionDenied(action Action) error {
	return fmt.Errorf("%w: not allowed to %s this booking", ErrPermission, action)
}

// Code returns the machine readable code for an error kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrExpired):
		return "EXPIRED"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrPermission):
		return "PERMISSION_DENIED"
	default:
		return "INTERNAL"
	}
}
