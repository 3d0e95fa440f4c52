package scheduling

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service matches exactly one of these
// with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("not permitted")
	ErrNotFound       = errors.New("not found")
	ErrInfrastructure = errors.New("store unavailable")
)

// Conflicts.
var (
	ErrDoctorUnavailable    = fmt.Errorf("%w: doctor unavailable", ErrConflict)
	ErrCauseMismatch        = fmt.Errorf("%w: cause not treated by doctor", ErrConflict)
	ErrTransitionNotAllowed = fmt.Errorf("%w: status transition not allowed", ErrConflict)
	ErrSpecialtyLocked      = fmt.Errorf("%w: specialty cannot change while the doctor has appointments", ErrConflict)
	ErrCauseInUse           = fmt.Errorf("%w: cause is used by an appointment", ErrConflict)
	ErrAvailabilityInUse    = fmt.Errorf("%w: new availability does not cover a booked appointment", ErrConflict)
	ErrDuplicate            = fmt.Errorf("%w: already exists", ErrConflict)
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// classify passes through errors that already carry a kind and wraps
// everything else as an infrastructure failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrConflict, ErrForbidden, ErrNotFound, ErrInfrastructure} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrInfrastructure, err)
}
