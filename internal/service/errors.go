package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// Error kinds.  Every error returned by this package matches exactly one
// of them with errors.Is, or is a *ValidationError.
var (
	// ErrNotFound is returned for an unknown session, booking, member,
	// package or catalog entry.
	ErrNotFound = errors.New("service: not found")
	// ErrConflict is returned when the request is not valid in the current
	// state of the data.
	ErrConflict = errors.New("service: conflict")
	// ErrCapacityFault signals broken seat accounting.  It is a bug, is
	// logged at ERROR and is never retryable.
	ErrCapacityFault = errors.New("service: capacity fault")
	// ErrInsufficientCredit is returned when the member cannot pay for a seat.
	ErrInsufficientCredit = errors.New("service: insufficient credit")
	// ErrBusy is returned when the session or package lock could not be
	// taken in time.  It is the only retryable kind.
	ErrBusy = errors.New("service: busy")
	// ErrInvalidCheckinWindow is returned for a check-in outside the doors-open window.
	ErrInvalidCheckinWindow = errors.New("service: invalid check-in window")
)

// Refinements of the kinds above.
var (
	ErrDuplicateActiveBooking = fmt.Errorf("%w: duplicate active booking", ErrConflict)
	ErrSessionNotOpen         = fmt.Errorf("%w: session not open", ErrConflict)
	ErrInvalidTransition      = fmt.Errorf("%w: invalid state transition", ErrConflict)
	ErrAttendanceRecorded     = fmt.Errorf("%w: attendance already recorded", ErrConflict)
	ErrMemberInactive         = fmt.Errorf("%w: member inactive", ErrConflict)
	ErrNotAttended            = fmt.Errorf("%w: member did not attend the session", ErrConflict)
	ErrRatingLocked           = fmt.Errorf("%w: rating window closed", ErrConflict)
	ErrRoomOccupied           = fmt.Errorf("%w: room already booked for that time", ErrConflict)
	ErrCatalogInactive        = fmt.Errorf("%w: catalog entry inactive", ErrConflict)
	ErrPaymentDeclined        = fmt.Errorf("%w: payment declined", ErrInsufficientCredit)
	// ErrForbidden hides resources owned by other members behind not_found.
	ErrForbidden = fmt.Errorf("%w: not owned by caller", ErrNotFound)
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// orNil returns v as an error only when it holds field errors.
func (v *ValidationError) orNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// Kind maps an error to its stable label.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrCapacityFault):
		return "capacity_fault"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientCredit):
		return "insufficient_credit"
	case errors.Is(err, ErrInvalidCheckinWindow):
		return "invalid_checkin_window"
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "unexpected"
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// storeErr lifts storage sentinels into the service taxonomy.  what names
// the entity for not-found errors.
func storeErr(err error, what string, id uint64) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	case errors.Is(err, repository.ErrBusy):
		return fmt.Errorf("%w: %s %d: %w", ErrBusy, what, id, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s %d: %w", ErrConflict, what, id, err)
	}
	return err
}
