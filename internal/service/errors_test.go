package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func TestKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{err: nil, kind: ""},
		{err: fmt.Errorf("wrap: %w", ErrCapacityFault), kind: "capacity_fault"},
		{err: ErrBusy, kind: "busy", retryable: true},
		{err: storeErr(repository.ErrBusy, "session", 1), kind: "busy", retryable: true},
		{err: storeErr(repository.ErrNotFound, "session", 1), kind: "not_found"},
		{err: storeErr(repository.ErrConflict, "rating", 1), kind: "conflict"},
		{err: ErrForbidden, kind: "not_found"},
		{err: ErrDuplicateActiveBooking, kind: "conflict"},
		{err: ErrSessionNotOpen, kind: "conflict"},
		{err: ErrRatingLocked, kind: "conflict"},
		{err: ErrPaymentDeclined, kind: "insufficient_credit"},
		{err: ErrInvalidCheckinWindow, kind: "invalid_checkin_window"},
		{err: &ValidationError{FieldErrors: map[string]string{"x": "bad"}}, kind: "validation"},
		{err: context.Canceled, kind: "canceled"},
		{err: errors.New("boom"), kind: "unexpected"},
	}
	for _, tc := range tests {
		if got := Kind(tc.err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.kind)
		}
		if got := Retryable(tc.err); got != tc.retryable {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()
	v := &ValidationError{}
	if v.orNil() != nil {
		t.Fatalf("expected nil for an empty validation error")
	}
	v.add("b", "is required")
	v.add("a", "must be positive")
	if got := v.Error(); got != "validation failed: a, b" {
		t.Fatalf("unexpected message %q", got)
	}
}
