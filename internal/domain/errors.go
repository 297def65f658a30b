package domain

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("access forbidden: you don't own this resource")
	ErrInvalidID = errors.New("invalid id")

	ErrInvalidRange = errors.New("invalid date range")

	// ErrStore marks a transport or transaction failure in the ledger store.
	// Callers may retry; a retried RecordAttendance that then reports
	// ErrDuplicateAttendance most likely succeeded on the first attempt.
	ErrStore = errors.New("ledger store failure")
)

// Ledger errors
var (
	ErrDuplicateAttendance = errors.New("a lesson is already recorded for this member on this day")
	ErrCapacityExceeded    = errors.New("lesson package has no remaining credits")
	ErrFutureDate          = errors.New("lesson date cannot be in the future")
	ErrPackageExpired      = errors.New("lesson package has expired")
	ErrNothingToRelease    = errors.New("lesson package has no used credits to release")
	ErrActivePackageExists = errors.New("member already has an active lesson package")
	ErrInvalidPackage      = errors.New("invalid lesson package: total lessons must be positive")

	ErrPackageNotFound = fmt.Errorf("lesson package %w", ErrNotFound)
	ErrLessonNotFound  = fmt.Errorf("lesson %w", ErrNotFound)
)

// StoreError wraps err so that errors.Is(err, ErrStore) holds while keeping
// the underlying cause reachable.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// IsClientError reports whether err is a caller-input error that must not be
// retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateAttendance) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrFutureDate) ||
		errors.Is(err, ErrPackageExpired) ||
		errors.Is(err, ErrInvalidPackage) ||
		errors.Is(err, ErrInvalidRange)
}
