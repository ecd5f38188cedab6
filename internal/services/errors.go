package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation wraps every input problem; the bot re-prompts or clears the flow.
	ErrValidation = errors.New("validation failed")

	ErrForbidden      = errors.New("insufficient rights")
	ErrNotFound       = errors.New("not found")
	ErrEventClosed    = errors.New("event is closed")
	ErrEventNotClosed = errors.New("event is not closed yet")
	ErrAlreadyRated   = errors.New("event already rated")
	ErrSelfDemotion   = errors.New("cannot remove your own role")
	ErrAlreadyAdmin   = errors.New("user is already an admin")
	ErrAlreadyManager = errors.New("user is already a manager")
	ErrNotTracked     = errors.New("message is not a tracked question")
	ErrDeliveryFailed = errors.New("message delivery failed")
)

// ValidationError carries the user-facing reason for an ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// deliveryError marks err as a failed outbound message.
func deliveryError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, what, err)
}
