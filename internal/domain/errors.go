package domain

import (
	"fmt"
	"time"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
// A purchase intent that fails validation never enters the confirmation flow.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates an invalid or missing service token.
// Message is shown to the caller; Reason is a short code for logs.
type ErrUnauthorized struct {
	Reason  string
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrNoPendingEntry indicates an action addressed to a key with nothing pending.
// It is reported to the user, never treated as a failure.
type ErrNoPendingEntry struct {
	Key PendingKey
}

func (e *ErrNoPendingEntry) Error() string {
	return fmt.Sprintf("nothing pending for chat=%s user=%s", e.Key.ChatID, e.Key.UserID)
}

// ErrExpired indicates the pending entry outlived its TTL. The entry is purged.
type ErrExpired struct {
	Key       PendingKey
	PendingID string
	Age       time.Duration
}

func (e *ErrExpired) Error() string {
	return fmt.Sprintf("pending confirmation %s expired after %s", e.PendingID, e.Age.Round(time.Second))
}

// ErrPersistence indicates the row append failed. The pending entry is kept,
// so confirming again retries without re-entering the purchase.
type ErrPersistence struct {
	PendingID string
	Retryable bool
	Err       error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persist purchase %s: %v", e.PendingID, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}
