// Package common defines shared constants and sentinel errors used across
// the reconciliation engine, its repositories and the transport layers.
// Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Registration errors.
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrOccurrenceExpired  = errors.New("occurrence expired")
	ErrOccurrenceNotFound = fmt.Errorf("occurrence %w", ErrorNotFound)

	// ErrOccurrenceActive is returned when completion effects are requested
	// for an occurrence that has not been claimed yet.
	ErrOccurrenceActive = errors.New("occurrence still active")

	// ErrInvalidOccurrence rejects an occurrence whose kind-specific fields
	// are missing or out of range.
	ErrInvalidOccurrence = errors.New("invalid occurrence")

	// Reset code errors. Wrong, consumed and expired codes are indistinguishable.
	ErrInvalidCode     = errors.New("invalid code")
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrStoreUnavailable marks transient store failures; the operation left
	// no visible effect and may be retried later.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Admin API errors.
	ErrorInvalidToken = errors.New("invalid token")
)
