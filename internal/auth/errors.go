// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the service and the repository implementations.
// Call sites wrap them with oops codes; match them with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrDuplicateToken is returned when a session token hash collides.
	ErrDuplicateToken = errors.New("session token already exists")

	// ErrInvalidCredentials is returned for any failed login, whether the
	// username is unknown or the password does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSessionExpired is returned by SessionRepository.Resolve when the
	// session existed but had expired; the record is gone by then.
	ErrSessionExpired = errors.New("session has expired")

	// ErrStoreUnavailable marks a failure of the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeFailure tags err as a backing store failure while keeping the cause
// in the chain.
func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// ValidationKind identifies which registration rule failed.
type ValidationKind string

// Registration validation failures, in the order they are checked.
const (
	UsernameTooShort     ValidationKind = "USERNAME_TOO_SHORT"
	UsernameInvalidChars ValidationKind = "USERNAME_INVALID_CHARS"
	PasswordTooShort     ValidationKind = "PASSWORD_TOO_SHORT"
	ContactRequired      ValidationKind = "CONTACT_REQUIRED"
	ContactInvalidFormat ValidationKind = "CONTACT_INVALID_FORMAT"
)

// ValidationError is a client input error. Message is safe to show to users.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationKind reports whether err carries a ValidationError of the given kind.
func IsValidationKind(err error, kind ValidationKind) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Kind == kind
}
