// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Registration constraints.
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// RE2 \s is ASCII whitespace only; no-break and ideographic spaces do not match.
	phoneRegex    = regexp.MustCompile(`^\+?[0-9\s\-]{7,15}$`)
)

// ValidateRegistration checks registration input, stopping at the first
// failing rule. The returned error is always a *ValidationError.
func ValidateRegistration(username, password, contact string) error {
	if utf8.RuneCountInString(strings.TrimSpace(username)) < MinUsernameLength {
		return &ValidationError{
			Kind:    UsernameTooShort,
			Message: "Username must be at least 3 characters.",
		}
	}
	if !usernameRegex.MatchString(username) {
		return &ValidationError{
			Kind:    UsernameInvalidChars,
			Message: "Username can only contain letters, numbers, and underscores.",
		}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{
			Kind:    PasswordTooShort,
			Message: "Password must be at least 6 characters.",
		}
	}
	if strings.TrimSpace(contact) == "" {
		return &ValidationError{
			Kind:    ContactRequired,
			Message: "Contact info is required.",
		}
	}
	if !emailRegex.MatchString(contact) && !phoneRegex.MatchString(contact) {
		return &ValidationError{
			Kind:    ContactInvalidFormat,
			Message: "Contact info must be a valid email or phone number.",
		}
	}
	return nil
}
