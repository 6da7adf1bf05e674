// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package auth provides authentication primitives for lostfound.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a username and credential hash
//   - NewSession - creates a Session with an owner, token hash and expiry
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Credentials
//
// Stored credentials come in two formats, modelled by Credential: legacy
// unsalted sha256 digests and salted PBKDF2 "{salt}${digest}" strings.
// Legacy credentials keep verifying and are re-hashed on the next
// successful login.
//
// # Services
//
//   - Service - registration, login, logout, session restoration
//   - Reaper - periodic removal of expired sessions
//
// Store failures surface as errors matching ErrStoreUnavailable. Write
// operations return them; RestoreSession fails closed to anonymous.
package auth
