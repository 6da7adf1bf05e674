// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Changing any of them invalidates every stored salted
// credential, so they are fixed rather than configurable.
const (
	pbkdf2Iterations = 100_000
	pbkdf2SaltBytes  = 16 // hex encoded to 32 chars
	pbkdf2KeyLen     = sha256.Size

	credentialSeparator = "$"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// CredentialKind distinguishes the stored credential formats.
type CredentialKind int

// Stored credential formats.
const (
	// CredentialLegacy is an unsalted hex sha256 digest with no separator.
	CredentialLegacy CredentialKind = iota + 1
	// CredentialSalted is "{salt}${hex pbkdf2 digest}".
	CredentialSalted
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialLegacy:
		return "legacy"
	case CredentialSalted:
		return "salted"
	default:
		return fmt.Sprintf("CredentialKind(%d)", int(k))
	}
}

// Credential is a parsed stored password hash.
type Credential struct {
	Kind   CredentialKind
	Salt   string // empty for CredentialLegacy
	Digest string
}

// ParseCredential classifies a stored hash. A value without the "$"
// separator is a legacy digest; anything else splits at the first "$".
func ParseCredential(stored string) Credential {
	salt, digest, found := strings.Cut(stored, credentialSeparator)
	if !found {
		return Credential{Kind: CredentialLegacy, Digest: stored}
	}
	return Credential{Kind: CredentialSalted, Salt: salt, Digest: digest}
}

// String encodes the credential in its storage format.
func (c Credential) String() string {
	if c.Kind == CredentialLegacy {
		return c.Digest
	}
	return c.Salt + credentialSeparator + c.Digest
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted credential for the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the stored credential.
	// Returns (true, nil) on match and (false, nil) on mismatch.
	Verify(password, stored string) (bool, error)

	// NeedsUpgrade returns true if the stored credential should be re-hashed.
	NeedsUpgrade(stored string) bool
}

// PBKDF2Hasher implements PasswordHasher with PBKDF2-HMAC-SHA256 and accepts
// legacy unsalted sha256 digests for verification.
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash generates a fresh random salt and derives the credential.
func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	saltBytes := make([]byte, pbkdf2SaltBytes)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").
			With("requested_bytes", pbkdf2SaltBytes).
			Wrap(err)
	}

	return h.HashWithSalt(password, hex.EncodeToString(saltBytes)), nil
}

// HashWithSalt derives the credential for password using the given salt.
// The salt string's bytes are the KDF salt, so stored salts are reused verbatim.
func (h *PBKDF2Hasher) HashWithSalt(password, salt string) string {
	dk := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return Credential{
		Kind:   CredentialSalted,
		Salt:   salt,
		Digest: hex.EncodeToString(dk),
	}.String()
}

// Verify checks password against a legacy or salted credential.
func (h *PBKDF2Hasher) Verify(password, stored string) (bool, error) {
	if stored == "" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("stored credential is empty")
	}

	cred := ParseCredential(stored)
	var computed string
	switch cred.Kind {
	case CredentialLegacy:
		sum := sha256.Sum256([]byte(password))
		computed = hex.EncodeToString(sum[:])
	case CredentialSalted:
		computed = h.HashWithSalt(password, cred.Salt)
	default:
		return false, oops.Code("AUTH_INVALID_HASH").
			With("kind", cred.Kind.String()).
			Errorf("unsupported credential format")
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1, nil
}

// NeedsUpgrade returns true for legacy unsalted digests.
func (h *PBKDF2Hasher) NeedsUpgrade(stored string) bool {
	return ParseCredential(stored).Kind == CredentialLegacy
}

// LegacyDigest returns the unsalted sha256 hex digest older accounts were
// stored with. Only used to seed and test migration paths.
func LegacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
