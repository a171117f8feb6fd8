// Package auth checks the admin PIN that guards catalog management.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrUnauthorized = errors.New("invalid admin PIN")
	ErrRateLimited  = errors.New("too many admin attempts")
	ErrInvalidHash  = errors.New("invalid PIN hash")
)

const (
	hashPrefix = "argon2id"
	saltLen    = 16
	keyLen     = 32
	timeCost   = 1
	memoryCost = 64 * 1024
	threads    = 4
)

// HashPIN returns an encoded Argon2id hash of the form argon2id$<salt>$<key>.
func HashPIN(pin string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(pin), salt, timeCost, memoryCost, threads, keyLen)
	return strings.Join([]string{
		hashPrefix,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	}, "$"), nil
}

// Verifier compares submitted PINs with a stored hash.
type Verifier struct {
	salt []byte
	key  []byte
}

// NewVerifier parses an encoded hash produced by HashPIN.
func NewVerifier(encoded string) (*Verifier, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return nil, ErrInvalidHash
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode salt: %v", ErrInvalidHash, err)
	}
	key, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode key: %v", ErrInvalidHash, err)
	}
	if len(salt) == 0 || len(key) == 0 {
		return nil, ErrInvalidHash
	}
	return &Verifier{salt: salt, key: key}, nil
}

// NewVerifierFromPIN hashes a plain PIN and returns a verifier for it.
func NewVerifierFromPIN(pin string) (*Verifier, error) {
	if pin == "" {
		return nil, fmt.Errorf("%w: empty PIN", ErrInvalidHash)
	}
	encoded, err := HashPIN(pin)
	if err != nil {
		return nil, err
	}
	return NewVerifier(encoded)
}

// Verify reports whether pin matches the stored hash.
func (v *Verifier) Verify(pin string) bool {
	key := argon2.IDKey([]byte(pin), v.salt, timeCost, memoryCost, threads, uint32(len(v.key)))
	return subtle.ConstantTimeCompare(key, v.key) == 1
}
