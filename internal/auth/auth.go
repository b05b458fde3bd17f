package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	ID       string
	Username string
	Name     string
	Email    string
}

// SessionLookup resolves a plaintext session token to an identity.
// Implementations return ErrSessionInvalid for unknown or expired tokens.
type SessionLookup interface {
	LookupSession(ctx context.Context, token string) (*Identity, error)
}

// NewSessionToken generates an opaque session token and its storage hash.
// The plaintext goes to the client; only the hash is persisted.
func NewSessionToken() (plaintext, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating session token: %w", err)
	}
	plaintext = hex.EncodeToString(b)
	return plaintext, HashToken(plaintext), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a plaintext token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
