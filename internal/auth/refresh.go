package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// refreshTokenBytes is the raw entropy per refresh token. The encoded value
// carries no claims; validity is proven solely by exact match against the
// stored value on the identity record.
const refreshTokenBytes = 64

// NewRefreshToken returns an opaque, URL-safe refresh token from a
// cryptographically secure source. Each call is independent.
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
