package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Distinct verification outcomes. Callers must be able to tell "expired but
// otherwise valid" apart from "tampered or garbage".
var (
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenMalformed = errors.New("token is malformed")
)

// TokenCodec mints and verifies HS256-signed access tokens in the standard
// compact header.payload.signature format, so any stock verifier holding the
// shared key can validate them independently.
type TokenCodec struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
}

func NewTokenCodec(signingKey, issuer, audience string, accessTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
	}
}

type accessClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Mint signs claims into a token valid for [now, now+accessTTL].
func (c *TokenCodec) Mint(claims ClaimSet, now time.Time) (string, error) {
	payload := &accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.Subject,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		Name:  claims.Name,
		Roles: claims.Roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// Verify checks signature, issuer and audience, and, only when
// validateLifetime is set, that now falls within [issuedAt, expiresAt].
// The lifetime-skip mode exists for the refresh flow, where the client
// presents an access token that is expected to be expired. Both modes run
// the exact same signature, issuer and audience checks.
func (c *TokenCodec) Verify(raw string, now time.Time, validateLifetime bool) (ClaimSet, error) {
	// Claims validation is done by hand below so the lifetime check can be
	// skipped without loosening the signature check.
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(t *jwt.Token) (any, error) {
		return c.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return ClaimSet{}, ErrTokenSignature
		}
		return ClaimSet{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return ClaimSet{}, ErrTokenMalformed
	}

	if claims.Issuer != c.issuer {
		return ClaimSet{}, fmt.Errorf("%w: issuer mismatch", ErrTokenSignature)
	}
	if !containsAudience(claims.Audience, c.audience) {
		return ClaimSet{}, fmt.Errorf("%w: audience mismatch", ErrTokenSignature)
	}

	if validateLifetime {
		if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
			return ClaimSet{}, ErrTokenExpired
		}
		if claims.IssuedAt != nil && now.Before(claims.IssuedAt.Time) {
			return ClaimSet{}, fmt.Errorf("%w: used before issued", ErrTokenExpired)
		}
	}

	return ClaimSet{
		Name:    claims.Name,
		Subject: claims.Subject,
		Roles:   claims.Roles,
	}, nil
}

func containsAudience(audience jwt.ClaimStrings, want string) bool {
	for _, entry := range audience {
		if entry == want {
			return true
		}
	}
	return false
}
