package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func testCodec() *TokenCodec {
	return NewTokenCodec(testSigningKey, "payment-platform", "payment-platform-clients", 15*time.Minute)
}

func testClaimSet() ClaimSet {
	return ClaimSet{
		Name:    "alice@example.com",
		Subject: "7",
		Roles:   []string{"User"},
	}
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	codec := testCodec()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := codec.Mint(testClaimSet(), now)
	require.NoError(t, err)
	assert.Regexp(t, `^[^.]+\.[^.]+\.[^.]+$`, token)

	claims, err := codec.Verify(token, now.Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Name)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, []string{"User"}, claims.Roles)
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := testCodec()
	minted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	afterExpiry := minted.Add(16 * time.Minute)

	token, err := codec.Mint(testClaimSet(), minted)
	require.NoError(t, err)

	_, err = codec.Verify(token, afterExpiry, true)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// The refresh flow reads claims out of an expired token.
	claims, err := codec.Verify(token, afterExpiry, false)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
}

func TestVerifyTokenUsedBeforeIssued(t *testing.T) {
	codec := testCodec()
	minted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := codec.Mint(testClaimSet(), minted)
	require.NoError(t, err)

	_, err = codec.Verify(token, minted.Add(-time.Minute), true)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	other := NewTokenCodec("another-key-another-key-another!", "payment-platform", "payment-platform-clients", 15*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := other.Mint(testClaimSet(), now)
	require.NoError(t, err)

	for _, validateLifetime := range []bool{true, false} {
		_, err = testCodec().Verify(token, now, validateLifetime)
		assert.ErrorIs(t, err, ErrTokenSignature)
	}
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	wrongIssuer := NewTokenCodec(testSigningKey, "someone-else", "payment-platform-clients", 15*time.Minute)
	token, err := wrongIssuer.Mint(testClaimSet(), now)
	require.NoError(t, err)
	_, err = testCodec().Verify(token, now, false)
	assert.ErrorIs(t, err, ErrTokenSignature)

	wrongAudience := NewTokenCodec(testSigningKey, "payment-platform", "other-audience", 15*time.Minute)
	token, err = wrongAudience.Mint(testClaimSet(), now)
	require.NoError(t, err)
	_, err = testCodec().Verify(token, now, false)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := testCodec().Verify(raw, now, true)
		assert.ErrorIs(t, err, ErrTokenMalformed, "raw=%q", raw)
	}
}
