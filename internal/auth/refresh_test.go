package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshTokenEntropyAndEncoding(t *testing.T) {
	token, err := NewRefreshToken()
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(decoded), 64)
}

func TestNewRefreshTokenIsIndependentPerCall(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := NewRefreshToken()
		require.NoError(t, err)

		_, dup := seen[token]
		require.False(t, dup, "duplicate refresh token generated")
		seen[token] = struct{}{}
	}
}
