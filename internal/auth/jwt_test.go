package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateJWT(42, secret)
	require.NoError(t, err)

	userID, err := ValidateToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestGenerateJWT_Rejects(t *testing.T) {
	_, err := GenerateJWT(0, secret)
	assert.Error(t, err)
	_, err = GenerateJWT(1, nil)
	assert.Error(t, err)
}

func TestValidateToken_Failures(t *testing.T) {
	good, err := GenerateJWT(7, secret)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7,
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 7}).SignedString(secret)
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": 7,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	tests := map[string]struct {
		token  string
		secret []byte
	}{
		"wrong secret":     {token: good, secret: []byte("other")},
		"expired":          {token: expired, secret: secret},
		"missing expiry":   {token: noExpiry, secret: secret},
		"unexpected alg":   {token: wrongAlg, secret: secret},
		"garbage":          {token: "not.a.token", secret: secret},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}
