package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sporthack/internal/common"
)

var (
	secret = []byte("test-secret")
	now    = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

func TestGenerateAndVerify(t *testing.T) {
	tok, err := GenerateToken("reconcile", secret, time.Minute, now)
	require.NoError(t, err)

	sub, err := VerifyToken(tok, secret, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "reconcile", sub)
}

func TestVerifyToken_Rejects(t *testing.T) {
	valid, err := GenerateToken("ops", secret, time.Minute, now)
	require.NoError(t, err)

	otherAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{Audience}},
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret []byte
		at     time.Time
	}{
		{"expired", valid, secret, now.Add(2 * time.Minute)},
		{"wrong secret", valid, []byte("other"), now},
		{"garbage", "not-a-jwt", secret, now},
		{"wrong audience", otherAudience, secret, now},
		{"no expiry", noExpiry, secret, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyToken(tt.token, tt.secret, tt.at)
			assert.ErrorIs(t, err, common.ErrorInvalidToken)
		})
	}
}

func TestBearerToken(t *testing.T) {
	md, err := BearerToken("abc").GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"authorization": "Bearer abc"}, md)
	assert.False(t, BearerToken("abc").RequireTransportSecurity())
}
