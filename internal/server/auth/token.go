// Package auth issues and verifies the service tokens that guard the admin
// gRPC endpoint. Tokens are HS256 JWTs signed with a secret shared between
// the server and its operators' tools.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/sporthack/internal/common"
)

// Audience is set on every admin token and required on verification.
const Audience = "sporthack-admin"

// Claims carries the standard registered claims; the subject names the
// operator or tool that requested the token.
type Claims struct {
	jwt.RegisteredClaims
}

func GenerateToken(subject string, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyToken returns the subject of a valid token. Any failure, including
// expiry and a wrong signing method, wraps common.ErrorInvalidToken.
func VerifyToken(tokenString string, secretKey []byte, now time.Time) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInvalidToken, err)
	}

	if !token.Valid {
		return "", common.ErrorInvalidToken
	}

	return claims.Subject, nil
}

// BearerToken attaches a token to every outgoing RPC.
type BearerToken string

func (t BearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(t)}, nil
}

// RequireTransportSecurity reports false: the admin endpoint is expected on a
// private network.
func (BearerToken) RequireTransportSecurity() bool { return false }
