// Package security verifies the end-user access tokens issued by the
// identity provider. The engine only needs the opaque owner id they carry.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingOwner = errors.New("token carries no owner id")

type AccessClaims struct {
	OwnerID string `json:"uid"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a token for ownerID. The API never issues tokens
// itself; the CLI and tests use this to stand in for the identity provider.
func GenerateAccessToken(secret, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   ownerID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates signature and expiry and returns the owner id.
// The subject claim is accepted when uid is absent.
func ParseAccessToken(tokenStr, secret string) (string, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	owner := claims.OwnerID
	if owner == "" {
		owner = claims.Subject
	}
	if owner == "" {
		return "", ErrMissingOwner
	}
	return owner, nil
}
