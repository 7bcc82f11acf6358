package telemetry

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL bounds how long a submission token is accepted.
const TokenTTL = 5 * time.Minute

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the installation submitting data.
type Claims struct {
	Version string `json:"ver"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for installID signed with secret.
func SignToken(secret, installID, version string, now time.Time) (string, error) {
	claims := &Claims{
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   installID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken parses tokenString and checks its signature against secret.
func VerifyToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
