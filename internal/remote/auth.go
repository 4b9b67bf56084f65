package remote

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid tenant token")

// Claims carries the tenant user id alongside the registered JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GenerateToken signs an HS256 token identifying userID, valid for
// validityDuration. Zero duration issues a non-expiring token for
// long-running device deployments.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	claims := Claims{UserID: userID}
	if validityDuration > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(validityDuration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// UserIDFromToken verifies tokenString and returns the tenant user id it
// carries.
func UserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}
