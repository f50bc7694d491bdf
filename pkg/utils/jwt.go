package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSecret = []byte("change-me-in-production")

// Tokens are issued by the platform's identity service; the drive only
// verifies them and reads the user id.
type Claims struct {
	UserID uuid.UUID `json:"userID"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
}

// GenerateToken signs a token for userID. Used by tests and the admin CLI.
func GenerateToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.UserID == uuid.Nil {
		parsed, err := uuid.Parse(claims.Subject)
		if err != nil {
			return nil, errors.New("token carries no user id")
		}
		claims.UserID = parsed
	}

	return claims, nil
}
