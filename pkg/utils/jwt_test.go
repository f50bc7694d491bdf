package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func configureJWTForTest(t *testing.T, secret string) {
	t.Helper()

	originalSecret := append([]byte(nil), jwtSecret...)
	t.Cleanup(func() {
		jwtSecret = originalSecret
	})

	ConfigureJWT(secret)
}

func TestConfigureJWT(t *testing.T) {
	t.Run("updates secret when provided", func(t *testing.T) {
		configureJWTForTest(t, "test-secret")

		if got := string(jwtSecret); got != "test-secret" {
			t.Fatalf("expected jwt secret to be %q, got %q", "test-secret", got)
		}
	})

	t.Run("ignores empty secret", func(t *testing.T) {
		configureJWTForTest(t, "initial-secret")

		ConfigureJWT("")

		if got := string(jwtSecret); got != "initial-secret" {
			t.Fatalf("expected jwt secret to remain %q, got %q", "initial-secret", got)
		}
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Run("round trips the user id", func(t *testing.T) {
		configureJWTForTest(t, "roundtrip-secret")
		userID := uuid.New()

		token, err := GenerateToken(userID, time.Hour)
		if err != nil {
			t.Fatalf("expected token generation to succeed, got error: %v", err)
		}

		claims, err := ValidateToken(token)
		if err != nil {
			t.Fatalf("expected token validation to succeed, got error: %v", err)
		}
		if claims.UserID != userID {
			t.Fatalf("expected claims userID %s, got %s", userID, claims.UserID)
		}
		if claims.Subject != userID.String() {
			t.Fatalf("expected subject %q, got %q", userID.String(), claims.Subject)
		}
		if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
			t.Fatalf("expected token to have a future expiration, got %v", claims.ExpiresAt)
		}
	})

	t.Run("falls back to subject when userID claim is absent", func(t *testing.T) {
		configureJWTForTest(t, "subject-secret")
		userID := uuid.New()

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Subject:   userID.String(),
		}).SignedString(jwtSecret)
		if err != nil {
			t.Fatalf("failed to sign token for test: %v", err)
		}

		claims, err := ValidateToken(token)
		if err != nil {
			t.Fatalf("expected validation to succeed, got %v", err)
		}
		if claims.UserID != userID {
			t.Fatalf("expected userID %s, got %s", userID, claims.UserID)
		}
	})

	t.Run("rejects token without any user id", func(t *testing.T) {
		configureJWTForTest(t, "anon-secret")

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwtSecret)
		if err != nil {
			t.Fatalf("failed to sign token for test: %v", err)
		}

		if _, err := ValidateToken(token); err == nil {
			t.Fatal("expected validation to fail for token without user id")
		}
	})

	t.Run("rejects expired token", func(t *testing.T) {
		configureJWTForTest(t, "expired-secret")

		expiredToken, err := GenerateToken(uuid.New(), -time.Hour)
		if err != nil {
			t.Fatalf("failed to sign expired token for test: %v", err)
		}

		if _, err := ValidateToken(expiredToken); err == nil {
			t.Fatal("expected expired token validation to fail, but it succeeded")
		}
	})

	t.Run("rejects malformed token string", func(t *testing.T) {
		configureJWTForTest(t, "malformed-secret")

		if _, err := ValidateToken("not-a-jwt"); err == nil {
			t.Fatal("expected malformed token validation to fail, but it succeeded")
		}
	})

	t.Run("rejects token signed with unexpected method", func(t *testing.T) {
		configureJWTForTest(t, "wrong-method-secret")

		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("failed to generate rsa key for test: %v", err)
		}

		rsaToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			Subject:   uuid.New().String(),
		})

		signedToken, err := rsaToken.SignedString(privateKey)
		if err != nil {
			t.Fatalf("failed to sign rsa token for test: %v", err)
		}

		_, err = ValidateToken(signedToken)
		if err == nil {
			t.Fatal("expected validation to fail for token with unexpected signing method")
		}
		if !strings.Contains(err.Error(), "unexpected signing method") {
			t.Fatalf("expected signing method error, got: %v", err)
		}
	})
}
