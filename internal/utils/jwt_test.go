package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-testing"

func init() {
	SetJWTSecret(testSecret)
}

func withSecret(t *testing.T, s string) {
	t.Helper()
	SetJWTSecret(s)
	t.Cleanup(func() { SetJWTSecret(testSecret) })
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "alice", "admin", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, expected 42", claims.Subject)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("Issuer = %q, expected %q", claims.Issuer, tokenIssuer)
	}
	if claims.ID == "" {
		t.Error("token id is empty")
	}
}

func TestGenerateToken_UniquePerCall(t *testing.T) {
	a, _ := GenerateToken(1, "alice", "admin", 24)
	b, _ := GenerateToken(1, "alice", "admin", 24)
	if a == b {
		t.Error("two tokens for the same admin should differ by id")
	}
}

func TestGenerateToken_NoSecret(t *testing.T) {
	withSecret(t, "")
	if _, err := GenerateToken(1, "alice", "admin", 24); err == nil {
		t.Error("GenerateToken() should fail without a secret")
	}
}

func TestGenerateToken_Expiration(t *testing.T) {
	token, _ := GenerateToken(1, "alice", "admin", 1)
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(time.Hour))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry off by %v", diff)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	expired, _ := GenerateToken(1, "alice", "admin", -1)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	foreignIssuer, _ := foreign.SignedString([]byte(testSecret))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer},
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"bad signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.e30.invalid"},
		{"expired", expired},
		{"foreign issuer", foreignIssuer},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token); err == nil {
				t.Errorf("ParseToken(%q) should fail", tt.token)
			}
		})
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	withSecret(t, "original-secret")
	token, _ := GenerateToken(1, "alice", "admin", 24)

	SetJWTSecret("rotated-secret")
	_, err := ParseToken(token)
	if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Errorf("ParseToken() error = %v, expected signature failure", err)
	}
}
