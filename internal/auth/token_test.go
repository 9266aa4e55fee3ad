package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	claims := map[string]any{
		"sub":      int64(42),
		"username": "sysadmin",
	}
	token, err := EncodeToken(claims, "secret", time.Hour)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected compact serialization, got %q", token)
	}

	decoded, err := DecodeToken(token, "secret")
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	// JSON numbers decode as float64.
	if sub, _ := decoded["sub"].(float64); int64(sub) != 42 {
		t.Fatalf("unexpected sub: %v", decoded["sub"])
	}
	if decoded["username"] != "sysadmin" {
		t.Fatalf("unexpected username: %v", decoded["username"])
	}
	if _, ok := decoded["iat"]; !ok {
		t.Fatalf("missing iat claim")
	}
	if _, ok := decoded["exp"]; !ok {
		t.Fatalf("missing exp claim")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := EncodeToken(map[string]any{"sub": 1}, "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if _, err := DecodeToken(token, "secret-b"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	token, err := EncodeToken(map[string]any{"sub": 1}, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if _, err := DecodeToken(token, "secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	for _, token := range []string{
		"",
		"garbage",
		"a.b",
		"a.b.c.d",
		"!!!.???.###",
	} {
		if _, err := DecodeToken(token, "secret"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestTokenRejectsForeignAlgorithms(t *testing.T) {
	// A token signed with a different HMAC variant must not slip through,
	// even when the secret matches.
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{
		"sub": 1,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := foreign.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := DecodeToken(signed, "secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// "alg":"none" with an empty signature segment.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": 1,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := DecodeToken(raw, "secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}
