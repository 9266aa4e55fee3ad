package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Access tokens are stateless: validity is decided purely by signature and
// expiry, there is no server-side record. Signing is fixed to HS256; the
// decoder refuses any other algorithm, including "none".

// EncodeToken signs a claims map with the given secret, merging iat/exp at
// the current time. The wire format is the compact JWS serialization:
// base64url(header).base64url(claims).base64url(signature), unpadded.
func EncodeToken(claims map[string]any, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	merged := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range claims {
		merged[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, merged)
	return token.SignedString([]byte(secret))
}

var tokenParser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

// DecodeToken verifies signature and expiry and returns the claims. Every
// failure mode (malformed input, wrong segment count, signature mismatch,
// expired token) yields ErrInvalidToken; malformed input never panics.
func DecodeToken(token, secret string) (map[string]any, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	parsed, err := tokenParser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return map[string]any(claims), nil
}
