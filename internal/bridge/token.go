package bridge

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssueToken signs a client token for the websocket transport. The
// subject is the client name used in the factory document.
func IssueToken(client, secret string, ttl time.Duration) (string, error) {
	if client == "" {
		return "", fmt.Errorf("%w: empty client name", ErrTokenInvalid)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  client,
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing client token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a client token and returns the client name.
func ParseToken(tokenString, secret string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", ErrTokenInvalid)
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// tokenFromRequest reads a bearer token from the Authorization header,
// falling back to the token query parameter for clients that cannot set
// headers on a websocket dial.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	return r.URL.Query().Get("token")
}
