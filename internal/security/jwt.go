package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names recognized in session claims. Roles are resolved from the
// session token, never from the local user row.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// SessionClaims is the JWT payload for an authenticated chat session. The
// external identity provider mints tokens of this shape with the shared
// secret; locally provisioned accounts get the same tokens from the login
// endpoint.
type SessionClaims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the session carries the given role claim.
func (c *SessionClaims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

// ErrMissingJWTSecret indicates the signing secret is not configured.
var ErrMissingJWTSecret = errors.New("security: missing jwt secret")

// MintSessionToken signs a session token for the user with the given roles.
func MintSessionToken(secret string, expiry time.Duration, userID uint64, roles []string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrMissingJWTSecret
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("security: sign session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates a session token and returns its claims.
func ParseSessionToken(secret, tokenString string) (*SessionClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingJWTSecret
	}
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("security: parse session token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("security: invalid session token")
	}
	if claims.UserID == 0 {
		return nil, errors.New("security: session token missing user id")
	}
	return claims, nil
}
