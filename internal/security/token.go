package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"docflow/api/internal/models"
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongKind      = errors.New("wrong token kind")
	ErrSubjectMissing = errors.New("token subject missing")
)

// TokenClaims is the signed payload of both token classes. Role is only
// set on access tokens: a refresh token carries identity and kind alone,
// so a stale role can never be replayed after a role change.
type TokenClaims struct {
	Role models.Role `json:"role,omitempty"`
	Kind TokenKind   `json:"kind"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for the subject. The role claim is dropped for
// refresh tokens regardless of what the caller passes.
func IssueToken(secret string, userID string, role models.Role, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if kind == TokenKindAccess {
		claims.Role = role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature and expiry and returns the decoded claims.
// Expired tokens are reported as ErrTokenExpired; anything else that fails
// verification comes back as ErrTokenInvalid.
func ParseToken(tokenStr string, secret string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrSubjectMissing
	}
	return claims, nil
}

// ParseTokenOfKind parses and additionally enforces the kind discriminator,
// so a refresh token can never authorize a request and an access token can
// never be exchanged at the refresh endpoint.
func ParseTokenOfKind(tokenStr string, secret string, kind TokenKind) (*TokenClaims, error) {
	claims, err := ParseToken(tokenStr, secret)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
