package auth

import (
	"slices"
	"time"

	gamebus_errors "gamebus/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopePublish   = "publish"
	ScopeSubscribe = "subscribe"
)

// Claims identify a relay caller, typically a game server, and what it may do.
type Claims struct {
	Scopes []string `json:"scope"`
	jwt.RegisteredClaims
}

func (c Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// TokenService issues and verifies HS256 relay tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

func (s *TokenService) Issue(subject string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *TokenService) Parse(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, gamebus_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, gamebus_errors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, gamebus_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, gamebus_errors.ErrUnauthorized
	}
	return *claims, nil
}
