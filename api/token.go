package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bookclub-catalog/catalog"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "bookclub-catalog"

// Claims identify the session behind a bearer token.
type Claims struct {
	UserID   int64        `json:"user_id"`
	Login    string       `json:"login,omitempty"`
	Role     catalog.Role `json:"role"`
	FullName string       `json:"full_name"`
	jwt.RegisteredClaims
}

// Session rebuilds the catalog session the token was issued for.
func (c *Claims) Session() *catalog.Session {
	return &catalog.Session{User: &catalog.User{
		ID:       c.UserID,
		Login:    c.Login,
		Role:     c.Role,
		FullName: c.FullName,
	}}
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

func NewTokenIssuer(secret string, expiresIn time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
}

// Issue creates a token for sess.
func (t *TokenIssuer) Issue(sess *catalog.Session) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID:   sess.User.ID,
		Login:    sess.User.Login,
		Role:     sess.User.Role,
		FullName: sess.User.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, issuer and expiry.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	key := func(*jwt.Token) (any, error) { return t.secret, nil }
	parsed, err := jwt.ParseWithClaims(token, claims, key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
