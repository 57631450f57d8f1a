// Package auth resolves the caller identity once at the HTTP boundary. Tokens
// come from the external identity provider; roles come from profiles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/safar/petalstore/internal/config"
	"github.com/safar/petalstore/internal/models"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Caller is the authenticated identity passed explicitly into every order
// operation. The zero value is an anonymous caller.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) IsAuthenticated() bool {
	return c.UserID != ""
}

func (c Caller) IsAdmin() bool {
	return c.IsAuthenticated() && c.Role == models.RoleAdmin
}

type RoleLookup interface {
	GetProfileRole(ctx context.Context, userID string) (string, error)
}

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer}
}

// Verify checks signature, expiry and issuer and returns the subject, which
// must be a UUID.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	return subject.String(), nil
}

// Issue signs a token for userID. The identity provider issues production
// tokens; this is used by local tooling and tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
