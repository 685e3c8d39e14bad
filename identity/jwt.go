/*
Package identity resolves session principals to employee references.

PURPOSE:
  Assignments are attributed to whoever made them. The HTTP layer hands the
  engine the caller's bearer token as an opaque principal; this package
  verifies it and turns it into a meeting.EmployeeRef.

TOKENS:
  HS256 JWTs with claims:
    sub:  employee id
    name: display name (optional; filled from the directory when absent)
    exp:  expiry

SEE ALSO:
  - meeting/store.go: IdentityLookup interface
  - api/middleware.go: bearer extraction
*/
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/meeting-engine/meeting"
)

const DefaultTokenTTL = 12 * time.Hour

// Claims is the token payload.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NameLookup fills in a display name for an employee id.
type NameLookup func(ctx context.Context, employeeID string) (string, bool)

// JWTResolver verifies HS256 tokens and implements meeting.IdentityLookup.
type JWTResolver struct {
	secret []byte
	ttl    time.Duration
	names  NameLookup
	now    func() time.Time
}

func NewJWTResolver(secret string, ttl time.Duration, names NameLookup) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET not set")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTResolver{secret: []byte(secret), ttl: ttl, names: names, now: time.Now}, nil
}

// Issue signs a token for ref. Used by the CLI and tests.
func (r *JWTResolver) Issue(ref meeting.EmployeeRef) (string, error) {
	if ref.ID == "" {
		return "", errors.New("employee id required")
	}
	now := r.now()
	claims := Claims{
		Name: ref.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

// Resolve verifies principal as a token. A "Bearer " prefix is tolerated.
// Every failure wraps meeting.ErrUnauthenticated.
func (r *JWTResolver) Resolve(ctx context.Context, principal string) (meeting.EmployeeRef, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(principal), "Bearer "))
	if raw == "" {
		return meeting.EmployeeRef{}, fmt.Errorf("empty token: %w", meeting.ErrUnauthenticated)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return meeting.EmployeeRef{}, fmt.Errorf("%w: %v", meeting.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return meeting.EmployeeRef{}, fmt.Errorf("token without subject: %w", meeting.ErrUnauthenticated)
	}

	ref := meeting.EmployeeRef{ID: claims.Subject, Name: claims.Name}
	if ref.Name == "" && r.names != nil {
		if name, ok := r.names(ctx, ref.ID); ok {
			ref.Name = name
		}
	}
	return ref, nil
}

var _ meeting.IdentityLookup = (*JWTResolver)(nil)
