// Package session mints and verifies the signed, stateless session tokens.
//
// A token is an HS256 JWT carrying the user id as the subject plus the
// email and display name. Nothing is stored server-side, so a token stays
// valid until it expires; keep the TTL short.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSubject is returned when asked to sign an identity without an id.
	ErrMissingSubject = errors.New("session: identity has no id")
	// ErrInvalidToken is returned by Refresh for a token that does not verify.
	ErrInvalidToken = errors.New("session: invalid token")
)

// Identity is the authenticated principal carried by a session.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Token is a signed session and the moment it stops being accepted.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ClaimsUpdate lists the profile fields to overwrite on Refresh. Nil fields
// keep their current value.
type ClaimsUpdate struct {
	Name  *string
	Email *string
}

// Claims is the JWT payload.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer. A non-positive ttl falls back to one hour.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a new token for id.
func (i *Issuer) Issue(id Identity) (Token, error) {
	if id.ID == "" {
		return Token{}, ErrMissingSubject
	}
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Recover verifies raw and returns the identity it carries. Any failure,
// including a wrong algorithm or a missing expiry, yields false.
func (i *Issuer) Recover(raw string) (Identity, bool) {
	if raw == "" {
		return Identity{}, false
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid || claims.Subject == "" {
		return Identity{}, false
	}
	return Identity{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, true
}

// Refresh re-signs raw with a fresh expiry, applying the supplied profile
// fields. The subject never changes.
func (i *Issuer) Refresh(raw string, upd ClaimsUpdate) (Token, error) {
	id, ok := i.Recover(raw)
	if !ok {
		return Token{}, ErrInvalidToken
	}
	if upd.Name != nil {
		id.Name = *upd.Name
	}
	if upd.Email != nil {
		id.Email = *upd.Email
	}
	return i.Issue(id)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.ID != ""
}
