// Package token issues and verifies the bearer tokens that gate the
// HTTP gateway and relay admission.
package token

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
)

const issuer = "studyroomd"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Identity is the authenticated principal encoded in a token.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Service signs and verifies HS256 tokens with a shared secret.
// Verification is a pure function of (token, secret, current time).
type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue creates a signed token for id, expiring after the service TTL.
func (s *Service) Issue(id Identity) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(id.UserID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("name", id.Name).
		Build()
	if err != nil {
		return "", errors.Wrap(err, "Build token")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", errors.Wrap(err, "Sign token")
	}
	return string(signed), nil
}

// Verify checks raw's signature and expiry and extracts the identity.
func (s *Service) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithIssuer(issuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	id := Identity{UserID: tok.Subject()}
	if v, ok := tok.Get("name"); ok {
		if name, ok := v.(string); ok {
			id.Name = name
		}
	}
	return id, nil
}
