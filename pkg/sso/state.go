package sso

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

// DefaultStateTTL bounds how long a login attempt may sit between redirect
// and callback.
const DefaultStateTTL = 10 * time.Minute

// StateClaims is the signed state round-tripped through the identity
// provider. Binding the provider name into the token stops a callback for
// one provider from completing a login started against another.
type StateClaims struct {
	Provider string `json:"prv"`
	Redirect string `json:"rdr,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies login state tokens
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer. A zero ttl falls back to DefaultStateTTL.
func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	if secret == "" {
		return nil, errs.NewValidation("state_secret", "is required")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed state token for a login attempt against the named
// provider
func (s *StateSigner) Issue(provider, redirect string) (string, error) {
	now := s.now()
	claims := StateClaims{
		Provider: provider,
		Redirect: redirect,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return token, nil
}

// Verify checks a state token returned by a provider callback. Every failure
// mode reads the same to the caller.
func (s *StateSigner) Verify(token, provider string) (*StateClaims, error) {
	claims := &StateClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, errs.NewAuthentication("invalid login state")
	}
	if claims.Provider != provider {
		return nil, errs.NewAuthentication("invalid login state")
	}
	return claims, nil
}
