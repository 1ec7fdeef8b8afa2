// Package token issues and verifies the HS256 bearer tokens that carry a
// user's identity between requests. Tokens are stateless: validity is a
// function of the signature and the embedded timestamps only.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified content of a bearer token. IssuedAt is what the
// auth middleware compares against the user's password_changed_at.
type Claims struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Service struct {
	key []byte
	ttl time.Duration

	now func() time.Time // overridable in tests
}

func NewService(key []byte, ttl time.Duration) *Service {
	return &Service{key: key, ttl: ttl, now: time.Now}
}

// TTL returns the configured token lifetime, used to mirror the session
// cookie's MaxAge.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for subjectID valid from now until now+TTL.
func (s *Service) Issue(subjectID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": subjectID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the signature and timestamps of raw and returns its
// claims. A token is expired at its exact expiry instant, not one tick
// later. Errors are the domain sentinels so callers can pick messages
// without importing jwt.
func (s *Service) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.key, nil
	}, jwt.WithIssuedAt())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrTokenInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		default:
			return nil, domain.ErrTokenMalformed
		}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrTokenMalformed
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, domain.ErrTokenMalformed
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, domain.ErrTokenMalformed
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, domain.ErrTokenMalformed
	}

	// The jwt library lets a token pass at the boundary instant.
	if !s.now().Before(exp.Time) {
		return nil, domain.ErrTokenExpired
	}

	return &Claims{
		SubjectID: sub,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}, nil
}
