// Package jwt issues and verifies signed session tokens.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
)

const issuer = "devpulse"

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source used for issuing and validating.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue signs a session token for user and returns it with its expiry.
func (m *Manager) Issue(user models.User) (string, time.Time, error) {
	const op = "lib.jwt.Issue"

	now := m.now()
	expiresAt := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Name:  user.Name,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return signed, expiresAt, nil
}

// Parse verifies a session token and returns the principal it carries.
func (m *Manager) Parse(tokenStr string) (models.Principal, error) {
	const op = "lib.jwt.Parse"

	var c claims
	_, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w: %w", op, apperrors.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return models.Principal{}, fmt.Errorf("%s: %w: missing subject", op, apperrors.ErrUnauthorized)
	}

	return models.Principal{
		UserID: c.Subject,
		Email:  c.Email,
		Name:   c.Name,
	}, nil
}
