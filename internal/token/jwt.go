// Package token issues and verifies HS256 access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/library-circulation/internal/privilege"
)

const leeway = 30 * time.Second

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string // email
	ID        string // jti
	Email     string
	Role      privilege.Level
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access tokens with a shared key.
type Manager struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewManager constructs a Manager. ttl is the access token lifetime.
func NewManager(key []byte, issuer, audience string, ttl time.Duration) (*Manager, error) {
	if len(key) == 0 {
		return nil, errors.New("empty signing key")
	}
	if ttl <= 0 {
		return nil, errors.New("non-positive access token ttl")
	}
	return &Manager{key: key, issuer: issuer, audience: audience, ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured access token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Sign issues a token for email with the given role and returns it with its expiry.
func (m *Manager) Sign(email string, role privilege.Level) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := accessClaims{
		Email: email,
		Role:  role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   email,
			Audience:  jwt.ClaimStrings{m.audience},
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	return signed, exp, err
}

// Verify checks signature, expiry, issuer and audience and returns the claims.
func (m *Manager) Verify(raw string) (Claims, error) {
	var c accessClaims
	parsed, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("verify token: %w", err)
	}
	if !parsed.Valid || c.Subject == "" {
		return Claims{}, errors.New("invalid token")
	}
	role, err := privilege.Parse(c.Role)
	if err != nil {
		return Claims{}, fmt.Errorf("bad role claim: %w", err)
	}

	out := Claims{
		Subject: c.Subject,
		ID:      c.ID,
		Email:   c.Email,
		Role:    role,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
