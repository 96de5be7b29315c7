// Package token is the opaque credential capability: issue a token binding an
// admin to an organization, or verify one back into that pair.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid_token")

type claims struct {
	OrgID string `json:"org"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// New builds a token service. An empty secret yields an ephemeral random one,
// which invalidates outstanding tokens on restart.
func New(secret string, ttl time.Duration) (*Service, error) {
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		key = []byte(hex.EncodeToString(buf))
	}

	return &Service{secret: key, ttl: ttl}, nil
}

// Issue returns a signed token for the admin bound to the organization.
func (s *Service) Issue(adminID, orgID snowflake.ID) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(s.ttl)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		OrgID: orgID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses a presented token and yields the (admin, organization) pair it
// was issued for, or ErrInvalidToken.
func (s *Service) Verify(raw string) (adminID, orgID snowflake.ID, err error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, 0, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return 0, 0, ErrInvalidToken
	}

	adminID, err = snowflake.ParseString(c.Subject)
	if err != nil {
		return 0, 0, ErrInvalidToken
	}
	orgID, err = snowflake.ParseString(c.OrgID)
	if err != nil {
		return 0, 0, ErrInvalidToken
	}

	return adminID, orgID, nil
}
