package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionType is the "type" claim carried by every session token.
const sessionType = "session"

// ErrNoSecret is returned by NewSessionIssuer for an empty signing secret.
var ErrNoSecret = errors.New("session secret is required")

// SessionClaims are the JWT claims of a reporter session. They carry the
// owner strings the ledger attaches to every item a session reports.
type SessionClaims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
	Contact string `json:"contact"`
	Type    string `json:"type"`
}

// SessionIssuer issues and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates a SessionIssuer.
//
//	secret: HMAC signing key, must not be empty.
//	issuer: the "iss" claim value, usually the server base URL.
//	ttl:    token lifetime (default: 24 hours).
func NewSessionIssuer(secret, issuer string, ttl time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed session token for the given owner.
func (s *SessionIssuer) Issue(ownerID, contact string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", fmt.Errorf("owner id is required")
	}

	now := s.now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
		OwnerID: ownerID,
		Contact: strings.TrimSpace(contact),
		Type:    sessionType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	if claims.Type != sessionType || claims.OwnerID == "" {
		return nil, fmt.Errorf("not a session token")
	}
	return claims, nil
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration { return s.ttl }
