package adapters

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshMargin renews the token slightly before it expires.
const refreshMargin = 15 * time.Second

// ServiceClaims are the claims of the service token sent to the user service.
type ServiceClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// TokenSource mints and caches an HS256 service token.
type TokenSource struct {
	signingKey []byte
	clientID   string
	ttl        time.Duration
	scopes     []string
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenSource(signingKey, clientID string, ttl time.Duration, scopes ...string) *TokenSource {
	return &TokenSource{
		signingKey: []byte(signingKey),
		clientID:   clientID,
		ttl:        ttl,
		scopes:     scopes,
		now:        time.Now,
	}
}

// Token returns the cached token, minting a new one when it is about to expire.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-refreshMargin)) {
		return s.token, nil
	}

	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		Scopes: s.scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	s.token = signed
	s.expires = expires
	return signed, nil
}
