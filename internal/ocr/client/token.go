package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenLifetime bounds each service token; tokens are reused until
// tokenRefreshSkew before expiry.
const (
	tokenLifetime    = 5 * time.Minute
	tokenRefreshSkew = 30 * time.Second
)

// Claims identifies the calling service to the OCR API.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenSigner mints short-lived HS256 bearer tokens.
type TokenSigner struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

func NewTokenSigner(signingKey, issuer, audience string) *TokenSigner {
	return &TokenSigner{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// Token returns a valid bearer token, minting a new one when needed.
func (s *TokenSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != "" && now.Add(tokenRefreshSkew).Before(s.expiresAt) {
		return s.cached, nil
	}

	expiresAt := now.Add(tokenLifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: "ocr",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	s.cached = signed
	s.expiresAt = expiresAt
	return signed, nil
}
