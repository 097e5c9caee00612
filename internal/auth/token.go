package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer    = "clavis"
	defaultAudience  = "clavis-api"
	defaultAccessTTL = 15 * time.Minute

	// Refresh tokens are opaque: 64 random bytes, base64-encoded,
	// meaningless without the server-side row.
	refreshTokenBytes = 64
)

// AccessClaims is the signed claim set carried by access tokens.
type AccessClaims struct {
	Email       string   `json:"email"`
	Tenant      string   `json:"tenant"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues HMAC-signed access tokens and opaque refresh tokens.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// TokenOption configures TokenService.
type TokenOption func(*TokenService)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
	}
}

// WithAudience overrides the audience claim.
func WithAudience(audience string) TokenOption {
	return func(s *TokenService) {
		if v := strings.TrimSpace(audience); v != "" {
			s.audience = v
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService over the shared signing secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	svc := &TokenService{
		secret:   []byte(secret),
		issuer:   defaultIssuer,
		audience: defaultAudience,
		ttl:      defaultAccessTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue signs an access token for the user and generates a fresh opaque
// refresh token. Persisting the refresh token is the caller's concern.
func (s *TokenService) Issue(userID, tenantID, email string, roles, permissions []string) (TokenPair, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TokenPair{}, invalidField("userId", "is required")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := AccessClaims{
		Email:       email,
		Tenant:      tenantID,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := NewOpaqueToken()
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: signed, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// NewOpaqueToken returns a cryptographically random refresh token string.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// parse verifies signature, issuer, audience and lifetime with zero clock
// skew. Every failure mode collapses to ErrInvalidToken.
func (s *TokenService) parse(token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate reports whether the access token is well-formed, untampered and
// unexpired. Callers cannot distinguish failure causes.
func (s *TokenService) Validate(token string) bool {
	_, err := s.parse(token)
	return err == nil
}

// ExtractUserID returns the subject of a valid token, or ("", false)
// uniformly on any failure.
func (s *TokenService) ExtractUserID(token string) (string, bool) {
	claims, err := s.parse(token)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// ExtractTenantID returns the tenant claim of a valid token, or ("", false)
// uniformly on any failure.
func (s *TokenService) ExtractTenantID(token string) (string, bool) {
	claims, err := s.parse(token)
	if err != nil || claims.Tenant == "" {
		return "", false
	}
	return claims.Tenant, true
}

// Claims parses and validates a live bearer token.
func (s *TokenService) Claims(token string) (*AccessClaims, error) {
	return s.parse(token)
}
