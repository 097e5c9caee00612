package auth

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestTokens(t, WithIssuer("test-issuer"), WithAudience("test-api"))

	pair, err := svc.Issue("user-42", "tenant-1", "alice@example.com", []string{"Manager"}, []string{"Users.Read", "Reports.View"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected non-empty token pair")
	}
	if !pair.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", pair.ExpiresAt)
	}

	if !svc.Validate(pair.AccessToken) {
		t.Fatalf("expected freshly issued token to validate")
	}
	claims, err := svc.Claims(pair.AccessToken)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Tenant != "tenant-1" {
		t.Fatalf("unexpected tenant: %s", claims.Tenant)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "Manager" {
		t.Fatalf("roles not preserved: %v", claims.Roles)
	}
	if len(claims.Permissions) != 2 {
		t.Fatalf("permissions not preserved: %v", claims.Permissions)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti claim")
	}
}

func TestUniqueTokenIDs(t *testing.T) {
	svc := newTestTokens(t)
	first, err := svc.Issue("user-1", "", "a@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := svc.Issue("user-1", "", "a@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c1, _ := svc.Claims(first.AccessToken)
	c2, _ := svc.Claims(second.AccessToken)
	if c1.ID == c2.ID {
		t.Fatalf("expected distinct jti values, both were %s", c1.ID)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatalf("expected distinct refresh tokens")
	}
}

func TestTamperedTokenFailsUniformly(t *testing.T) {
	svc := newTestTokens(t)
	pair, err := svc.Issue("user-1", "tenant-1", "a@example.com", []string{"User"}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a character inside the payload segment.
	parts := strings.Split(pair.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	payload := []byte(parts[1])
	if payload[3] == 'A' {
		payload[3] = 'B'
	} else {
		payload[3] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if svc.Validate(tampered) {
		t.Fatalf("tampered token validated")
	}
	if id, ok := svc.ExtractUserID(tampered); ok || id != "" {
		t.Fatalf("ExtractUserID leaked %q from tampered token", id)
	}
	if tid, ok := svc.ExtractTenantID(tampered); ok || tid != "" {
		t.Fatalf("ExtractTenantID leaked %q from tampered token", tid)
	}
}

func TestExpiredTokenFailsWithZeroLeeway(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	svc := newTestTokens(t,
		WithAccessTTL(time.Minute),
		WithTokenClock(func() time.Time { return clock }),
	)
	pair, err := svc.Issue("user-1", "", "a@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !svc.Validate(pair.AccessToken) {
		t.Fatalf("token should be valid before expiry")
	}

	// One second past expiry; no clock skew is tolerated.
	clock = now.Add(time.Minute + time.Second)
	if svc.Validate(pair.AccessToken) {
		t.Fatalf("expired token validated")
	}
	if _, ok := svc.ExtractUserID(pair.AccessToken); ok {
		t.Fatalf("ExtractUserID succeeded on expired token")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuing := newTestTokens(t)
	verifying := newTestTokens(t)
	other, err := NewTokenService("ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	pair, err := issuing.Issue("user-1", "", "a@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !verifying.Validate(pair.AccessToken) {
		t.Fatalf("same-secret service rejected valid token")
	}
	if other.Validate(pair.AccessToken) {
		t.Fatalf("different-secret service accepted token")
	}
}

func TestOpaqueTokenShape(t *testing.T) {
	tok, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	// 64 random bytes, base64 standard encoding.
	if len(tok) != 88 {
		t.Fatalf("unexpected opaque token length %d", len(tok))
	}
	second, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if tok == second {
		t.Fatalf("opaque tokens collided")
	}
}

func TestExtractTenantIDEmptyForGlobalUser(t *testing.T) {
	svc := newTestTokens(t)
	pair, err := svc.Issue("user-1", "", "root@example.com", []string{"SuperAdmin"}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tid, ok := svc.ExtractTenantID(pair.AccessToken); ok {
		t.Fatalf("expected no tenant for global user, got %q", tid)
	}
	if id, ok := svc.ExtractUserID(pair.AccessToken); !ok || id != "user-1" {
		t.Fatalf("ExtractUserID = %q, %v", id, ok)
	}
}
