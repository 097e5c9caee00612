package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"clavis.dev/internal/obs"
)

const defaultRefreshTTL = 14 * 24 * time.Hour

// Service drives the credential lifecycle: login, refresh rotation and
// revocation. All persistence of refresh tokens goes through the command
// runner so every mutation is transactional.
type Service struct {
	store      Store
	tokens     *TokenService
	resolver   *PermissionResolver
	runner     *Runner
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the identity service.
func NewService(store Store, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	svc := &Service{
		store:      store,
		tokens:     tokens,
		resolver:   NewPermissionResolver(store),
		runner:     NewRunner(store),
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Resolver exposes the permission resolver backing this service.
func (s *Service) Resolver() *PermissionResolver { return s.resolver }

// Login authenticates by email and password and issues a token pair. The
// email lookup is unscoped: an email identifies a global principal before
// tenant context exists. Unknown email, inactive account and wrong password
// all return the same ErrInvalidCredentials and persist nothing.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.CountLogin("denied")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !user.Active {
		obs.CountLogin("denied")
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.CountLogin("denied")
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, record, err := s.mint(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.runner.Run(ctx, &storeRefreshTokenCommand{record: record}); err != nil {
		return TokenPair{}, err
	}
	obs.CountLogin("ok")
	return pair, nil
}

// Refresh rotates the presented refresh token. Roles and permissions are
// recomputed from current data, so revocations take effect on the next
// refresh regardless of the claims in the prior access token. Exactly one of
// any set of concurrent rotations of the same token succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidToken
	}
	record, err := s.store.RefreshTokens().GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.CountRotation("denied")
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if !record.IsActive(s.now().UTC()) {
		obs.CountRotation("denied")
		return TokenPair{}, ErrInvalidToken
	}
	user, err := s.store.Users().GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.CountRotation("denied")
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if !user.Active {
		obs.CountRotation("denied")
		return TokenPair{}, ErrInvalidToken
	}

	pair, successor, err := s.mint(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	cmd := &rotateRefreshTokenCommand{
		oldToken:  refreshToken,
		successor: successor,
		now:       s.now().UTC(),
	}
	if err := s.runner.Run(ctx, cmd); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			// Lost the race against a concurrent rotation of the
			// same token.
			obs.CountRotation("conflict")
		}
		return TokenPair{}, err
	}
	obs.CountRotation("ok")
	return pair, nil
}

// Revoke marks the token revoked without a successor (logout). It reports
// false when the token is absent or already inactive; a second call for the
// same token is not a success.
func (s *Service) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return false, nil
	}
	cmd := &revokeRefreshTokenCommand{token: refreshToken, now: s.now().UTC()}
	if err := s.runner.Run(ctx, cmd); err != nil {
		return false, err
	}
	return cmd.revoked, nil
}

// Authenticate validates a live bearer token and returns the request
// principal. The owning account must still be active.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.Claims(accessToken)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.store.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, ErrInvalidToken
	}
	return NewPrincipal(user.ID, claims.Tenant, claims.Email, claims.Roles, claims.Permissions), nil
}

// ListUsers returns the tenant's accounts with batch-resolved roles and
// permissions, computed with a single query set.
func (s *Service) ListUsers(ctx context.Context, tenantID string) ([]ResolvedUser, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, invalidField("tenantId", "is required")
	}
	users, err := s.store.Users().List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return []ResolvedUser{}, nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	perms, err := s.resolver.EffectivePermissionsBatch(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ResolvedUser, 0, len(users))
	for _, u := range users {
		roles, err := s.store.Users().RoleNames(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ResolvedUser{
			UserAccount: *u,
			Roles:       roles,
			Permissions: perms[u.ID],
		})
	}
	return out, nil
}

// mint resolves fresh roles and permissions and issues a pair plus the
// refresh-token row to persist.
func (s *Service) mint(ctx context.Context, user *UserAccount) (TokenPair, *RefreshToken, error) {
	roles, err := s.store.Users().RoleNames(ctx, user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	perms, err := s.resolver.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.tokens.Issue(user.ID, user.TenantID, user.Email, roles, SortedPermissions(perms))
	if err != nil {
		return TokenPair{}, nil, err
	}
	now := s.now().UTC()
	record := &RefreshToken{
		UserID:    user.ID,
		Token:     pair.RefreshToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return pair, record, nil
}

type storeRefreshTokenCommand struct {
	record *RefreshToken
}

func (c *storeRefreshTokenCommand) Name() string { return "refresh-token.store" }

func (c *storeRefreshTokenCommand) Execute(ctx context.Context, uow UnitOfWork) error {
	return uow.RefreshTokens().Create(ctx, c.record)
}

type rotateRefreshTokenCommand struct {
	oldToken  string
	successor *RefreshToken
	now       time.Time
}

func (c *rotateRefreshTokenCommand) Name() string { return "refresh-token.rotate" }

// Execute performs the rotation state transition. The conditional update is
// the linearization point: when it reports no transition the old token was
// already spent and the whole command rolls back, including the successor
// row.
func (c *rotateRefreshTokenCommand) Execute(ctx context.Context, uow UnitOfWork) error {
	ok, err := uow.RefreshTokens().MarkRotated(ctx, c.oldToken, c.successor.Token, c.now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidToken
	}
	return uow.RefreshTokens().Create(ctx, c.successor)
}

type revokeRefreshTokenCommand struct {
	token   string
	now     time.Time
	revoked bool
}

func (c *revokeRefreshTokenCommand) Name() string { return "refresh-token.revoke" }

func (c *revokeRefreshTokenCommand) Execute(ctx context.Context, uow UnitOfWork) error {
	ok, err := uow.RefreshTokens().MarkRevoked(ctx, c.token, c.now)
	if err != nil {
		return err
	}
	c.revoked = ok
	return nil
}
