package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/domain"
)

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func newAuthService(t *testing.T, h *harness) (*application.AuthService, *auth.JWTManager, *memoryRevocations) {
	t.Helper()
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	store := &memoryRevocations{revoked: map[string]time.Duration{}}
	svc := application.NewAuthService(h.repos.Users, jwt, store, zap.NewNop())
	return svc, jwt, store
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc, jwt, _ := newAuthService(t, h)

	session, err := svc.Register(ctx, application.RegisterRequest{
		Name: "Aisyah", Email: "Aisyah@Example.com", Phone: "0123456789", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "CUSTOMER", session.User.Role)
	assert.Equal(t, "aisyah@example.com", session.User.Email)

	claims, err := jwt.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
	assert.Equal(t, auth.RoleCustomer, claims.Role)

	var conflict *domain.ConflictError
	_, err = svc.Register(ctx, application.RegisterRequest{Name: "Other", Email: "aisyah@example.com", Password: "another-pass"})
	assert.ErrorAs(t, err, &conflict)

	_, err = svc.Login(ctx, application.LoginRequest{Email: "AISYAH@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	var unauthorized *domain.UnauthorizedError
	_, err = svc.Login(ctx, application.LoginRequest{Email: "aisyah@example.com", Password: "wrong-pass"})
	assert.ErrorAs(t, err, &unauthorized)
	_, err = svc.Login(ctx, application.LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorAs(t, err, &unauthorized)

	var verr *domain.ValidationError
	_, err = svc.Register(ctx, application.RegisterRequest{Name: "Short", Email: "short@example.com", Password: "abc"})
	assert.ErrorAs(t, err, &verr)
}

func TestAuth_BlockedAccountCannotLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc, _, _ := newAuthService(t, h)
	admin := h.user(t, auth.RoleAdmin)

	session, err := svc.Register(ctx, application.RegisterRequest{Name: "Ravi", Email: "ravi@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	blocked := true
	_, err = h.users.SetBlocked(ctx, admin, session.User.ID, application.SetBlockedRequest{Blocked: &blocked})
	require.NoError(t, err)

	var forbidden *domain.ForbiddenError
	_, err = svc.Login(ctx, application.LoginRequest{Email: "ravi@example.com", Password: "s3cret-pass"})
	assert.ErrorAs(t, err, &forbidden)
	_, err = svc.CurrentUser(ctx, session.User.ID)
	assert.ErrorAs(t, err, &forbidden)

	var rule *domain.BusinessRuleError
	_, err = h.users.SetBlocked(ctx, admin, admin.ID, application.SetBlockedRequest{Blocked: &blocked})
	assert.ErrorAs(t, err, &rule)
}

func TestAuth_LogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc, jwt, store := newAuthService(t, h)

	session, err := svc.Register(ctx, application.RegisterRequest{Name: "Mei", Email: "mei@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	claims, err := jwt.Validate(session.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	revoked, err := store.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Greater(t, store.revoked[claims.ID], time.Duration(0))
}

func TestAuth_EnsureAdminIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc, _, _ := newAuthService(t, h)

	require.NoError(t, svc.EnsureAdmin(ctx, "Workshop Admin", "admin@chillcar.test", "admin-pass-1"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Workshop Admin", "admin@chillcar.test", "admin-pass-1"))

	admins, err := h.users.ListUsers(ctx, "ADMIN")
	require.NoError(t, err)
	require.Len(t, admins, 1)

	session, err := svc.Login(ctx, application.LoginRequest{Email: "admin@chillcar.test", Password: "admin-pass-1"})
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", session.User.Role)
}
