package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/testkit"
)

func newAuthService(t *testing.T) (*AuthService, *auth.TokenIssuer) {
	t.Helper()
	stores := repositories.NewGormStores(testkit.NewDB(t))
	iss := auth.NewTokenIssuer("test-secret", time.Hour, 0)
	return NewAuthService(stores.Users, iss), iss
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	svc, iss := newAuthService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Name: "Test Vendor", Email: " Vendor@Example.com ", Password: "vendor123", Role: "vendor"})
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", u.Email)
	assert.Equal(t, models.RoleVendor, u.Role)

	sess, err := svc.Login(ctx, LoginInput{Email: "vendor@example.com", Password: "vendor123"})
	require.NoError(t, err)
	claims, err := iss.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, models.RoleVendor, claims.Role)

	me, err := svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, me)
}

func TestAuth_RegisterRules(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Name: "Shopper", Email: "s@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleShopper, u.Role, "default role")

	_, err = svc.Register(ctx, RegisterInput{Name: "Again", Email: "s@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{Name: "Root", Email: "root@example.com", Password: "secret1", Role: "admin"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "role")
}

func TestAuth_LoginFailures(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "V", Email: "v@example.com", Password: "vendor123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "x"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.Equal(t, "user does not exist", e.Message)

	_, err = svc.Login(ctx, LoginInput{Email: "v@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
