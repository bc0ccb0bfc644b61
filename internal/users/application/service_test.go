package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/auth"
	"iot-climate-monitor/internal/storage/memory"
)

var secret = []byte("test-secret")

func newService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(memory.New().Users(), secret, time.Hour)
	require.NoError(t, err)
	return service
}

func TestRegisterDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	service := newService(t)

	user, err := service.Register(ctx, RegisterCommand{Username: " tech ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "tech", user.Username)
	assert.Equal(t, auth.RoleTechnician, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	legacy, err := service.Register(ctx, RegisterCommand{Username: "budi", Password: "secret1", Role: "teknisi"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleTechnician, legacy.Role)

	_, err = service.Register(ctx, RegisterCommand{Username: "short", Password: "12345"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = service.Register(ctx, RegisterCommand{Username: "boss", Password: "secret1", Role: "owner"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = service.Register(ctx, RegisterCommand{Username: "tech", Password: "secret1"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	ctx := context.Background()
	service := newService(t)
	_, err := service.Register(ctx, RegisterCommand{Username: "admin", Password: "secret1", Role: "admin"})
	require.NoError(t, err)

	session, err := service.Login(ctx, "admin", "secret1")
	require.NoError(t, err)
	claims, err := auth.ParseJWT(session.Token, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, string(auth.RoleAdmin), claims.Role)
	assert.Equal(t, session.User.ID, claims.UserID)

	_, err = service.Login(ctx, "admin", "wrong-pass")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	_, err = service.Login(ctx, "ghost", "secret1")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	_, err = service.Login(ctx, "", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service := newService(t)

	created, err := service.EnsureAdmin(ctx, "root", "changeme")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = service.EnsureAdmin(ctx, "root", "changeme")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = service.EnsureAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)

	list, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, auth.RoleAdmin, list[0].Role)

	profile, err := service.Profile(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "root", profile.Username)
	_, err = service.Profile(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
