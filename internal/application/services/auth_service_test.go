package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

type stubUserRepo struct {
	byID    map[string]*entities.User
	byEmail map[string]*entities.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byID:    map[string]*entities.User{},
		byEmail: map[string]*entities.User{},
	}
}

func (r *stubUserRepo) Create(ctx context.Context, user *entities.User) error {
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	return user, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	return user, nil
}

func newAuthService(users *stubUserRepo) *services.AuthService {
	return services.NewAuthService(users, "test-secret", 7*24*time.Hour)
}

func TestAuthService_RegisterAndVerify(t *testing.T) {
	svc := newAuthService(newStubUserRepo())

	user, token, err := svc.Register(context.Background(), "Tech@Example.COM", "longenough", "Sam")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "tech@example.com", user.Email)
	assert.Equal(t, entities.RoleUser, user.Role)
	assert.NotEqual(t, "longenough", user.PasswordHash)

	identity, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, entities.RoleUser, identity.Role)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	users := newStubUserRepo()
	svc := newAuthService(users)

	_, _, err := svc.Register(context.Background(), "tech@example.com", "longenough", "Sam")
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), "tech@example.com", "longenough", "Sam")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeConflict, appErr.Type)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService(newStubUserRepo())

	_, _, err := svc.Register(context.Background(), "not-an-email", "longenough", "Sam")
	require.Error(t, err)

	_, _, err = svc.Register(context.Background(), "tech@example.com", "short", "Sam")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func TestAuthService_Login(t *testing.T) {
	users := newStubUserRepo()
	svc := newAuthService(users)

	_, _, err := svc.Register(context.Background(), "tech@example.com", "longenough", "Sam")
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "tech@example.com", "longenough")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "tech@example.com", user.Email)
}

func TestAuthService_LoginRejectsIdentically(t *testing.T) {
	users := newStubUserRepo()
	svc := newAuthService(users)

	_, _, err := svc.Register(context.Background(), "tech@example.com", "longenough", "Sam")
	require.NoError(t, err)

	_, _, badPassword := svc.Login(context.Background(), "tech@example.com", "wrongpass")
	_, _, badEmail := svc.Login(context.Background(), "nobody@example.com", "longenough")

	require.Error(t, badPassword)
	require.Error(t, badEmail)
	// Same message either way so accounts cannot be enumerated.
	assert.Equal(t, badPassword.Error(), badEmail.Error())
}

func TestAuthService_VerifyTokenRejectsTampered(t *testing.T) {
	svc := newAuthService(newStubUserRepo())

	_, token, err := svc.Register(context.Background(), "tech@example.com", "longenough", "Sam")
	require.NoError(t, err)

	other := services.NewAuthService(newStubUserRepo(), "another-secret", time.Hour)
	_, err = other.VerifyToken(token)
	require.Error(t, err)

	_, err = svc.VerifyToken(token + "x")
	require.Error(t, err)
}
